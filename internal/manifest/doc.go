// Package manifest turns declarative manifests into a validated resource graph.
//
// # Format
//
// A manifest is a YAML stream of one or more documents:
//
//	apiVersion: keel.dev/v1alpha1
//	kind: Certificate
//	metadata:
//	  name: web
//	  namespace: shop
//	  dependsOn:
//	    - DatabaseCluster/orders
//	spec:
//	  issuerRef:
//	    name: letsencrypt
//	  domains:
//	    - shop.example.com
//
// Documents containing template actions are rendered with text/template and
// the sprig function library before decoding, using the values supplied in
// Options.
//
// # Loading
//
// Load decodes every document strictly, validates it and returns the graph.
// Any error rejects the whole load; callers keep the previous desired state.
//
// # Sources and detectors
//
// A Source reads the current manifest tree, either from a directory
// (FilesystemSource) or from labelled ConfigMaps (ConfigMapSource). The
// matching ChangeDetector reports when the tree changed so that the caller can
// read and load it again.
package manifest
