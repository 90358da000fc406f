package kube

import (
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"

	"keel/internal/platform"
	"keel/internal/resource"
)

const (
	// ManagedByLabel marks objects keel owns on the cluster.
	ManagedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "keel"

	// IdentityAnnotation records the keel identity an object was created for.
	IdentityAnnotation = "keel.dev/resource"
)

var (
	IssuerGVK         = schema.GroupVersionKind{Group: "cert-manager.io", Version: "v1", Kind: "Issuer"}
	CertificateGVK    = schema.GroupVersionKind{Group: "cert-manager.io", Version: "v1", Kind: "Certificate"}
	GatewayGVK        = schema.GroupVersionKind{Group: "gateway.networking.k8s.io", Version: "v1", Kind: "Gateway"}
	HTTPRouteGVK      = schema.GroupVersionKind{Group: "gateway.networking.k8s.io", Version: "v1", Kind: "HTTPRoute"}
	ReferenceGrantGVK = schema.GroupVersionKind{Group: "gateway.networking.k8s.io", Version: "v1beta1", Kind: "ReferenceGrant"}
	ClusterGVK        = schema.GroupVersionKind{Group: "postgresql.cnpg.io", Version: "v1", Kind: "Cluster"}
)

// managedGVKs are the third-party kinds keel drives. They are handled as
// unstructured objects so no typed API modules are needed.
var managedGVKs = []schema.GroupVersionKind{
	IssuerGVK, CertificateGVK, GatewayGVK, HTTPRouteGVK, ReferenceGrantGVK, ClusterGVK,
}

// AddToScheme registers the managed kinds as unstructured types.
func AddToScheme(s *runtime.Scheme) error {
	for _, gvk := range managedGVKs {
		s.AddKnownTypeWithName(gvk, &unstructured.Unstructured{})
		s.AddKnownTypeWithName(gvk.GroupVersion().WithKind(gvk.Kind+"List"), &unstructured.UnstructuredList{})
	}
	return nil
}

// NewScheme returns a scheme with the core Kubernetes types and the managed
// kinds.
func NewScheme() *runtime.Scheme {
	s := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(s))
	utilruntime.Must(AddToScheme(s))
	return s
}

func gvkFor(kind resource.Kind) (schema.GroupVersionKind, error) {
	switch kind {
	case resource.KindIssuer:
		return IssuerGVK, nil
	case resource.KindCertificate:
		return CertificateGVK, nil
	case resource.KindGateway:
		return GatewayGVK, nil
	case resource.KindHTTPRoute:
		return HTTPRouteGVK, nil
	case resource.KindReferenceGrant:
		return ReferenceGrantGVK, nil
	case resource.KindDatabaseCluster:
		return ClusterGVK, nil
	}
	return schema.GroupVersionKind{}, platform.Permanent("kind %s has no cluster representation", kind)
}

// newObject returns an empty unstructured object addressed by id.
func newObject(id resource.ID) (*unstructured.Unstructured, error) {
	gvk, err := gvkFor(id.Kind)
	if err != nil {
		return nil, err
	}
	u := &unstructured.Unstructured{}
	u.SetGroupVersionKind(gvk)
	u.SetNamespace(id.Namespace)
	u.SetName(id.Name)
	return u, nil
}

// markManaged stamps the ownership label and identity annotation.
func markManaged(u *unstructured.Unstructured, id resource.ID) {
	labels := u.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[ManagedByLabel] = managedByValue
	u.SetLabels(labels)

	annotations := u.GetAnnotations()
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[IdentityAnnotation] = id.String()
	u.SetAnnotations(annotations)
}

// classify maps API server errors onto the platform error contract.
func classify(id resource.ID, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsNotFound(err):
		return fmt.Errorf("%s %s: %w", op, id, platform.ErrNotFound)
	case apierrors.IsInvalid(err):
		return &platform.PermanentError{Reason: fmt.Sprintf("%s %s rejected by the API server", op, id), Err: err}
	default:
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
}

// condition looks up a status condition by type in a conditions slice found
// at path.
func condition(u *unstructured.Unstructured, condType string, path ...string) (status, reason, message string, found bool) {
	conds, ok, _ := unstructured.NestedSlice(u.Object, path...)
	if !ok {
		return "", "", "", false
	}
	for _, c := range conds {
		m, ok := c.(map[string]interface{})
		if !ok || m["type"] != condType {
			continue
		}
		status, _ = m["status"].(string)
		reason, _ = m["reason"].(string)
		message, _ = m["message"].(string)
		return status, reason, message, true
	}
	return "", "", "", false
}
