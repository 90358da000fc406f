package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"keel/internal/resource"
	"keel/pkg/logging"
)

// APIVersion is the only accepted manifest apiVersion. Documents may omit it.
const APIVersion = "keel.dev/v1alpha1"

// DefaultNamespace is used for documents without metadata.namespace.
const DefaultNamespace = "default"

// Document is the raw content of one manifest file or ConfigMap key. It may
// hold several YAML documents.
type Document struct {
	Source string
	Data   []byte
}

// Options controls how documents are rendered and defaulted.
type Options struct {
	DefaultNamespace string
	// Values is the data passed to templated documents.
	Values map[string]interface{}
}

func (o Options) namespace() string {
	if o.DefaultNamespace == "" {
		return DefaultNamespace
	}
	return o.DefaultNamespace
}

type metadata struct {
	Name      string            `yaml:"name"`
	Namespace string            `yaml:"namespace"`
	Labels    map[string]string `yaml:"labels"`
	DependsOn []string          `yaml:"dependsOn"`
}

type object struct {
	APIVersion string    `yaml:"apiVersion"`
	Kind       string    `yaml:"kind"`
	Metadata   metadata  `yaml:"metadata"`
	Spec       yaml.Node `yaml:"spec"`
}

// Load decodes and validates docs. Any error rejects the whole load: the
// graph is nil whenever the error list is not empty.
func Load(docs []Document, opts Options) (*resource.Graph, []ValidationError) {
	var errs []ValidationError
	var loaded []*resource.Resource

	for _, doc := range docs {
		rs, derrs := loadDocument(doc, opts)
		loaded = append(loaded, rs...)
		errs = append(errs, derrs...)
	}

	g := resource.NewGraph()
	for _, r := range loaded {
		if err := g.Add(r); err != nil {
			errs = append(errs, ValidationError{
				Source: r.Source,
				Index:  -1,
				ID:     r.ID,
				Fields: field.ErrorList{field.Duplicate(field.NewPath("metadata", "name"), r.ID.Name)},
			})
		}
	}

	if len(errs) > 0 {
		logging.Warn("ManifestLoader", "Rejected manifest load: %d errors in %d sources", len(errs), len(docs))
		return nil, errs
	}
	logging.Debug("ManifestLoader", "Loaded %d resources from %d sources", g.Len(), len(docs))
	return g, nil
}

// loadDocument renders and decodes every YAML document in doc.
func loadDocument(doc Document, opts Options) ([]*resource.Resource, []ValidationError) {
	data, err := render(doc, opts.Values)
	if err != nil {
		return nil, []ValidationError{{Source: doc.Source, Index: -1, Err: err}}
	}

	var out []*resource.Resource
	var errs []ValidationError

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for index := 0; ; index++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The decoder cannot resynchronise after a syntax error.
			errs = append(errs, ValidationError{Source: doc.Source, Index: index, Err: fmt.Errorf("invalid YAML: %w", err)})
			break
		}
		if isEmpty(&node) {
			continue
		}

		r, verr := decodeObject(&node, opts)
		if verr != nil {
			verr.Source = doc.Source
			verr.Index = index
			errs = append(errs, *verr)
			continue
		}
		r.Source = fmt.Sprintf("%s#%d", doc.Source, index)
		out = append(out, r)
	}
	return out, errs
}

// render executes doc as a template when it contains template actions.
func render(doc Document, values map[string]interface{}) ([]byte, error) {
	if !bytes.Contains(doc.Data, []byte("{{")) {
		return doc.Data, nil
	}
	tmpl, err := template.New(doc.Source).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(string(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if values == nil {
		values = map[string]interface{}{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, values); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}
	return buf.Bytes(), nil
}

func isEmpty(node *yaml.Node) bool {
	if node.Kind == 0 {
		return true
	}
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return true
		}
		c := node.Content[0]
		return c.Kind == yaml.ScalarNode && c.Tag == "!!null"
	}
	return false
}

// strictDecode decodes node into out, rejecting unknown fields.
func strictDecode(node *yaml.Node, out interface{}) error {
	raw, err := yaml.Marshal(node)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// decodeObject turns one YAML document into a resource.
func decodeObject(node *yaml.Node, opts Options) (*resource.Resource, *ValidationError) {
	var obj object
	if err := strictDecode(node, &obj); err != nil {
		return nil, &ValidationError{Err: err}
	}

	var fields field.ErrorList
	if obj.APIVersion != "" && obj.APIVersion != APIVersion {
		fields = append(fields, field.NotSupported(field.NewPath("apiVersion"), obj.APIVersion, []string{APIVersion}))
	}

	kind, ok := resource.ParseKind(obj.Kind)
	if !ok {
		if obj.Kind == "" {
			fields = append(fields, field.Required(field.NewPath("kind"), ""))
		} else {
			fields = append(fields, field.NotSupported(field.NewPath("kind"), obj.Kind, kindNames()))
		}
		return nil, &ValidationError{Fields: fields}
	}

	namespace := obj.Metadata.Namespace
	if namespace == "" {
		namespace = opts.namespace()
	}
	r := &resource.Resource{
		ID:     resource.NewID(kind, namespace, obj.Metadata.Name),
		Labels: obj.Metadata.Labels,
	}

	fields = append(fields, validateMetadata(obj.Metadata, namespace, field.NewPath("metadata"))...)

	deps, depErrs := parseDependsOn(obj.Metadata.DependsOn, namespace, field.NewPath("metadata", "dependsOn"))
	r.DependsOn = deps
	fields = append(fields, depErrs...)

	spec, err := decodeSpec(kind, &obj.Spec)
	if err != nil {
		return nil, &ValidationError{ID: r.ID, Err: err, Fields: fields}
	}
	r.Spec = spec
	fields = append(fields, validateSpec(r, field.NewPath("spec"))...)

	if len(fields) > 0 {
		return nil, &ValidationError{ID: r.ID, Fields: fields}
	}
	return r, nil
}

// decodeSpec decodes the spec node into the variant matching kind. A missing
// spec decodes to the zero value of the variant.
func decodeSpec(kind resource.Kind, node *yaml.Node) (resource.Spec, error) {
	var spec resource.Spec
	var target interface{}
	switch kind {
	case resource.KindIssuer:
		spec.Issuer = &resource.IssuerSpec{}
		target = spec.Issuer
	case resource.KindCertificate:
		spec.Certificate = &resource.CertificateSpec{}
		target = spec.Certificate
	case resource.KindGateway:
		spec.Gateway = &resource.GatewaySpec{}
		target = spec.Gateway
	case resource.KindHTTPRoute:
		spec.HTTPRoute = &resource.HTTPRouteSpec{}
		target = spec.HTTPRoute
	case resource.KindReferenceGrant:
		spec.ReferenceGrant = &resource.ReferenceGrantSpec{}
		target = spec.ReferenceGrant
	case resource.KindDatabaseCluster:
		spec.DatabaseCluster = &resource.DatabaseClusterSpec{}
		target = spec.DatabaseCluster
	case resource.KindApplication:
		spec.Application = &resource.ApplicationSpec{}
		target = spec.Application
	default:
		return spec, fmt.Errorf("unsupported kind %q", kind)
	}

	if node.Kind == 0 {
		return spec, nil
	}
	if err := strictDecode(node, target); err != nil {
		return spec, fmt.Errorf("invalid %s spec: %w", kind, err)
	}
	return spec, nil
}

func parseDependsOn(refs []string, namespace string, path *field.Path) ([]resource.ID, field.ErrorList) {
	var out []resource.ID
	var errs field.ErrorList
	for i, ref := range refs {
		id, err := resource.ParseID(ref, namespace)
		if err != nil {
			errs = append(errs, field.Invalid(path.Index(i), ref, err.Error()))
			continue
		}
		out = append(out, id)
	}
	return out, errs
}

func kindNames() []string {
	kinds := resource.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
