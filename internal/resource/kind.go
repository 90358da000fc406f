package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies one of the managed resource kinds.
type Kind string

const (
	// KindIssuer is an external authority able to sign certificates.
	KindIssuer Kind = "Issuer"

	// KindCertificate is a request/issuance lifecycle bound to one Issuer.
	KindCertificate Kind = "Certificate"

	// KindReferenceGrant permits cross-namespace references.
	KindReferenceGrant Kind = "ReferenceGrant"

	// KindGateway is an ingress declaration routes bind to.
	KindGateway Kind = "Gateway"

	// KindHTTPRoute binds matching traffic to backends through a Gateway.
	KindHTTPRoute Kind = "HTTPRoute"

	// KindDatabaseCluster is a replicated database topology with quorum.
	KindDatabaseCluster Kind = "DatabaseCluster"

	// KindApplication aggregates the state of everything it depends on.
	KindApplication Kind = "Application"
)

// kindPriority orders kinds for deterministic tie-breaking.
var kindPriority = map[Kind]int{
	KindIssuer:          0,
	KindCertificate:     1,
	KindReferenceGrant:  2,
	KindGateway:         3,
	KindHTTPRoute:       4,
	KindDatabaseCluster: 5,
	KindApplication:     6,
}

// Kinds returns every managed kind in priority order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(kindPriority))
	for k := range kindPriority {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kindPriority[kinds[i]] < kindPriority[kinds[j]] })
	return kinds
}

// ParseKind resolves a kind name. Matching is exact; manifests are expected
// to use the canonical spelling.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	_, ok := kindPriority[k]
	return k, ok
}

// Valid reports whether k is a managed kind.
func (k Kind) Valid() bool {
	_, ok := kindPriority[k]
	return ok
}

// Priority returns the tie-breaking rank of the kind. Unknown kinds sort last.
func (k Kind) Priority() int {
	if p, ok := kindPriority[k]; ok {
		return p
	}
	return len(kindPriority)
}

// ID is the stable identity of a resource: (kind, namespace, name).
type ID struct {
	Kind      Kind   `yaml:"kind" json:"kind"`
	Namespace string `yaml:"namespace" json:"namespace"`
	Name      string `yaml:"name" json:"name"`
}

// NewID builds an ID.
func NewID(kind Kind, namespace, name string) ID {
	return ID{Kind: kind, Namespace: namespace, Name: name}
}

// String renders the ID as Kind/namespace/name.
func (id ID) String() string {
	return string(id.Kind) + "/" + id.Namespace + "/" + id.Name
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.Kind == "" && id.Namespace == "" && id.Name == ""
}

// Less orders IDs by kind priority, then namespace, then name.
func (id ID) Less(other ID) bool {
	if pi, pj := id.Kind.Priority(), other.Kind.Priority(); pi != pj {
		return pi < pj
	}
	if id.Namespace != other.Namespace {
		return id.Namespace < other.Namespace
	}
	return id.Name < other.Name
}

// ParseID parses "Kind/namespace/name". "Kind/name" is accepted and resolved
// against defaultNamespace.
func ParseID(s, defaultNamespace string) (ID, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		parts = []string{parts[0], defaultNamespace, parts[1]}
	case 3:
	default:
		return ID{}, fmt.Errorf("invalid resource reference %q: expected Kind/namespace/name", s)
	}

	kind, ok := ParseKind(parts[0])
	if !ok {
		return ID{}, fmt.Errorf("invalid resource reference %q: unknown kind %q", s, parts[0])
	}
	if parts[1] == "" || parts[2] == "" {
		return ID{}, fmt.Errorf("invalid resource reference %q: namespace and name are required", s)
	}
	return NewID(kind, parts[1], parts[2]), nil
}

// SortIDs sorts ids in place using ID.Less.
func SortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
