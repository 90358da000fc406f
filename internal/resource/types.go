package resource

import (
	"time"
)

// ObjectRef names another resource. An empty Namespace means "same namespace
// as the referring resource".
type ObjectRef struct {
	Name      string `yaml:"name" json:"name"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// Resolve returns the namespace the reference points into.
func (r ObjectRef) Resolve(defaultNamespace string) string {
	if r.Namespace != "" {
		return r.Namespace
	}
	return defaultNamespace
}

// IssuerSpec declares an account at an external certificate authority.
type IssuerSpec struct {
	// Server is the directory URL of the authority.
	Server string `yaml:"server" json:"server"`
	Email  string `yaml:"email" json:"email"`
	// Solver selects the challenge type, http01 or dns01.
	Solver string `yaml:"solver,omitempty" json:"solver,omitempty"`
	// CredentialsSecret names the secret holding the account key.
	CredentialsSecret string `yaml:"credentialsSecret,omitempty" json:"credentialsSecret,omitempty"`
}

// CertificateSpec declares a certificate issued by one Issuer.
type CertificateSpec struct {
	IssuerRef   ObjectRef     `yaml:"issuerRef" json:"issuerRef"`
	Domains     []string      `yaml:"domains" json:"domains"`
	SecretName  string        `yaml:"secretName,omitempty" json:"secretName,omitempty"`
	RenewBefore time.Duration `yaml:"renewBefore,omitempty" json:"renewBefore,omitempty"`
}

// Listener is one port/protocol binding on a Gateway.
type Listener struct {
	Name     string `yaml:"name" json:"name"`
	Hostname string `yaml:"hostname,omitempty" json:"hostname,omitempty"`
	Port     int32  `yaml:"port" json:"port"`
	Protocol string `yaml:"protocol" json:"protocol"`
	// CertificateRef names a Certificate in the Gateway's namespace used to
	// terminate TLS on this listener.
	CertificateRef string `yaml:"certificateRef,omitempty" json:"certificateRef,omitempty"`
}

// GatewaySpec declares an ingress point.
type GatewaySpec struct {
	ClassName string     `yaml:"className" json:"className"`
	Listeners []Listener `yaml:"listeners" json:"listeners"`
}

// ParentRef binds a route to a Gateway.
type ParentRef struct {
	Name        string `yaml:"name" json:"name"`
	Namespace   string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	SectionName string `yaml:"sectionName,omitempty" json:"sectionName,omitempty"`
}

// BackendRef names a Service that receives routed traffic.
type BackendRef struct {
	Name      string `yaml:"name" json:"name"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Port      int32  `yaml:"port" json:"port"`
}

// RouteRule matches a path prefix and forwards it to backends.
type RouteRule struct {
	PathPrefix  string       `yaml:"pathPrefix,omitempty" json:"pathPrefix,omitempty"`
	BackendRefs []BackendRef `yaml:"backendRefs" json:"backendRefs"`
}

// HTTPRouteSpec declares routing rules attached to a Gateway.
type HTTPRouteSpec struct {
	ParentRef ParentRef   `yaml:"parentRef" json:"parentRef"`
	Hostnames []string    `yaml:"hostnames,omitempty" json:"hostnames,omitempty"`
	Rules     []RouteRule `yaml:"rules,omitempty" json:"rules,omitempty"`
}

// GrantFrom is a (kind, namespace) pair allowed to reference into the grant's
// namespace.
type GrantFrom struct {
	Kind      string `yaml:"kind" json:"kind"`
	Namespace string `yaml:"namespace" json:"namespace"`
}

// GrantTo is a target kind, optionally narrowed to a single name.
type GrantTo struct {
	Kind string `yaml:"kind" json:"kind"`
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// ReferenceGrantSpec permits cross-namespace references into its namespace.
type ReferenceGrantSpec struct {
	From []GrantFrom `yaml:"from" json:"from"`
	To   []GrantTo   `yaml:"to" json:"to"`
}

// Allows reports whether a fromKind object in fromNamespace may reference a
// toKind object named toName in the grant's namespace.
func (g *ReferenceGrantSpec) Allows(fromKind, fromNamespace, toKind, toName string) bool {
	if g == nil {
		return false
	}
	fromOK := false
	for _, f := range g.From {
		if f.Kind == fromKind && f.Namespace == fromNamespace {
			fromOK = true
			break
		}
	}
	if !fromOK {
		return false
	}
	for _, t := range g.To {
		if t.Kind == toKind && (t.Name == "" || t.Name == toName) {
			return true
		}
	}
	return false
}

// DatabaseClusterSpec declares a replicated database topology.
type DatabaseClusterSpec struct {
	Instances   int32  `yaml:"instances" json:"instances"`
	Version     string `yaml:"version,omitempty" json:"version,omitempty"`
	StorageSize string `yaml:"storageSize,omitempty" json:"storageSize,omitempty"`
}

// QuorumThreshold is floor(instances/2)+1.
func (d DatabaseClusterSpec) QuorumThreshold() int32 {
	return d.Instances/2 + 1
}

// ApplicationSpec declares an aggregate over the resources it depends on.
type ApplicationSpec struct {
	// Namespaces widens the closure to resources in additional namespaces.
	Namespaces  []string `yaml:"namespaces,omitempty" json:"namespaces,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Spec is the desired state of a resource. Exactly one field is set and it
// matches the resource kind. Specs are treated as immutable once loaded.
type Spec struct {
	Issuer          *IssuerSpec          `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Certificate     *CertificateSpec     `yaml:"certificate,omitempty" json:"certificate,omitempty"`
	Gateway         *GatewaySpec         `yaml:"gateway,omitempty" json:"gateway,omitempty"`
	HTTPRoute       *HTTPRouteSpec       `yaml:"httpRoute,omitempty" json:"httpRoute,omitempty"`
	ReferenceGrant  *ReferenceGrantSpec  `yaml:"referenceGrant,omitempty" json:"referenceGrant,omitempty"`
	DatabaseCluster *DatabaseClusterSpec `yaml:"databaseCluster,omitempty" json:"databaseCluster,omitempty"`
	Application     *ApplicationSpec     `yaml:"application,omitempty" json:"application,omitempty"`
}

// Kind returns the kind of the populated variant, or "" when none is set.
func (s Spec) Kind() Kind {
	switch {
	case s.Issuer != nil:
		return KindIssuer
	case s.Certificate != nil:
		return KindCertificate
	case s.Gateway != nil:
		return KindGateway
	case s.HTTPRoute != nil:
		return KindHTTPRoute
	case s.ReferenceGrant != nil:
		return KindReferenceGrant
	case s.DatabaseCluster != nil:
		return KindDatabaseCluster
	case s.Application != nil:
		return KindApplication
	}
	return ""
}

// CertificatePhase is the issuance sub-state of a Certificate.
type CertificatePhase string

const (
	PhaseRequested          CertificatePhase = "Requested"
	PhaseChallengePending   CertificatePhase = "ChallengePending"
	PhaseChallengeValidated CertificatePhase = "ChallengeValidated"
	PhaseIssued             CertificatePhase = "Issued"
)

// IssuerStatus is the observed state of an Issuer.
type IssuerStatus struct {
	Registered bool   `yaml:"registered" json:"registered"`
	AccountID  string `yaml:"accountID,omitempty" json:"accountID,omitempty"`
}

// CertificateStatus is the observed state of a Certificate.
type CertificateStatus struct {
	Phase             CertificatePhase `yaml:"phase" json:"phase"`
	ChallengeID       string           `yaml:"challengeID,omitempty" json:"challengeID,omitempty"`
	ChallengeDeadline time.Time        `yaml:"challengeDeadline,omitempty" json:"challengeDeadline,omitempty"`
	// IssuanceAttempts counts restarts of the issuance sub-machine.
	IssuanceAttempts int       `yaml:"issuanceAttempts,omitempty" json:"issuanceAttempts,omitempty"`
	Serial           string    `yaml:"serial,omitempty" json:"serial,omitempty"`
	NotAfter         time.Time `yaml:"notAfter,omitempty" json:"notAfter,omitempty"`
	Revoked          bool      `yaml:"revoked,omitempty" json:"revoked,omitempty"`
}

// RoutingStatus is the observed state of a Gateway, HTTPRoute or
// ReferenceGrant.
type RoutingStatus struct {
	Present   bool     `yaml:"present" json:"present"`
	Accepted  bool     `yaml:"accepted" json:"accepted"`
	Addresses []string `yaml:"addresses,omitempty" json:"addresses,omitempty"`
	// Fingerprint identifies the spec the platform currently holds.
	Fingerprint string `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
}

// DatabaseStatus is the observed state of a DatabaseCluster.
type DatabaseStatus struct {
	ObservedInstances int32     `yaml:"observedInstances" json:"observedInstances"`
	Primary           *string   `yaml:"primary,omitempty" json:"primary,omitempty"`
	QuorumThreshold   int32     `yaml:"quorumThreshold" json:"quorumThreshold"`
	QuorumOK          bool      `yaml:"quorumOK" json:"quorumOK"`
	Failovers         int       `yaml:"failovers,omitempty" json:"failovers,omitempty"`
	LastFailover      time.Time `yaml:"lastFailover,omitempty" json:"lastFailover,omitempty"`
}

// ApplicationStatus is the aggregated state of an Application.
type ApplicationStatus struct {
	Members       int    `yaml:"members" json:"members"`
	WorstResource string `yaml:"worstResource,omitempty" json:"worstResource,omitempty"`
}

// Observed is the kind-specific observed state. At most one field is set.
// Reconcilers return fresh values; a committed Observed is never mutated.
type Observed struct {
	Issuer      *IssuerStatus      `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Certificate *CertificateStatus `yaml:"certificate,omitempty" json:"certificate,omitempty"`
	Routing     *RoutingStatus     `yaml:"routing,omitempty" json:"routing,omitempty"`
	Database    *DatabaseStatus    `yaml:"database,omitempty" json:"database,omitempty"`
	Application *ApplicationStatus `yaml:"application,omitempty" json:"application,omitempty"`
}

// IsZero reports whether nothing has been observed yet.
func (o Observed) IsZero() bool {
	return o.Issuer == nil && o.Certificate == nil && o.Routing == nil &&
		o.Database == nil && o.Application == nil
}

// DeepCopy returns an independent copy of o.
func (o Observed) DeepCopy() Observed {
	var out Observed
	if o.Issuer != nil {
		v := *o.Issuer
		out.Issuer = &v
	}
	if o.Certificate != nil {
		v := *o.Certificate
		out.Certificate = &v
	}
	if o.Routing != nil {
		v := *o.Routing
		v.Addresses = append([]string(nil), o.Routing.Addresses...)
		out.Routing = &v
	}
	if o.Database != nil {
		v := *o.Database
		if o.Database.Primary != nil {
			p := *o.Database.Primary
			v.Primary = &p
		}
		out.Database = &v
	}
	if o.Application != nil {
		v := *o.Application
		out.Application = &v
	}
	return out
}

// Status is the engine-owned record for a resource: the committed observed
// state plus scheduling bookkeeping.
type Status struct {
	SyncState SyncState `yaml:"syncState" json:"syncState"`
	Observed  Observed  `yaml:"observed,omitempty" json:"observed,omitempty"`
	// ObservedGeneration is the generation the committed Observed belongs to.
	ObservedGeneration int64  `yaml:"observedGeneration" json:"observedGeneration"`
	Message            string `yaml:"message,omitempty" json:"message,omitempty"`

	Attempts      int       `yaml:"attempts,omitempty" json:"attempts,omitempty"`
	NextAttemptAt time.Time `yaml:"nextAttemptAt,omitempty" json:"nextAttemptAt,omitempty"`

	Blocked       bool   `yaml:"blocked,omitempty" json:"blocked,omitempty"`
	BlockedReason string `yaml:"blockedReason,omitempty" json:"blockedReason,omitempty"`

	// Fatal marks an Error that is not retried until the generation changes.
	Fatal bool `yaml:"fatal,omitempty" json:"fatal,omitempty"`

	Finalizing bool `yaml:"finalizing,omitempty" json:"finalizing,omitempty"`

	LastTransitionTime time.Time `yaml:"lastTransitionTime,omitempty" json:"lastTransitionTime,omitempty"`
	LastSyncedTime     time.Time `yaml:"lastSyncedTime,omitempty" json:"lastSyncedTime,omitempty"`
}

// Resource is one declared object with its engine-owned status.
type Resource struct {
	ID         ID                `yaml:",inline" json:"id"`
	Labels     map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
	DependsOn  []ID              `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Generation int64             `yaml:"generation" json:"generation"`
	Spec       Spec              `yaml:"spec" json:"spec"`
	Status     Status            `yaml:"status" json:"status"`

	// Source is where the resource was declared, for error messages.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// DeepCopy returns a copy whose status and bookkeeping can be modified
// without affecting r. The spec is shared.
func (r *Resource) DeepCopy() *Resource {
	if r == nil {
		return nil
	}
	out := *r
	if r.Labels != nil {
		out.Labels = make(map[string]string, len(r.Labels))
		for k, v := range r.Labels {
			out.Labels[k] = v
		}
	}
	out.DependsOn = append([]ID(nil), r.DependsOn...)
	out.Status.Observed = r.Status.Observed.DeepCopy()
	return &out
}

// Ready reports whether the resource lets consumers proceed: Synced at its
// current generation.
func (r *Resource) Ready() bool {
	return r.Status.SyncState.Ready() && r.Status.ObservedGeneration == r.Generation
}
