package platform

import (
	"context"
	"time"

	"keel/internal/resource"
)

// Account is a registration at a certificate authority.
type Account struct {
	ID string
}

// ChallengeStatus is the outcome of polling a challenge.
type ChallengeStatus string

const (
	ChallengePending ChallengeStatus = "pending"
	ChallengeValid   ChallengeStatus = "valid"
	ChallengeFailed  ChallengeStatus = "failed"
)

// Challenge is a domain-ownership challenge opened by RequestCertificate.
type Challenge struct {
	ID      string
	Domains []string
}

// ChallengeResult is returned by ValidateChallenge. Certificate is set once
// the challenge is valid and the certificate has been issued.
type ChallengeResult struct {
	Status      ChallengeStatus
	Certificate *IssuedCertificate
	Message     string
}

// IssuedCertificate describes a certificate held by the authority.
type IssuedCertificate struct {
	Serial   string
	NotAfter time.Time
	Revoked  bool
}

// CertificateAuthority issues certificates through an ACME-like flow.
type CertificateAuthority interface {
	RegisterAccount(ctx context.Context, issuer resource.ID, spec resource.IssuerSpec) (Account, error)
	RequestCertificate(ctx context.Context, cert resource.ID, issuer resource.ID, spec resource.CertificateSpec) (Challenge, error)
	ValidateChallenge(ctx context.Context, cert resource.ID, challengeID string) (ChallengeResult, error)
	// GetCertificate returns ErrNotFound when nothing was issued for cert.
	GetCertificate(ctx context.Context, cert resource.ID) (IssuedCertificate, error)
	RevokeCertificate(ctx context.Context, cert resource.ID) error
}

// RoutingState is what the routing platform holds for one object.
type RoutingState struct {
	Spec      resource.Spec
	Accepted  bool
	Addresses []string
	Message   string
}

// RoutingPlatform manages Gateways, HTTPRoutes and ReferenceGrants.
type RoutingPlatform interface {
	CreateOrUpdate(ctx context.Context, id resource.ID, spec resource.Spec) (RoutingState, error)
	// Get returns ErrNotFound when the object does not exist.
	Get(ctx context.Context, id resource.ID) (RoutingState, error)
	Delete(ctx context.Context, id resource.ID) error
}

// Topology is the observed shape of a database cluster.
type Topology struct {
	Instances int32
	// Primary is nil while no instance holds the primary role.
	Primary *string
}

// Health is the database orchestrator's view of quorum.
type Health struct {
	QuorumOK bool
	Message  string
}

// DatabaseOrchestrator converges replicated database topologies.
type DatabaseOrchestrator interface {
	ReconcileTopology(ctx context.Context, id resource.ID, spec resource.DatabaseClusterSpec) (Topology, error)
	// GetTopology returns ErrNotFound when the cluster does not exist.
	GetTopology(ctx context.Context, id resource.ID) (Topology, error)
	GetHealth(ctx context.Context, id resource.ID) (Health, error)
	Delete(ctx context.Context, id resource.ID) error
}

// Platform bundles the capabilities the reconcilers need.
type Platform struct {
	CA       CertificateAuthority
	Routing  RoutingPlatform
	Database DatabaseOrchestrator
}
