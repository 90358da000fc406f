package reconciler

import (
	"context"

	"keel/internal/platform"
	"keel/internal/resource"
	"keel/pkg/logging"
)

// IssuerReconciler registers an account at the certificate authority for
// each Issuer. Registration is idempotent on the authority side, so a
// Synced Issuer can be reconciled again without effect.
type IssuerReconciler struct {
	ca platform.CertificateAuthority
}

// NewIssuerReconciler creates a new Issuer reconciler.
func NewIssuerReconciler(ca platform.CertificateAuthority) *IssuerReconciler {
	return &IssuerReconciler{ca: ca}
}

// Kind returns the resource kind this reconciler handles.
func (r *IssuerReconciler) Kind() resource.Kind {
	return resource.KindIssuer
}

// Reconcile registers the account and reports its identifier.
func (r *IssuerReconciler) Reconcile(ctx context.Context, req Request) Result {
	spec := req.Resource.Spec.Issuer
	if spec == nil {
		return Result{Err: Fatalf("%s has no issuer spec", req.ID())}
	}

	acct, err := r.ca.RegisterAccount(ctx, req.ID(), *spec)
	if err != nil {
		return Result{Err: Classify(err)}
	}

	logging.Debug("IssuerReconciler", "Account %s ready for %s", acct.ID, req.ID())
	return Result{
		Observed: resource.Observed{Issuer: &resource.IssuerStatus{Registered: true, AccountID: acct.ID}},
		Message:  "account " + acct.ID + " registered",
	}
}
