package reconciler

import (
	"context"
	"fmt"
	"time"

	"k8s.io/utils/clock"

	"keel/internal/events"
	"keel/internal/platform"
	"keel/internal/resource"
	"keel/pkg/logging"
)

// CertificateOptions tunes the issuance state machine.
type CertificateOptions struct {
	// RenewBefore is the default renewal window for certificates that do not
	// set their own. Defaults to 30 days.
	RenewBefore time.Duration

	// ChallengeTimeout bounds how long a challenge may stay pending.
	// Defaults to 10 minutes.
	ChallengeTimeout time.Duration

	// PollInterval is the delay between challenge polls. Defaults to 5s.
	PollInterval time.Duration

	// MaxIssuanceAttempts is the number of failed challenges after which the
	// certificate fails permanently. Defaults to 3.
	MaxIssuanceAttempts int
}

func (o CertificateOptions) withDefaults() CertificateOptions {
	if o.RenewBefore <= 0 {
		o.RenewBefore = 30 * 24 * time.Hour
	}
	if o.ChallengeTimeout <= 0 {
		o.ChallengeTimeout = 10 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.MaxIssuanceAttempts <= 0 {
		o.MaxIssuanceAttempts = 3
	}
	return o
}

// maxPhaseSteps bounds the phase transitions taken in one reconcile.
const maxPhaseSteps = 6

// CertificateReconciler drives a Certificate through
// Requested -> ChallengePending -> ChallengeValidated -> Issued, and back to
// Requested when the certificate disappears, is revoked, or enters its
// renewal window.
type CertificateReconciler struct {
	ca       platform.CertificateAuthority
	clock    clock.PassiveClock
	opts     CertificateOptions
	recorder events.Recorder
}

// NewCertificateReconciler creates a new Certificate reconciler.
func NewCertificateReconciler(ca platform.CertificateAuthority, clk clock.PassiveClock, opts CertificateOptions, recorder events.Recorder) *CertificateReconciler {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if recorder == nil {
		recorder = events.Discard
	}
	return &CertificateReconciler{
		ca:       ca,
		clock:    clk,
		opts:     opts.withDefaults(),
		recorder: recorder,
	}
}

// Kind returns the resource kind this reconciler handles.
func (r *CertificateReconciler) Kind() resource.Kind {
	return resource.KindCertificate
}

func (r *CertificateReconciler) renewBefore(spec *resource.CertificateSpec) time.Duration {
	if spec.RenewBefore > 0 {
		return spec.RenewBefore
	}
	return r.opts.RenewBefore
}

// Reconcile advances the issuance state machine as far as it can without
// waiting.
func (r *CertificateReconciler) Reconcile(ctx context.Context, req Request) Result {
	res := req.Resource
	spec := res.Spec.Certificate
	if spec == nil {
		return Result{Err: Fatalf("%s has no certificate spec", res.ID)}
	}
	issuer := resource.NewID(resource.KindIssuer, spec.IssuerRef.Resolve(res.ID.Namespace), spec.IssuerRef.Name)

	// A new generation restarts issuance with the new domains.
	st := resource.CertificateStatus{Phase: resource.PhaseRequested}
	if cur := res.Status.Observed.Certificate; cur != nil && res.Status.ObservedGeneration == res.Generation {
		st = *cur
	}
	if st.Phase == "" {
		st.Phase = resource.PhaseRequested
	}

	for step := 0; step < maxPhaseSteps; step++ {
		now := r.clock.Now()

		switch st.Phase {
		case resource.PhaseIssued:
			ic, err := r.ca.GetCertificate(ctx, res.ID)
			if platform.IsNotFound(err) || (err == nil && ic.Revoked) {
				logging.Info("CertificateReconciler", "%s is missing or revoked, reissuing", res.ID)
				st.Phase = resource.PhaseRequested
				continue
			}
			if err != nil {
				return r.result(st, Result{Err: Classify(err)})
			}
			st.Serial = ic.Serial
			st.NotAfter = ic.NotAfter
			st.Revoked = false

			renewAt := ic.NotAfter.Add(-r.renewBefore(spec))
			if !now.Before(renewAt) {
				r.recorder.Record(res.ID, events.ReasonRenewal, events.EventData{Generation: res.Generation})
				st.Phase = resource.PhaseRequested
				continue
			}
			return r.result(st, Result{
				State:        resource.StateSynced,
				Message:      "valid until " + ic.NotAfter.UTC().Format(time.RFC3339),
				RequeueAfter: renewAt.Sub(now),
			})

		case resource.PhaseRequested:
			ch, err := r.ca.RequestCertificate(ctx, res.ID, issuer, *spec)
			if err != nil {
				return r.result(st, Result{Err: Classify(err)})
			}
			st.Phase = resource.PhaseChallengePending
			st.ChallengeID = ch.ID
			st.ChallengeDeadline = now.Add(r.opts.ChallengeTimeout)

		case resource.PhaseChallengePending:
			cr, err := r.ca.ValidateChallenge(ctx, res.ID, st.ChallengeID)
			if err != nil {
				return r.result(st, Result{Err: Classify(err)})
			}
			switch cr.Status {
			case platform.ChallengeValid:
				st.Phase = resource.PhaseChallengeValidated
				if cr.Certificate != nil {
					st.Serial = cr.Certificate.Serial
					st.NotAfter = cr.Certificate.NotAfter
				}
			case platform.ChallengeFailed:
				return r.restartIssuance(st, "challenge failed: "+cr.Message)
			default:
				if !now.Before(st.ChallengeDeadline) {
					return r.restartIssuance(st, "challenge timed out")
				}
				wait := r.opts.PollInterval
				if left := st.ChallengeDeadline.Sub(now); left < wait {
					wait = left
				}
				return r.result(st, Result{
					State:        resource.StateSyncing,
					Message:      "waiting for challenge " + st.ChallengeID,
					RequeueAfter: wait,
				})
			}

		case resource.PhaseChallengeValidated:
			st.Phase = resource.PhaseIssued
			st.ChallengeID = ""
			st.ChallengeDeadline = time.Time{}
			st.IssuanceAttempts = 0
			st.Revoked = false

		default:
			return r.result(st, Result{Err: Fatalf("unknown certificate phase %q", st.Phase)})
		}
	}

	return r.result(st, Result{State: resource.StateSyncing, RequeueAfter: r.opts.PollInterval})
}

// restartIssuance goes back to Requested after a failed challenge. It fails
// the certificate permanently once the issuance budget is spent.
func (r *CertificateReconciler) restartIssuance(st resource.CertificateStatus, reason string) Result {
	st.IssuanceAttempts++
	st.Phase = resource.PhaseRequested
	st.ChallengeID = ""
	st.ChallengeDeadline = time.Time{}
	if st.IssuanceAttempts >= r.opts.MaxIssuanceAttempts {
		return r.result(st, Result{Err: Fatalf("issuance failed after %d attempts: %s", st.IssuanceAttempts, reason)})
	}
	return r.result(st, Result{Err: Transientf("%s", reason)})
}

func (r *CertificateReconciler) result(st resource.CertificateStatus, res Result) Result {
	res.Observed = resource.Observed{Certificate: &st}
	return res
}

// Observe reads the issued certificate without changing anything.
func (r *CertificateReconciler) Observe(ctx context.Context, req Request) (resource.Observed, error) {
	st := resource.CertificateStatus{Phase: resource.PhaseRequested}
	if cur := req.Resource.Status.Observed.Certificate; cur != nil {
		st = *cur
	}

	ic, err := r.ca.GetCertificate(ctx, req.ID())
	switch {
	case platform.IsNotFound(err):
		st.Serial = ""
		st.NotAfter = time.Time{}
		st.Revoked = true
	case err != nil:
		return resource.Observed{}, err
	default:
		st.Serial = ic.Serial
		st.NotAfter = ic.NotAfter
		st.Revoked = ic.Revoked
	}
	return resource.Observed{Certificate: &st}, nil
}

// Finalize revokes the certificate.
func (r *CertificateReconciler) Finalize(ctx context.Context, req Request) error {
	if err := r.ca.RevokeCertificate(ctx, req.ID()); err != nil {
		return fmt.Errorf("revoking %s: %w", req.ID(), err)
	}
	return nil
}

// NextWake returns the time until an issued certificate enters its renewal
// window.
func (r *CertificateReconciler) NextWake(res *resource.Resource, now time.Time) (time.Duration, bool) {
	st := res.Status.Observed.Certificate
	if st == nil || st.Phase != resource.PhaseIssued || st.NotAfter.IsZero() || res.Spec.Certificate == nil {
		return 0, false
	}
	d := st.NotAfter.Add(-r.renewBefore(res.Spec.Certificate)).Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}
