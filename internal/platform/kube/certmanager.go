package kube

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	"keel/internal/platform"
	"keel/internal/resource"
)

// CertManager implements platform.CertificateAuthority on cert-manager
// Issuer and Certificate objects.
type CertManager struct {
	client client.Client
}

// NewCertManager creates the certificate authority binding.
func NewCertManager(c client.Client) *CertManager {
	return &CertManager{client: c}
}

func solverFor(kind string) map[string]interface{} {
	if kind == "dns01" {
		return map[string]interface{}{"dns01": map[string]interface{}{}}
	}
	return map[string]interface{}{"http01": map[string]interface{}{"gatewayHTTPRoute": map[string]interface{}{}}}
}

func (m *CertManager) RegisterAccount(ctx context.Context, issuer resource.ID, spec resource.IssuerSpec) (platform.Account, error) {
	u, err := newObject(issuer)
	if err != nil {
		return platform.Account{}, err
	}

	keySecret := spec.CredentialsSecret
	if keySecret == "" {
		keySecret = issuer.Name + "-account-key"
	}

	_, err = controllerutil.CreateOrUpdate(ctx, m.client, u, func() error {
		markManaged(u, issuer)
		return unstructured.SetNestedField(u.Object, map[string]interface{}{
			"server":              spec.Server,
			"email":               spec.Email,
			"privateKeySecretRef": map[string]interface{}{"name": keySecret},
			"solvers":             []interface{}{solverFor(spec.Solver)},
		}, "spec", "acme")
	})
	if err != nil {
		return platform.Account{}, classify(issuer, "apply", err)
	}

	status, reason, message, found := condition(u, "Ready", "status", "conditions")
	switch {
	case status == "True":
		uri, _, _ := unstructured.NestedString(u.Object, "status", "acme", "uri")
		return platform.Account{ID: uri}, nil
	case status == "False" && (reason == "ErrRegisterACMEAccount" || reason == "ErrInitIssuer"):
		return platform.Account{}, platform.Permanent("issuer %s rejected: %s", issuer, message)
	case found:
		return platform.Account{}, fmt.Errorf("issuer %s not ready: %s", issuer, message)
	default:
		return platform.Account{}, fmt.Errorf("issuer %s not ready yet", issuer)
	}
}

func (m *CertManager) RequestCertificate(ctx context.Context, cert resource.ID, issuer resource.ID, spec resource.CertificateSpec) (platform.Challenge, error) {
	if issuer.Namespace != cert.Namespace {
		return platform.Challenge{}, platform.Permanent("cert-manager Issuers are namespaced: %s cannot use %s", cert, issuer)
	}

	u, err := newObject(cert)
	if err != nil {
		return platform.Challenge{}, err
	}

	secretName := spec.SecretName
	if secretName == "" {
		secretName = cert.Name
	}
	dnsNames := make([]interface{}, len(spec.Domains))
	for i, d := range spec.Domains {
		dnsNames[i] = d
	}

	_, err = controllerutil.CreateOrUpdate(ctx, m.client, u, func() error {
		markManaged(u, cert)
		return unstructured.SetNestedField(u.Object, map[string]interface{}{
			"secretName": secretName,
			"dnsNames":   dnsNames,
			"issuerRef":  map[string]interface{}{"name": issuer.Name, "kind": "Issuer"},
		}, "spec")
	})
	if err != nil {
		return platform.Challenge{}, classify(cert, "apply", err)
	}

	return platform.Challenge{
		ID:      fmt.Sprintf("%s/%s#%d", cert.Namespace, cert.Name, u.GetGeneration()),
		Domains: append([]string(nil), spec.Domains...),
	}, nil
}

func (m *CertManager) ValidateChallenge(ctx context.Context, cert resource.ID, challengeID string) (platform.ChallengeResult, error) {
	u, err := m.get(ctx, cert)
	if err != nil {
		if platform.IsNotFound(err) {
			return platform.ChallengeResult{Status: platform.ChallengeFailed, Message: "certificate object disappeared"}, nil
		}
		return platform.ChallengeResult{}, err
	}

	if status, _, _, _ := condition(u, "Ready", "status", "conditions"); status == "True" {
		ic, err := issuedFrom(u)
		if err != nil {
			return platform.ChallengeResult{}, err
		}
		return platform.ChallengeResult{Status: platform.ChallengeValid, Certificate: &ic}, nil
	}

	if status, reason, message, _ := condition(u, "Issuing", "status", "conditions"); status == "False" && reason == "Failed" {
		return platform.ChallengeResult{Status: platform.ChallengeFailed, Message: message}, nil
	}
	return platform.ChallengeResult{Status: platform.ChallengePending}, nil
}

func (m *CertManager) GetCertificate(ctx context.Context, cert resource.ID) (platform.IssuedCertificate, error) {
	u, err := m.get(ctx, cert)
	if err != nil {
		return platform.IssuedCertificate{}, err
	}
	return issuedFrom(u)
}

func (m *CertManager) RevokeCertificate(ctx context.Context, cert resource.ID) error {
	u, err := newObject(cert)
	if err != nil {
		return err
	}
	return classify(cert, "delete", client.IgnoreNotFound(m.client.Delete(ctx, u)))
}

func (m *CertManager) get(ctx context.Context, id resource.ID) (*unstructured.Unstructured, error) {
	u, err := newObject(id)
	if err != nil {
		return nil, err
	}
	if err := m.client.Get(ctx, client.ObjectKeyFromObject(u), u); err != nil {
		return nil, classify(id, "get", err)
	}
	return u, nil
}

// issuedFrom reads the issued certificate out of a Certificate status. A
// certificate that is no longer Ready is reported as revoked.
func issuedFrom(u *unstructured.Unstructured) (platform.IssuedCertificate, error) {
	id := resource.NewID(resource.KindCertificate, u.GetNamespace(), u.GetName())

	notAfterRaw, ok, _ := unstructured.NestedString(u.Object, "status", "notAfter")
	if !ok || notAfterRaw == "" {
		return platform.IssuedCertificate{}, fmt.Errorf("%s has not been issued: %w", id, platform.ErrNotFound)
	}
	notAfter, err := time.Parse(time.RFC3339, notAfterRaw)
	if err != nil {
		return platform.IssuedCertificate{}, fmt.Errorf("%s: parse notAfter: %w", id, err)
	}

	revision, _, _ := unstructured.NestedInt64(u.Object, "status", "revision")
	ready, _, _, _ := condition(u, "Ready", "status", "conditions")

	return platform.IssuedCertificate{
		Serial:   fmt.Sprintf("rev-%d", revision),
		NotAfter: notAfter,
		Revoked:  ready != "True",
	}, nil
}
