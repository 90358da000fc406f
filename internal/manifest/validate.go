package manifest

import (
	"net/url"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"keel/internal/resource"
)

var (
	supportedSolvers   = sets.New("", "http01", "dns01")
	supportedProtocols = sets.New("HTTP", "HTTPS", "TLS", "TCP")
	tlsProtocols       = sets.New("HTTPS", "TLS")
)

func validateMetadata(md metadata, namespace string, path *field.Path) field.ErrorList {
	var errs field.ErrorList

	if md.Name == "" {
		errs = append(errs, field.Required(path.Child("name"), "name is required"))
	} else {
		for _, msg := range validation.IsDNS1123Subdomain(md.Name) {
			errs = append(errs, field.Invalid(path.Child("name"), md.Name, msg))
		}
	}
	for _, msg := range validation.IsDNS1123Label(namespace) {
		errs = append(errs, field.Invalid(path.Child("namespace"), namespace, msg))
	}
	for k, v := range md.Labels {
		for _, msg := range validation.IsQualifiedName(k) {
			errs = append(errs, field.Invalid(path.Child("labels"), k, msg))
		}
		for _, msg := range validation.IsValidLabelValue(v) {
			errs = append(errs, field.Invalid(path.Child("labels").Key(k), v, msg))
		}
	}
	return errs
}

// validateSpec runs the kind-specific checks on r.Spec.
func validateSpec(r *resource.Resource, path *field.Path) field.ErrorList {
	s := r.Spec
	switch {
	case s.Issuer != nil:
		return validateIssuer(s.Issuer, path)
	case s.Certificate != nil:
		return validateCertificate(s.Certificate, path)
	case s.Gateway != nil:
		return validateGateway(s.Gateway, path)
	case s.HTTPRoute != nil:
		return validateHTTPRoute(s.HTTPRoute, path)
	case s.ReferenceGrant != nil:
		return validateReferenceGrant(s.ReferenceGrant, path)
	case s.DatabaseCluster != nil:
		return validateDatabaseCluster(s.DatabaseCluster, path)
	case s.Application != nil:
		return validateApplication(s.Application, path)
	}
	return field.ErrorList{field.Required(path, "spec is required")}
}

func validateIssuer(s *resource.IssuerSpec, path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if s.Server == "" {
		errs = append(errs, field.Required(path.Child("server"), "ACME directory URL is required"))
	} else if u, err := url.Parse(s.Server); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, field.Invalid(path.Child("server"), s.Server, "must be an absolute URL"))
	}
	if s.Email == "" {
		errs = append(errs, field.Required(path.Child("email"), "account email is required"))
	} else if !strings.Contains(s.Email, "@") {
		errs = append(errs, field.Invalid(path.Child("email"), s.Email, "must be an email address"))
	}
	if !supportedSolvers.Has(s.Solver) {
		errs = append(errs, field.NotSupported(path.Child("solver"), s.Solver, []string{"http01", "dns01"}))
	}
	return errs
}

func validateCertificate(s *resource.CertificateSpec, path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if s.IssuerRef.Name == "" {
		errs = append(errs, field.Required(path.Child("issuerRef", "name"), "issuerRef is required"))
	}
	if s.IssuerRef.Namespace != "" {
		for _, msg := range validation.IsDNS1123Label(s.IssuerRef.Namespace) {
			errs = append(errs, field.Invalid(path.Child("issuerRef", "namespace"), s.IssuerRef.Namespace, msg))
		}
	}
	if len(s.Domains) == 0 {
		errs = append(errs, field.Required(path.Child("domains"), "at least one domain is required"))
	}
	seen := sets.New[string]()
	for i, d := range s.Domains {
		errs = append(errs, validateHostname(d, path.Child("domains").Index(i))...)
		if seen.Has(d) {
			errs = append(errs, field.Duplicate(path.Child("domains").Index(i), d))
		}
		seen.Insert(d)
	}
	if s.RenewBefore < 0 {
		errs = append(errs, field.Invalid(path.Child("renewBefore"), s.RenewBefore.String(), "must not be negative"))
	}
	return errs
}

func validateGateway(s *resource.GatewaySpec, path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if s.ClassName == "" {
		errs = append(errs, field.Required(path.Child("className"), "gateway class is required"))
	}
	if len(s.Listeners) == 0 {
		errs = append(errs, field.Required(path.Child("listeners"), "at least one listener is required"))
	}
	names := sets.New[string]()
	for i, l := range s.Listeners {
		lp := path.Child("listeners").Index(i)
		if l.Name == "" {
			errs = append(errs, field.Required(lp.Child("name"), ""))
		} else if names.Has(l.Name) {
			errs = append(errs, field.Duplicate(lp.Child("name"), l.Name))
		}
		names.Insert(l.Name)

		for _, msg := range validation.IsValidPortNum(int(l.Port)) {
			errs = append(errs, field.Invalid(lp.Child("port"), l.Port, msg))
		}
		if !supportedProtocols.Has(l.Protocol) {
			errs = append(errs, field.NotSupported(lp.Child("protocol"), l.Protocol, sets.List(supportedProtocols)))
		}
		if l.Hostname != "" {
			errs = append(errs, validateHostname(l.Hostname, lp.Child("hostname"))...)
		}
		if l.CertificateRef != "" {
			if !tlsProtocols.Has(l.Protocol) {
				errs = append(errs, field.Invalid(lp.Child("certificateRef"), l.CertificateRef, "only HTTPS and TLS listeners terminate TLS"))
			}
			for _, msg := range validation.IsDNS1123Subdomain(l.CertificateRef) {
				errs = append(errs, field.Invalid(lp.Child("certificateRef"), l.CertificateRef, msg))
			}
		}
	}
	return errs
}

func validateHTTPRoute(s *resource.HTTPRouteSpec, path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if s.ParentRef.Name == "" {
		errs = append(errs, field.Required(path.Child("parentRef", "name"), "parentRef is required"))
	}
	if s.ParentRef.Namespace != "" {
		for _, msg := range validation.IsDNS1123Label(s.ParentRef.Namespace) {
			errs = append(errs, field.Invalid(path.Child("parentRef", "namespace"), s.ParentRef.Namespace, msg))
		}
	}
	for i, h := range s.Hostnames {
		errs = append(errs, validateHostname(h, path.Child("hostnames").Index(i))...)
	}
	for i, rule := range s.Rules {
		rp := path.Child("rules").Index(i)
		if rule.PathPrefix != "" && !strings.HasPrefix(rule.PathPrefix, "/") {
			errs = append(errs, field.Invalid(rp.Child("pathPrefix"), rule.PathPrefix, "must start with /"))
		}
		if len(rule.BackendRefs) == 0 {
			errs = append(errs, field.Required(rp.Child("backendRefs"), "at least one backend is required"))
		}
		for j, b := range rule.BackendRefs {
			bp := rp.Child("backendRefs").Index(j)
			if b.Name == "" {
				errs = append(errs, field.Required(bp.Child("name"), ""))
			}
			for _, msg := range validation.IsValidPortNum(int(b.Port)) {
				errs = append(errs, field.Invalid(bp.Child("port"), b.Port, msg))
			}
		}
	}
	return errs
}

func validateReferenceGrant(s *resource.ReferenceGrantSpec, path *field.Path) field.ErrorList {
	var errs field.ErrorList
	if len(s.From) == 0 {
		errs = append(errs, field.Required(path.Child("from"), "at least one source is required"))
	}
	if len(s.To) == 0 {
		errs = append(errs, field.Required(path.Child("to"), "at least one target is required"))
	}
	for i, f := range s.From {
		fp := path.Child("from").Index(i)
		if f.Kind == "" {
			errs = append(errs, field.Required(fp.Child("kind"), ""))
		}
		if f.Namespace == "" {
			errs = append(errs, field.Required(fp.Child("namespace"), ""))
		}
	}
	for i, t := range s.To {
		if t.Kind == "" {
			errs = append(errs, field.Required(path.Child("to").Index(i).Child("kind"), ""))
		}
	}
	return errs
}

func validateDatabaseCluster(s *resource.DatabaseClusterSpec, path *field.Path) field.ErrorList {
	if s.Instances <= 0 {
		return field.ErrorList{field.Invalid(path.Child("instances"), s.Instances, "must be at least 1")}
	}
	return nil
}

func validateApplication(s *resource.ApplicationSpec, path *field.Path) field.ErrorList {
	var errs field.ErrorList
	for i, ns := range s.Namespaces {
		for _, msg := range validation.IsDNS1123Label(ns) {
			errs = append(errs, field.Invalid(path.Child("namespaces").Index(i), ns, msg))
		}
	}
	return errs
}

// validateHostname accepts DNS subdomains with an optional leading wildcard
// label.
func validateHostname(h string, path *field.Path) field.ErrorList {
	var errs field.ErrorList
	for _, msg := range validation.IsDNS1123Subdomain(strings.TrimPrefix(h, "*.")) {
		errs = append(errs, field.Invalid(path, h, msg))
	}
	return errs
}
