package kube

import (
	"k8s.io/apimachinery/pkg/runtime"

	"keel/internal/resource"
)

// Wire shapes of the Gateway API specs. Only the fields keel manages are
// modelled; everything else on the live object is left alone.

type secretRefWire struct {
	Kind string `json:"kind,omitempty"`
	Name string `json:"name"`
}

type listenerTLSWire struct {
	Mode            string          `json:"mode,omitempty"`
	CertificateRefs []secretRefWire `json:"certificateRefs,omitempty"`
}

type listenerWire struct {
	Name     string           `json:"name"`
	Hostname string           `json:"hostname,omitempty"`
	Port     int32            `json:"port"`
	Protocol string           `json:"protocol"`
	TLS      *listenerTLSWire `json:"tls,omitempty"`
}

type gatewayWire struct {
	GatewayClassName string         `json:"gatewayClassName"`
	Listeners        []listenerWire `json:"listeners"`
}

type parentRefWire struct {
	Name        string `json:"name"`
	Namespace   string `json:"namespace,omitempty"`
	SectionName string `json:"sectionName,omitempty"`
}

type pathMatchWire struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type routeMatchWire struct {
	Path *pathMatchWire `json:"path,omitempty"`
}

type backendRefWire struct {
	Name      string `json:"name"`
	Namespace string `json:"namespace,omitempty"`
	Port      int32  `json:"port"`
}

type routeRuleWire struct {
	Matches     []routeMatchWire `json:"matches,omitempty"`
	BackendRefs []backendRefWire `json:"backendRefs,omitempty"`
}

type httpRouteWire struct {
	ParentRefs []parentRefWire `json:"parentRefs"`
	Hostnames  []string        `json:"hostnames,omitempty"`
	Rules      []routeRuleWire `json:"rules,omitempty"`
}

type grantFromWire struct {
	Group     string `json:"group"`
	Kind      string `json:"kind"`
	Namespace string `json:"namespace"`
}

type grantToWire struct {
	Group string `json:"group"`
	Kind  string `json:"kind"`
	Name  string `json:"name,omitempty"`
}

type referenceGrantWire struct {
	From []grantFromWire `json:"from"`
	To   []grantToWire   `json:"to"`
}

const gatewayGroup = "gateway.networking.k8s.io"

// groupFor returns the API group of a kind named in a ReferenceGrant.
func groupFor(kind string) string {
	switch kind {
	case "Gateway", "HTTPRoute", "GRPCRoute", "TLSRoute":
		return gatewayGroup
	}
	return ""
}

// routingSpecToUnstructured renders a keel routing spec as a Gateway API
// spec map. Listener certificateRefs point at the Secret of the same name,
// which is where the kube CertificateAuthority stores issued certificates by
// default.
func routingSpecToUnstructured(spec resource.Spec) (map[string]interface{}, error) {
	var wire interface{}
	switch {
	case spec.Gateway != nil:
		gw := gatewayWire{GatewayClassName: spec.Gateway.ClassName}
		for _, l := range spec.Gateway.Listeners {
			lw := listenerWire{Name: l.Name, Hostname: l.Hostname, Port: l.Port, Protocol: l.Protocol}
			if l.CertificateRef != "" {
				lw.TLS = &listenerTLSWire{Mode: "Terminate", CertificateRefs: []secretRefWire{{Kind: "Secret", Name: l.CertificateRef}}}
			}
			gw.Listeners = append(gw.Listeners, lw)
		}
		wire = &gw

	case spec.HTTPRoute != nil:
		r := spec.HTTPRoute
		hr := httpRouteWire{
			ParentRefs: []parentRefWire{{Name: r.ParentRef.Name, Namespace: r.ParentRef.Namespace, SectionName: r.ParentRef.SectionName}},
			Hostnames:  r.Hostnames,
		}
		for _, rule := range r.Rules {
			rw := routeRuleWire{}
			if rule.PathPrefix != "" {
				rw.Matches = []routeMatchWire{{Path: &pathMatchWire{Type: "PathPrefix", Value: rule.PathPrefix}}}
			}
			for _, b := range rule.BackendRefs {
				rw.BackendRefs = append(rw.BackendRefs, backendRefWire{Name: b.Name, Namespace: b.Namespace, Port: b.Port})
			}
			hr.Rules = append(hr.Rules, rw)
		}
		wire = &hr

	case spec.ReferenceGrant != nil:
		rg := referenceGrantWire{}
		for _, f := range spec.ReferenceGrant.From {
			rg.From = append(rg.From, grantFromWire{Group: groupFor(f.Kind), Kind: f.Kind, Namespace: f.Namespace})
		}
		for _, t := range spec.ReferenceGrant.To {
			rg.To = append(rg.To, grantToWire{Group: groupFor(t.Kind), Kind: t.Kind, Name: t.Name})
		}
		wire = &rg

	default:
		return nil, nil
	}

	return runtime.DefaultUnstructuredConverter.ToUnstructured(wire)
}

// routingSpecFromUnstructured is the inverse of routingSpecToUnstructured.
func routingSpecFromUnstructured(kind resource.Kind, obj map[string]interface{}) (resource.Spec, error) {
	switch kind {
	case resource.KindGateway:
		var gw gatewayWire
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj, &gw); err != nil {
			return resource.Spec{}, err
		}
		out := &resource.GatewaySpec{ClassName: gw.GatewayClassName}
		for _, l := range gw.Listeners {
			rl := resource.Listener{Name: l.Name, Hostname: l.Hostname, Port: l.Port, Protocol: l.Protocol}
			if l.TLS != nil && len(l.TLS.CertificateRefs) > 0 {
				rl.CertificateRef = l.TLS.CertificateRefs[0].Name
			}
			out.Listeners = append(out.Listeners, rl)
		}
		return resource.Spec{Gateway: out}, nil

	case resource.KindHTTPRoute:
		var hr httpRouteWire
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj, &hr); err != nil {
			return resource.Spec{}, err
		}
		out := &resource.HTTPRouteSpec{Hostnames: hr.Hostnames}
		if len(hr.ParentRefs) > 0 {
			p := hr.ParentRefs[0]
			out.ParentRef = resource.ParentRef{Name: p.Name, Namespace: p.Namespace, SectionName: p.SectionName}
		}
		for _, rw := range hr.Rules {
			rule := resource.RouteRule{}
			for _, m := range rw.Matches {
				if m.Path != nil && m.Path.Type == "PathPrefix" {
					rule.PathPrefix = m.Path.Value
					break
				}
			}
			for _, b := range rw.BackendRefs {
				rule.BackendRefs = append(rule.BackendRefs, resource.BackendRef{Name: b.Name, Namespace: b.Namespace, Port: b.Port})
			}
			out.Rules = append(out.Rules, rule)
		}
		return resource.Spec{HTTPRoute: out}, nil

	case resource.KindReferenceGrant:
		var rg referenceGrantWire
		if err := runtime.DefaultUnstructuredConverter.FromUnstructured(obj, &rg); err != nil {
			return resource.Spec{}, err
		}
		out := &resource.ReferenceGrantSpec{}
		for _, f := range rg.From {
			out.From = append(out.From, resource.GrantFrom{Kind: f.Kind, Namespace: f.Namespace})
		}
		for _, t := range rg.To {
			out.To = append(out.To, resource.GrantTo{Kind: t.Kind, Name: t.Name})
		}
		return resource.Spec{ReferenceGrant: out}, nil
	}
	return resource.Spec{}, nil
}
