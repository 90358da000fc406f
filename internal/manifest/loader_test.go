package manifest

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keel/internal/resource"
)

const shopManifest = `
apiVersion: keel.dev/v1alpha1
kind: Issuer
metadata:
  name: letsencrypt
  namespace: shop
spec:
  server: https://acme.test/directory
  email: ops@example.com
  solver: http01
---
kind: Certificate
metadata:
  name: web
  namespace: shop
  labels:
    app.kubernetes.io/part-of: storefront
spec:
  issuerRef:
    name: letsencrypt
  domains:
    - shop.example.com
    - "*.shop.example.com"
  renewBefore: 720h
---
kind: Gateway
metadata:
  name: public
  namespace: shop
spec:
  className: istio
  listeners:
    - name: https
      port: 443
      protocol: HTTPS
      certificateRef: web
---
kind: HTTPRoute
metadata:
  name: storefront
  namespace: shop
spec:
  parentRef:
    name: public
  hostnames: [shop.example.com]
  rules:
    - pathPrefix: /
      backendRefs:
        - name: storefront
          port: 8080
---
kind: DatabaseCluster
metadata:
  name: orders
  namespace: shop
spec:
  instances: 3
  version: "16"
---
kind: Application
metadata:
  name: storefront
  namespace: shop
  dependsOn:
    - DatabaseCluster/orders
spec:
  description: the shop
`

func load(t *testing.T, data string, opts Options) (*resource.Graph, []ValidationError) {
	t.Helper()
	return Load([]Document{{Source: "shop.yaml", Data: []byte(data)}}, opts)
}

func TestLoadFullManifest(t *testing.T) {
	g, errs := load(t, shopManifest, Options{})
	require.Empty(t, errs)
	require.NotNil(t, g)
	assert.Equal(t, 6, g.Len())

	cert, ok := g.Get(resource.NewID(resource.KindCertificate, "shop", "web"))
	require.True(t, ok)
	require.NotNil(t, cert.Spec.Certificate)
	assert.Equal(t, "letsencrypt", cert.Spec.Certificate.IssuerRef.Name)
	assert.Equal(t, 720*time.Hour, cert.Spec.Certificate.RenewBefore)
	assert.Equal(t, "storefront", cert.Labels["app.kubernetes.io/part-of"])
	assert.Equal(t, "shop.yaml#1", cert.Source)

	gw, ok := g.Get(resource.NewID(resource.KindGateway, "shop", "public"))
	require.True(t, ok)
	assert.Equal(t, int32(443), gw.Spec.Gateway.Listeners[0].Port)

	app, ok := g.Get(resource.NewID(resource.KindApplication, "shop", "storefront"))
	require.True(t, ok)
	assert.Equal(t, []resource.ID{resource.NewID(resource.KindDatabaseCluster, "shop", "orders")}, app.DependsOn)
}

func TestLoadDefaultsNamespace(t *testing.T) {
	manifest := `
kind: DatabaseCluster
metadata:
  name: orders
spec:
  instances: 1
`
	g, errs := load(t, manifest, Options{})
	require.Empty(t, errs)
	assert.True(t, g.Has(resource.NewID(resource.KindDatabaseCluster, "default", "orders")))

	g, errs = load(t, manifest, Options{DefaultNamespace: "shop"})
	require.Empty(t, errs)
	assert.True(t, g.Has(resource.NewID(resource.KindDatabaseCluster, "shop", "orders")))
}

func TestLoadSkipsEmptyDocuments(t *testing.T) {
	manifest := `
---
# nothing here
---
kind: DatabaseCluster
metadata:
  name: orders
spec:
  instances: 1
---
`
	g, errs := load(t, manifest, Options{})
	require.Empty(t, errs)
	assert.Equal(t, 1, g.Len())
}

func TestLoadTemplates(t *testing.T) {
	manifest := `
kind: DatabaseCluster
metadata:
  name: {{ .name | lower }}
  namespace: {{ .namespace | default "shop" }}
spec:
  instances: {{ .replicas }}
`
	g, errs := load(t, manifest, Options{Values: map[string]interface{}{"name": "Orders", "namespace": "", "replicas": 5}})
	require.Empty(t, errs)

	db, ok := g.Get(resource.NewID(resource.KindDatabaseCluster, "shop", "orders"))
	require.True(t, ok)
	assert.Equal(t, int32(5), db.Spec.DatabaseCluster.Instances)
}

func TestLoadRejections(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		values   map[string]interface{}
		want     string
	}{
		{
			name:     "unknown kind",
			manifest: "kind: Deployment\nmetadata:\n  name: web\n",
			want:     `kind: Unsupported value: "Deployment"`,
		},
		{
			name:     "missing kind",
			manifest: "metadata:\n  name: web\n",
			want:     "kind: Required value",
		},
		{
			name:     "wrong apiVersion",
			manifest: "apiVersion: v1\nkind: DatabaseCluster\nmetadata:\n  name: orders\nspec:\n  instances: 1\n",
			want:     "apiVersion: Unsupported value",
		},
		{
			name:     "missing name",
			manifest: "kind: DatabaseCluster\nspec:\n  instances: 1\n",
			want:     "metadata.name: Required value",
		},
		{
			name:     "invalid name",
			manifest: "kind: DatabaseCluster\nmetadata:\n  name: Orders_DB\nspec:\n  instances: 1\n",
			want:     "metadata.name: Invalid value",
		},
		{
			name:     "zero instances",
			manifest: "kind: DatabaseCluster\nmetadata:\n  name: orders\nspec:\n  instances: 0\n",
			want:     "spec.instances: Invalid value",
		},
		{
			name:     "negative instances",
			manifest: "kind: DatabaseCluster\nmetadata:\n  name: orders\nspec:\n  instances: -2\n",
			want:     "must be at least 1",
		},
		{
			name:     "unknown spec field",
			manifest: "kind: DatabaseCluster\nmetadata:\n  name: orders\nspec:\n  instances: 1\n  replicas: 3\n",
			want:     "field replicas not found",
		},
		{
			name:     "unknown top-level field",
			manifest: "kind: DatabaseCluster\nmetadata:\n  name: orders\nstatus: {}\nspec:\n  instances: 1\n",
			want:     "field status not found",
		},
		{
			name:     "missing issuerRef",
			manifest: "kind: Certificate\nmetadata:\n  name: web\nspec:\n  domains: [a.example.com]\n",
			want:     "spec.issuerRef.name: Required value",
		},
		{
			name:     "empty domains",
			manifest: "kind: Certificate\nmetadata:\n  name: web\nspec:\n  issuerRef: {name: le}\n  domains: []\n",
			want:     "spec.domains: Required value",
		},
		{
			name:     "invalid domain",
			manifest: "kind: Certificate\nmetadata:\n  name: web\nspec:\n  issuerRef: {name: le}\n  domains: [\"not a domain\"]\n",
			want:     "spec.domains[0]: Invalid value",
		},
		{
			name:     "missing parentRef",
			manifest: "kind: HTTPRoute\nmetadata:\n  name: r\nspec:\n  rules:\n    - backendRefs: [{name: svc, port: 80}]\n",
			want:     "spec.parentRef.name: Required value",
		},
		{
			name:     "grant without from and to",
			manifest: "kind: ReferenceGrant\nmetadata:\n  name: g\nspec: {}\n",
			want:     "spec.from: Required value",
		},
		{
			name:     "certificate on plain HTTP listener",
			manifest: "kind: Gateway\nmetadata:\n  name: gw\nspec:\n  className: istio\n  listeners:\n    - {name: http, port: 80, protocol: HTTP, certificateRef: web}\n",
			want:     "only HTTPS and TLS listeners terminate TLS",
		},
		{
			name:     "malformed dependsOn",
			manifest: "kind: Application\nmetadata:\n  name: app\n  dependsOn: [\"Widget/x/y\"]\n",
			want:     "metadata.dependsOn[0]: Invalid value",
		},
		{
			name:     "yaml syntax",
			manifest: "kind: DatabaseCluster\nmetadata: [unclosed\n",
			want:     "invalid YAML",
		},
		{
			name:     "template failure",
			manifest: "kind: DatabaseCluster\nmetadata:\n  name: {{ .missing }}\n",
			want:     "failed to render template",
		},
		{
			name:     "template syntax",
			manifest: "kind: DatabaseCluster\nmetadata:\n  name: {{ .name \n",
			want:     "invalid template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, errs := load(t, tt.manifest, Options{Values: tt.values})
			assert.Nil(t, g)
			require.NotEmpty(t, errs)

			var msgs []string
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			assert.Contains(t, strings.Join(msgs, "\n"), tt.want)
		})
	}
}

func TestLoadRejectsDuplicateIdentity(t *testing.T) {
	doc := "kind: DatabaseCluster\nmetadata:\n  name: orders\n  namespace: shop\nspec:\n  instances: 1\n"
	g, errs := Load([]Document{
		{Source: "a.yaml", Data: []byte(doc)},
		{Source: "b.yaml", Data: []byte(doc)},
	}, Options{})

	assert.Nil(t, g)
	require.Len(t, errs, 1)
	assert.Equal(t, "b.yaml#0", errs[0].Source)
	assert.Contains(t, errs[0].Error(), "Duplicate value")
	assert.Equal(t, resource.NewID(resource.KindDatabaseCluster, "shop", "orders"), errs[0].ID)
}

func TestLoadOneBadDocumentRejectsEverything(t *testing.T) {
	manifest := shopManifest + "---\nkind: DatabaseCluster\nmetadata:\n  name: broken\nspec:\n  instances: 0\n"
	g, errs := load(t, manifest, Options{})

	assert.Nil(t, g)
	require.Len(t, errs, 1)
	assert.Equal(t, 6, errs[0].Index)
	assert.Equal(t, "shop.yaml#6", errs[0].Location())
}

func TestAggregate(t *testing.T) {
	assert.NoError(t, Aggregate(nil))

	err := Aggregate([]ValidationError{
		{Source: "a.yaml", Index: 0, Err: assert.AnError},
		{Source: "b.yaml", Index: -1, Err: assert.AnError},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.yaml#0")
	assert.Contains(t, err.Error(), "b.yaml:")
}
