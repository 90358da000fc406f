package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
}

func sources(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Source)
	}
	return out
}

func TestFilesystemSourceReadTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b.yaml"), "b")
	writeFile(t, filepath.Join(root, "a.yml"), "a")
	writeFile(t, filepath.Join(root, "db", "orders.yaml"), "orders")
	writeFile(t, filepath.Join(root, "README.md"), "docs")
	writeFile(t, filepath.Join(root, ".hidden.yaml"), "hidden")
	writeFile(t, filepath.Join(root, ".git", "config.yaml"), "git")

	docs, err := NewFilesystemSource(root).ReadTree(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(root, "a.yml"),
		filepath.Join(root, "b.yaml"),
		filepath.Join(root, "db", "orders.yaml"),
	}, sources(docs))
	assert.Equal(t, "a", string(docs[0].Data))
}

func TestFilesystemSourceSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shop.yaml")
	writeFile(t, path, shopManifest)

	docs, err := NewFilesystemSource(path).ReadTree(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, path, docs[0].Source)

	g, errs := Load(docs, Options{})
	require.Empty(t, errs)
	assert.Equal(t, 6, g.Len())
}

func TestFilesystemSourceMissingRoot(t *testing.T) {
	_, err := NewFilesystemSource(filepath.Join(t.TempDir(), "missing")).ReadTree(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read manifests")
}

func testScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))
	return scheme
}

func manifestConfigMap(namespace, name string, labelled bool, data map[string]string) *corev1.ConfigMap {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Data:       data,
	}
	if labelled {
		cm.Labels = map[string]string{ManifestLabel: "true"}
	}
	return cm
}

func TestConfigMapSourceReadTree(t *testing.T) {
	c := fake.NewClientBuilder().
		WithScheme(testScheme()).
		WithObjects(
			manifestConfigMap("shop", "web", true, map[string]string{
				"routes.yaml": "routes",
				"certs.yml":   "certs",
				"notes.txt":   "ignored",
			}),
			manifestConfigMap("shop", "db", true, map[string]string{"orders.yaml": "orders"}),
			manifestConfigMap("billing", "db", true, map[string]string{"ledger.yaml": "ledger"}),
			manifestConfigMap("shop", "unrelated", false, map[string]string{"x.yaml": "x"}),
		).
		Build()

	docs, err := NewConfigMapSource(c, "").ReadTree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"configmap/billing/db/ledger.yaml",
		"configmap/shop/db/orders.yaml",
		"configmap/shop/web/certs.yml",
		"configmap/shop/web/routes.yaml",
	}, sources(docs))
	assert.Equal(t, "certs", string(docs[2].Data))

	docs, err = NewConfigMapSource(c, "billing").ReadTree(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"configmap/billing/db/ledger.yaml"}, sources(docs))
}

func TestConfigMapSourceEmpty(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(testScheme()).Build()

	docs, err := NewConfigMapSource(c, "shop").ReadTree(context.Background())
	require.NoError(t, err)
	assert.Empty(t, docs)
}
