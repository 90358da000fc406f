package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"keel/pkg/logging"
)

// ManifestLabel marks ConfigMaps that carry manifests.
const ManifestLabel = "keel.dev/manifest"

// Source reads the current manifest tree.
type Source interface {
	ReadTree(ctx context.Context) ([]Document, error)
}

// FilesystemSource reads *.yaml and *.yml files below a directory. Root may
// also name a single file.
type FilesystemSource struct {
	Root string
}

// NewFilesystemSource creates a source rooted at root.
func NewFilesystemSource(root string) *FilesystemSource {
	return &FilesystemSource{Root: root}
}

// ReadTree returns the manifest files in lexical path order. Hidden files and
// directories are skipped.
func (s *FilesystemSource) ReadTree(ctx context.Context) ([]Document, error) {
	info, err := os.Stat(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifests from %s: %w", s.Root, err)
	}
	if !info.IsDir() {
		data, err := os.ReadFile(s.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", s.Root, err)
		}
		return []Document{{Source: s.Root, Data: data}}, nil
	}

	var paths []string
	err = filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != s.Root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && isYAMLFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk manifest directory %s: %w", s.Root, err)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
		}
		docs = append(docs, Document{Source: path, Data: data})
	}
	logging.Debug("ManifestSource", "Read %d manifest files from %s", len(docs), s.Root)
	return docs, nil
}

// ConfigMapSource reads manifests from ConfigMaps labelled
// keel.dev/manifest=true. Every data key ending in .yaml or .yml is one
// document.
type ConfigMapSource struct {
	client    client.Client
	namespace string
}

// NewConfigMapSource creates a source over the ConfigMaps in namespace. An
// empty namespace lists all namespaces.
func NewConfigMapSource(c client.Client, namespace string) *ConfigMapSource {
	return &ConfigMapSource{client: c, namespace: namespace}
}

// ReadTree lists the labelled ConfigMaps ordered by namespace, name and key.
func (s *ConfigMapSource) ReadTree(ctx context.Context) ([]Document, error) {
	var list corev1.ConfigMapList
	opts := []client.ListOption{client.MatchingLabels{ManifestLabel: "true"}}
	if s.namespace != "" {
		opts = append(opts, client.InNamespace(s.namespace))
	}
	if err := s.client.List(ctx, &list, opts...); err != nil {
		return nil, fmt.Errorf("failed to list manifest ConfigMaps: %w", err)
	}

	items := list.Items
	sort.Slice(items, func(i, j int) bool {
		if items[i].Namespace != items[j].Namespace {
			return items[i].Namespace < items[j].Namespace
		}
		return items[i].Name < items[j].Name
	})

	var docs []Document
	for _, cm := range items {
		keys := make([]string, 0, len(cm.Data))
		for k := range cm.Data {
			if isYAMLFile(k) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			docs = append(docs, Document{
				Source: fmt.Sprintf("configmap/%s/%s/%s", cm.Namespace, cm.Name, k),
				Data:   []byte(cm.Data[k]),
			})
		}
	}
	logging.Debug("ManifestSource", "Read %d manifest documents from %d ConfigMaps", len(docs), len(items))
	return docs, nil
}

// isYAMLFile checks if a file path is a YAML file.
func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
