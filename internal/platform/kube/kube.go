// Package kube binds the platform capabilities to a Kubernetes cluster
// running cert-manager, a Gateway API implementation and CloudNativePG.
//
// All third-party kinds are handled as unstructured objects and applied with
// controllerutil.CreateOrUpdate, so the binding depends only on
// controller-runtime and apimachinery. Objects are created in the keel
// resource's namespace under the keel resource's name and carry the
// app.kubernetes.io/managed-by=keel label.
package kube

import (
	"fmt"

	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"keel/internal/platform"
)

// New returns the cluster-backed platform for c. The client's scheme must
// include the managed kinds (see NewScheme).
func New(c client.Client) platform.Platform {
	return platform.Platform{
		CA:       NewCertManager(c),
		Routing:  NewGatewayAPI(c),
		Database: NewCNPG(c),
	}
}

// NewClient creates a controller-runtime client using NewScheme.
func NewClient(cfg *rest.Config) (client.Client, error) {
	c, err := client.New(cfg, client.Options{Scheme: NewScheme()})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kubernetes client: %w", err)
	}
	return c, nil
}

// GetRestConfig returns the cluster configuration. An explicit kubeconfig
// path wins; otherwise controller-runtime's discovery is used (--kubeconfig,
// KUBECONFIG, in-cluster, ~/.kube/config).
func GetRestConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig != "" {
		cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load kubeconfig %s: %w", kubeconfig, err)
		}
		return cfg, nil
	}
	return ctrl.GetConfig()
}
