package workload

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/OldStager01/generalscaler/internal/logger"
	"github.com/OldStager01/generalscaler/pkg/models"
)

// FieldManager identifies replica patches in managedFields.
const FieldManager = "generalscaler"

// Deployments scales apps/v1 Deployments named by the target.
type Deployments struct {
	client kubernetes.Interface
}

var _ Workload = (*Deployments)(nil)

func NewDeployments(client kubernetes.Interface) *Deployments {
	return &Deployments{client: client}
}

// NewClientset loads in-cluster config, or the kubeconfig file when one is given.
func NewClientset(kubeconfig string, inCluster bool) (kubernetes.Interface, error) {
	var (
		cfg *rest.Config
		err error
	)
	if inCluster {
		cfg, err = rest.InClusterConfig()
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}
	return kubernetes.NewForConfig(cfg)
}

func (d *Deployments) CurrentReplicas(ctx context.Context, target models.ScalingTarget) (int, error) {
	deployment, err := d.client.AppsV1().Deployments(target.Namespace).Get(ctx, target.Name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return 0, fmt.Errorf("%w: %w: deployment %s", models.ErrReplicaRead, models.ErrTargetNotFound, target)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: deployment %s: %v", models.ErrReplicaRead, target, err)
	}

	// An unset replica count defaults to 1 in the apps/v1 API.
	if deployment.Spec.Replicas == nil {
		return 1, nil
	}
	return int(*deployment.Spec.Replicas), nil
}

func (d *Deployments) SetReplicas(ctx context.Context, target models.ScalingTarget, replicas int) error {
	patch := []byte(fmt.Sprintf(`{"spec":{"replicas":%d}}`, replicas))

	_, err := d.client.AppsV1().Deployments(target.Namespace).Patch(
		ctx, target.Name, types.MergePatchType, patch,
		metav1.PatchOptions{FieldManager: FieldManager},
	)
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: %w: deployment %s", models.ErrReplicaWrite, models.ErrTargetNotFound, target)
	}
	if err != nil {
		return fmt.Errorf("%w: deployment %s: %v", models.ErrReplicaWrite, target, err)
	}

	logger.WithTarget(target).Debugf("Patched deployment replicas to %d", replicas)
	return nil
}
