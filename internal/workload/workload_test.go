package workload

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"
	"k8s.io/utils/ptr"

	"github.com/OldStager01/generalscaler/pkg/models"
)

func deployment(namespace, name string, replicas *int32) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
		Spec:       appsv1.DeploymentSpec{Replicas: replicas},
	}
}

func TestDeployments_CurrentReplicas(t *testing.T) {
	client := fake.NewSimpleClientset(
		deployment("prod", "web", ptr.To[int32](3)),
		deployment("prod", "legacy", nil),
	)
	d := NewDeployments(client)
	ctx := context.Background()

	got, err := d.CurrentReplicas(ctx, models.NewTarget("prod", "web"))
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	got, err = d.CurrentReplicas(ctx, models.NewTarget("prod", "legacy"))
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = d.CurrentReplicas(ctx, models.NewTarget("prod", "missing"))
	assert.ErrorIs(t, err, models.ErrReplicaRead)
	assert.ErrorIs(t, err, models.ErrTargetNotFound)
	assert.Equal(t, models.FailureTransient, models.ClassifyError(err))
}

func TestDeployments_SetReplicas(t *testing.T) {
	client := fake.NewSimpleClientset(deployment("prod", "web", ptr.To[int32](3)))
	d := NewDeployments(client)
	ctx := context.Background()
	target := models.NewTarget("prod", "web")

	require.NoError(t, d.SetReplicas(ctx, target, 5))

	updated, err := client.AppsV1().Deployments("prod").Get(ctx, "web", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(5), *updated.Spec.Replicas)

	var patches []k8stesting.PatchAction
	for _, action := range client.Actions() {
		if p, ok := action.(k8stesting.PatchAction); ok {
			patches = append(patches, p)
		}
	}
	require.Len(t, patches, 1)
	assert.JSONEq(t, `{"spec":{"replicas":5}}`, string(patches[0].GetPatch()))
}

func TestDeployments_SetReplicasErrors(t *testing.T) {
	client := fake.NewSimpleClientset(deployment("prod", "web", ptr.To[int32](3)))
	client.PrependReactor("patch", "deployments", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("admission webhook denied the request")
	})
	d := NewDeployments(client)

	err := d.SetReplicas(context.Background(), models.NewTarget("prod", "web"), 5)
	assert.ErrorIs(t, err, models.ErrReplicaWrite)
	assert.Contains(t, err.Error(), "admission webhook")

	missing := NewDeployments(fake.NewSimpleClientset())
	err = missing.SetReplicas(context.Background(), models.NewTarget("prod", "web"), 5)
	assert.ErrorIs(t, err, models.ErrReplicaWrite)
	assert.ErrorIs(t, err, models.ErrTargetNotFound)
}

func TestMemory_Ensure(t *testing.T) {
	ctx := context.Background()
	web := models.NewTarget("prod", "web")
	m := NewMemory()

	assert.True(t, m.Ensure(web, 2))
	require.NoError(t, m.SetReplicas(ctx, web, 4))

	assert.False(t, m.Ensure(web, 2))
	got, err := m.CurrentReplicas(ctx, web)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
	assert.Equal(t, 1, m.Writes())
}

func TestMemory(t *testing.T) {
	var changes [][2]int
	m := NewMemory(OnReplicasChanged(func(_ models.ScalingTarget, from, to int) {
		changes = append(changes, [2]int{from, to})
	}))
	ctx := context.Background()
	web := models.NewTarget("prod", "web")

	_, err := m.CurrentReplicas(ctx, web)
	assert.ErrorIs(t, err, models.ErrTargetNotFound)
	assert.ErrorIs(t, m.SetReplicas(ctx, web, 2), models.ErrReplicaWrite)

	m.Set(web, 3)
	require.NoError(t, m.SetReplicas(ctx, web, 5))
	got, err := m.CurrentReplicas(ctx, web)
	require.NoError(t, err)
	assert.Equal(t, 5, got)

	m.FailWrites(web, errors.New("quota exceeded"))
	assert.ErrorIs(t, m.SetReplicas(ctx, web, 7), models.ErrReplicaWrite)
	got, _ = m.CurrentReplicas(ctx, web)
	assert.Equal(t, 5, got)

	m.FailWrites(web, nil)
	require.NoError(t, m.SetReplicas(ctx, web, 4))

	assert.Equal(t, 2, m.Writes())
	assert.Equal(t, [][2]int{{3, 5}, {5, 4}}, changes)
	assert.Equal(t, []models.ScalingTarget{web}, m.Targets())
}
