// Package workload reads and writes the replica count of scaling targets.
package workload

import (
	"context"

	"github.com/OldStager01/generalscaler/pkg/models"
)

type ReplicaReader interface {
	CurrentReplicas(ctx context.Context, target models.ScalingTarget) (int, error)
}

type ReplicaWriter interface {
	SetReplicas(ctx context.Context, target models.ScalingTarget, replicas int) error
}

// Workload is a replica store that can be both read and written.
type Workload interface {
	ReplicaReader
	ReplicaWriter
}
