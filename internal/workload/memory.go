package workload

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/OldStager01/generalscaler/pkg/models"
)

// Memory keeps replica counts in process. It backs dry runs and local mode.
type Memory struct {
	mu        sync.RWMutex
	replicas  map[models.ScalingTarget]int
	writeErr  map[models.ScalingTarget]error
	writes    int
	onChanged func(target models.ScalingTarget, from, to int)
}

var _ Workload = (*Memory)(nil)

type MemoryOption func(*Memory)

// OnReplicasChanged runs synchronously after every successful write.
func OnReplicasChanged(fn func(target models.ScalingTarget, from, to int)) MemoryOption {
	return func(m *Memory) { m.onChanged = fn }
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		replicas: make(map[models.ScalingTarget]int),
		writeErr: make(map[models.ScalingTarget]error),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Set registers a target with a replica count, without counting as a write.
func (m *Memory) Set(target models.ScalingTarget, replicas int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicas[target] = replicas
}

// Ensure registers target at replicas unless it is already known. It reports
// whether the target was added.
func (m *Memory) Ensure(target models.ScalingTarget, replicas int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.replicas[target]; ok {
		return false
	}
	m.replicas[target] = replicas
	return true
}

// FailWrites makes every write for target return err. A nil err clears it.
func (m *Memory) FailWrites(target models.ScalingTarget, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.writeErr, target)
		return
	}
	m.writeErr[target] = err
}

func (m *Memory) CurrentReplicas(_ context.Context, target models.ScalingTarget) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	replicas, ok := m.replicas[target]
	if !ok {
		return 0, fmt.Errorf("%w: %w: %s", models.ErrReplicaRead, models.ErrTargetNotFound, target)
	}
	return replicas, nil
}

func (m *Memory) SetReplicas(_ context.Context, target models.ScalingTarget, replicas int) error {
	m.mu.Lock()
	if err := m.writeErr[target]; err != nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s: %v", models.ErrReplicaWrite, target, err)
	}
	from, ok := m.replicas[target]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %w: %s", models.ErrReplicaWrite, models.ErrTargetNotFound, target)
	}
	m.replicas[target] = replicas
	m.writes++
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged(target, from, replicas)
	}
	return nil
}

func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

func (m *Memory) Targets() []models.ScalingTarget {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.ScalingTarget, 0, len(m.replicas))
	for target := range m.replicas {
		out = append(out, target)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
