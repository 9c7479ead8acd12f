// Package safety owns the per-target actuation history and decides whether a
// desired replica count may be applied now, and by how much.
package safety

import (
	"sort"
	"sync"
	"time"

	"github.com/OldStager01/generalscaler/pkg/models"
)

// Governor enforces cooldown and rate limits. Records are only written by a
// committed actuation, so blocked or failed attempts never move the cooldown.
type Governor struct {
	mu      sync.RWMutex
	records map[models.ScalingTarget]models.ActuationRecord

	locksMu sync.Mutex
	locks   map[models.ScalingTarget]*sync.Mutex
}

func NewGovernor() *Governor {
	return &Governor{
		records: make(map[models.ScalingTarget]models.ActuationRecord),
		locks:   make(map[models.ScalingTarget]*sync.Mutex),
	}
}

func (g *Governor) lockFor(target models.ScalingTarget) *sync.Mutex {
	g.locksMu.Lock()
	defer g.locksMu.Unlock()

	l, ok := g.locks[target]
	if !ok {
		l = &sync.Mutex{}
		g.locks[target] = l
	}
	return l
}

// Begin takes the target's lock and returns a handle for one
// check-write-record sequence. Other targets are not blocked.
// The caller must Release the handle.
func (g *Governor) Begin(target models.ScalingTarget) *Actuation {
	l := g.lockFor(target)
	l.Lock()
	return &Actuation{governor: g, target: target, lock: l}
}

// Authorize evaluates a decision without keeping the target locked. Use
// Begin when the result will be written.
func (g *Governor) Authorize(
	target models.ScalingTarget,
	desired, current int,
	safety models.SafetyConfig,
	now time.Time,
) *models.ScalingDecision {
	a := g.Begin(target)
	defer a.Release()
	return a.Authorize(desired, current, safety, now)
}

func (g *Governor) authorize(
	target models.ScalingTarget,
	desired, current int,
	safety models.SafetyConfig,
	now time.Time,
) *models.ScalingDecision {
	decision := models.NewDecision(target, now)
	decision.CurrentReplicas = current
	decision.DesiredReplicas = desired

	if remaining := g.CooldownRemaining(target, safety, now); remaining > 0 {
		decision.ActuatedReplicas = current
		decision.Blocked = true
		decision.BlockReason = models.BlockReasonCooldown
		decision.CooldownRemaining = remaining
		return decision
	}

	actuated := desired
	switch {
	case desired > current:
		if limit := safety.ScaleUpLimit(); limit <= desired-current {
			actuated = current + limit
		}
	case desired < current:
		if limit := safety.ScaleDownLimit(); limit <= current-desired {
			actuated = current - limit
		}
	}
	decision.ActuatedReplicas = actuated
	decision.RateLimited = actuated != desired

	return decision
}

// CooldownRemaining is how long the target stays blocked at now. Zero means
// no cooldown is in force.
func (g *Governor) CooldownRemaining(target models.ScalingTarget, safety models.SafetyConfig, now time.Time) time.Duration {
	g.mu.RLock()
	record, exists := g.records[target]
	g.mu.RUnlock()
	if !exists {
		return 0
	}

	elapsed := now.Sub(record.Timestamp)
	cooldown := safety.Cooldown()
	if elapsed >= cooldown {
		return 0
	}
	return cooldown - elapsed
}

func (g *Governor) LastActuation(target models.ScalingTarget) (models.ActuationRecord, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	record, ok := g.records[target]
	return record, ok
}

// Records returns every actuation record, ordered by target key.
func (g *Governor) Records() []models.ActuationRecord {
	g.mu.RLock()
	out := make([]models.ActuationRecord, 0, len(g.records))
	for _, r := range g.records {
		out = append(out, r)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Target.Key() < out[j].Target.Key()
	})
	return out
}

// Reset forgets the target's last actuation, lifting any cooldown.
func (g *Governor) Reset(target models.ScalingTarget) {
	l := g.lockFor(target)
	l.Lock()
	defer l.Unlock()

	g.mu.Lock()
	delete(g.records, target)
	g.mu.Unlock()
}

func (g *Governor) record(target models.ScalingTarget, now time.Time, replicas int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[target] = models.ActuationRecord{
		Target:    target,
		Timestamp: now,
		Replicas:  replicas,
	}
}
