package safety

import (
	"sync"
	"time"

	"github.com/OldStager01/generalscaler/pkg/models"
)

// Actuation holds a target's lock between the cooldown check and the record
// of a successful write.
type Actuation struct {
	governor *Governor
	target   models.ScalingTarget
	lock     *sync.Mutex
	once     sync.Once
}

func (a *Actuation) Target() models.ScalingTarget {
	return a.target
}

func (a *Actuation) Authorize(desired, current int, safety models.SafetyConfig, now time.Time) *models.ScalingDecision {
	return a.governor.authorize(a.target, desired, current, safety, now)
}

// Commit records a successful external write at now. Call it only after the
// write succeeded.
func (a *Actuation) Commit(now time.Time, replicas int) {
	a.governor.record(a.target, now, replicas)
}

// Release unlocks the target. It is safe to call more than once.
func (a *Actuation) Release() {
	a.once.Do(a.lock.Unlock)
}
