package policy

// Proportional scales replicas by the ratio of observed to target value
// once the metric leaves the dead-band.
type Proportional struct{}

var _ Policy = (*Proportional)(nil)

func NewProportional() *Proportional {
	return &Proportional{}
}

func (p *Proportional) Name() string {
	return string(KindSLO)
}

func (p *Proportional) Decide(in Input) int {
	return clamp(proportionalReplicas(in), in.MinReplicas, in.MaxReplicas)
}
