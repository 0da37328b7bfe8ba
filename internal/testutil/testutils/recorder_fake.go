package helpers

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/metrics"
)

// Recorder is an in-memory metrics.Recorder for assertions.
type Recorder struct {
	mu               sync.Mutex
	StepDurations    map[string]int
	TimeoutFractions map[string]float64
	StepOutcomes     map[string]metrics.OutcomeLabel
	StageDurations   map[string]int
	RunDurations     map[string]int
	RunOutcomes      map[string]string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		StepDurations:    map[string]int{},
		TimeoutFractions: map[string]float64{},
		StepOutcomes:     map[string]metrics.OutcomeLabel{},
		StageDurations:   map[string]int{},
		RunDurations:     map[string]int{},
		RunOutcomes:      map[string]string{},
	}
}

func (r *Recorder) ObserveStepDuration(step string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StepDurations[step]++
}

func (r *Recorder) ObserveTimeoutFraction(step string, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.TimeoutFractions[step] = fraction
}

func (r *Recorder) IncStepOutcome(step string, outcome metrics.OutcomeLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StepOutcomes[step] = outcome
}

func (r *Recorder) ObserveStageDuration(stage string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StageDurations[stage]++
}

func (r *Recorder) ObserveRunDuration(mode string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RunDurations[mode]++
}

func (r *Recorder) IncRunOutcome(mode, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.RunOutcomes[mode] = outcome
}

var _ metrics.Recorder = (*Recorder)(nil)
