package workflows

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/reviewd/internal/config"
)

// DefaultTaskQueue is the worker task queue used when none is configured.
const DefaultTaskQueue = "reviews"

// Default specialist roster. Slot names are stable identifiers used as map keys
// and as finding ID prefixes.
var DefaultSpecialists = []string{"security", "correctness", "maintainability"}

// TaskPolicy bounds one unit of work: attempts, backoff and time budgets.
type TaskPolicy struct {
	MaxAttempts       int32         `json:"max_attempts"`
	InitialBackoff    time.Duration `json:"initial_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`
	MaximumBackoff    time.Duration `json:"maximum_backoff"`
	PerAttemptTimeout time.Duration `json:"per_attempt_timeout"`
	HeartbeatTimeout  time.Duration `json:"heartbeat_timeout"`
	// Budget caps the task's total wall-clock time across all attempts. Zero
	// means unbounded.
	Budget time.Duration `json:"budget,omitempty"`
}

// Backoff returns the wait before the given retry (attempt is 1-based and
// refers to the attempt that just failed).
func (p TaskPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= p.BackoffMultiplier
	}
	if p.MaximumBackoff > 0 && time.Duration(d) > p.MaximumBackoff {
		return p.MaximumBackoff
	}
	return time.Duration(d)
}

// ReviewPolicy holds the per-session tunables. It travels with the workflow
// input so a resumed execution keeps the settings it started with.
type ReviewPolicy struct {
	Specialists           []string      `json:"specialists"`
	FindingsPerSpecialist int           `json:"findings_per_specialist"`
	WindowDuration        time.Duration `json:"window_duration"`
	WindowExtension       time.Duration `json:"window_extension"`
	CheckpointThreshold   int           `json:"checkpoint_threshold"`
	TaskQueue             string        `json:"task_queue,omitempty"`

	Fetch       TaskPolicy `json:"fetch"`
	Specialist  TaskPolicy `json:"specialist"`
	Challenger  TaskPolicy `json:"challenger"`
	Arbitration TaskPolicy `json:"arbitration"`
	Synthesis   TaskPolicy `json:"synthesis"`
	Persist     TaskPolicy `json:"persist"`
}

// DefaultReviewPolicy returns production defaults.
func DefaultReviewPolicy() ReviewPolicy {
	llm := TaskPolicy{
		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		BackoffMultiplier: 2.0,
		MaximumBackoff:    time.Minute,
		PerAttemptTimeout: 3 * time.Minute,
		HeartbeatTimeout:  30 * time.Second,
	}
	specialist := llm
	specialist.Budget = 10 * time.Minute

	return ReviewPolicy{
		Specialists:           append([]string(nil), DefaultSpecialists...),
		FindingsPerSpecialist: 2,
		WindowDuration:        600 * time.Second,
		WindowExtension:       120 * time.Second,
		CheckpointThreshold:   10000,
		Fetch: TaskPolicy{
			MaxAttempts:       3,
			InitialBackoff:    time.Second,
			BackoffMultiplier: 2.0,
			MaximumBackoff:    30 * time.Second,
			PerAttemptTimeout: time.Minute,
		},
		Specialist:  specialist,
		Challenger:  llm,
		Arbitration: llm,
		Synthesis:   llm,
		Persist: TaskPolicy{
			MaxAttempts:       5,
			InitialBackoff:    500 * time.Millisecond,
			BackoffMultiplier: 2.0,
			MaximumBackoff:    10 * time.Second,
			PerAttemptTimeout: 30 * time.Second,
		},
	}
}

// ApplyDefaults fills unset fields from DefaultReviewPolicy.
func (p *ReviewPolicy) ApplyDefaults() {
	d := DefaultReviewPolicy()
	if len(p.Specialists) == 0 {
		p.Specialists = d.Specialists
	}
	if p.FindingsPerSpecialist == 0 {
		p.FindingsPerSpecialist = d.FindingsPerSpecialist
	}
	if p.WindowDuration == 0 {
		p.WindowDuration = d.WindowDuration
	}
	if p.WindowExtension == 0 {
		p.WindowExtension = d.WindowExtension
	}
	if p.CheckpointThreshold == 0 {
		p.CheckpointThreshold = d.CheckpointThreshold
	}
	p.Fetch.applyDefaults(d.Fetch)
	p.Specialist.applyDefaults(d.Specialist)
	p.Challenger.applyDefaults(d.Challenger)
	p.Arbitration.applyDefaults(d.Arbitration)
	p.Synthesis.applyDefaults(d.Synthesis)
	p.Persist.applyDefaults(d.Persist)
}

func (p *TaskPolicy) applyDefaults(d TaskPolicy) {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.InitialBackoff == 0 {
		p.InitialBackoff = d.InitialBackoff
	}
	if p.BackoffMultiplier == 0 {
		p.BackoffMultiplier = d.BackoffMultiplier
	}
	if p.MaximumBackoff == 0 {
		p.MaximumBackoff = d.MaximumBackoff
	}
	if p.PerAttemptTimeout == 0 {
		p.PerAttemptTimeout = d.PerAttemptTimeout
	}
	if p.HeartbeatTimeout == 0 {
		p.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if p.Budget == 0 {
		p.Budget = d.Budget
	}
}

// Validate checks the policy for values the workflow cannot run with.
func (p ReviewPolicy) Validate() error {
	if len(p.Specialists) == 0 {
		return fmt.Errorf("%w: specialists", ErrEmptyField)
	}
	seen := make(map[string]bool, len(p.Specialists))
	for _, name := range p.Specialists {
		if !specialistNamePattern.MatchString(name) {
			return fmt.Errorf("%w: specialist name %q", ErrInvalidInput, name)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate specialist %q", ErrInvalidInput, name)
		}
		seen[name] = true
	}
	if p.FindingsPerSpecialist < 1 {
		return fmt.Errorf("%w: findings per specialist must be positive", ErrInvalidInput)
	}
	if p.WindowDuration <= 0 || p.WindowExtension <= 0 {
		return fmt.Errorf("%w: window durations must be positive", ErrInvalidInput)
	}
	if p.CheckpointThreshold < 1 {
		return fmt.Errorf("%w: checkpoint threshold must be positive", ErrInvalidInput)
	}
	return nil
}

// PolicyFromConfig overlays operator settings on DefaultReviewPolicy.
func PolicyFromConfig(rc config.ReviewConfig, taskQueue string) ReviewPolicy {
	p := ReviewPolicy{
		Specialists:           append([]string(nil), rc.Specialists...),
		FindingsPerSpecialist: rc.FindingsPerSpecialist,
		WindowDuration:        rc.WindowDuration.Duration(),
		WindowExtension:       rc.WindowExtension.Duration(),
		CheckpointThreshold:   rc.CheckpointThreshold,
		TaskQueue:             taskQueue,
		Specialist: TaskPolicy{
			MaxAttempts:       int32(rc.SpecialistAttempts),
			PerAttemptTimeout: rc.SpecialistTimeout.Duration(),
			Budget:            rc.SpecialistBudget.Duration(),
		},
	}
	p.ApplyDefaults()
	return p
}
