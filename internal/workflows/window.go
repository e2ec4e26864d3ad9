package workflows

import (
	"sort"
	"time"
)

// ChallengeWindow is the human-input deadline shared by every dispute saga in
// a session. Only the absolute deadline is stored; remaining time is always
// derived from it.
type ChallengeWindow struct {
	Deadline        time.Time         `json:"deadline,omitempty"`
	Open            bool              `json:"open"`
	Opened          bool              `json:"opened"`
	OpenedAt        time.Time         `json:"opened_at,omitempty"`
	ClosedAt        time.Time         `json:"closed_at,omitempty"`
	Extensions      int               `json:"extensions"`
	HumanChallenges map[string]string `json:"human_challenges"`
}

// OpenFor opens the window for d starting at now. A window opens at most once
// per session; later calls are ignored.
func (w *ChallengeWindow) OpenFor(now time.Time, d time.Duration) bool {
	if w.Opened {
		return false
	}
	w.Opened = true
	w.Open = true
	w.OpenedAt = now
	w.Deadline = now.Add(d)
	if w.HumanChallenges == nil {
		w.HumanChallenges = make(map[string]string)
	}
	return true
}

// Extend pushes the current deadline back by d. It is a no-op on a closed
// window.
func (w *ChallengeWindow) Extend(d time.Duration) bool {
	if !w.Open {
		return false
	}
	w.Deadline = w.Deadline.Add(d)
	w.Extensions++
	return true
}

// Close shuts the window immediately regardless of the remaining time.
func (w *ChallengeWindow) Close(now time.Time) bool {
	if !w.Open {
		return false
	}
	w.Open = false
	w.ClosedAt = now
	return true
}

// Remaining is the time left before the deadline, or zero when closed or past due.
func (w *ChallengeWindow) Remaining(now time.Time) time.Duration {
	if !w.Open {
		return 0
	}
	if r := w.Deadline.Sub(now); r > 0 {
		return r
	}
	return 0
}

// Record stores human challenges keyed by finding ID. Later submissions for the
// same finding replace earlier ones. Blank text is ignored. The changed IDs are
// returned sorted so callers can act on them deterministically.
func (w *ChallengeWindow) Record(challenges map[string]string) []string {
	if w.HumanChallenges == nil {
		w.HumanChallenges = make(map[string]string)
	}
	var changed []string
	for id, text := range challenges {
		if text == "" {
			continue
		}
		w.HumanChallenges[id] = text
		changed = append(changed, id)
	}
	sort.Strings(changed)
	return changed
}

// HumanText returns the challenge recorded for a finding, or nil.
func (w *ChallengeWindow) HumanText(findingID string) *string {
	text, ok := w.HumanChallenges[findingID]
	if !ok {
		return nil
	}
	return &text
}
