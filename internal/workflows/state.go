package workflows

import (
	"time"
)

// NewReviewState seeds the aggregate for a fresh session. Every specialist slot
// starts pending.
func NewReviewState(req ReviewRequest, now time.Time) *ReviewState {
	slots := make(map[string]*SpecialistSlot, len(req.Policy.Specialists))
	for _, name := range req.Policy.Specialists {
		slots[name] = &SpecialistSlot{Name: name, Status: SlotPending}
	}
	return &ReviewState{
		SchemaVersion: SnapshotVersion,
		SessionID:     req.SessionID,
		Reference:     req.Reference,
		Context:       req.Context,
		Status:        StatusRunning,
		Phase:         PhaseFetching,
		Specialists:   slots,
		Disputes:      []DisputeRecord{},
		Window:        ChallengeWindow{HumanChallenges: map[string]string{}},
		Policy:        req.Policy,
		Meta: RuntimeMeta{
			StartedAt:    now,
			PhaseTimings: map[string]PhaseTiming{},
		},
	}
}

// upgrade fills fields an older snapshot may be missing.
func (s *ReviewState) upgrade() {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = 1
	}
	if s.Specialists == nil {
		s.Specialists = map[string]*SpecialistSlot{}
	}
	for name, slot := range s.Specialists {
		if slot == nil {
			s.Specialists[name] = &SpecialistSlot{Name: name, Status: SlotPending}
		} else if slot.Name == "" {
			slot.Name = name
		}
	}
	if s.Disputes == nil {
		s.Disputes = []DisputeRecord{}
	}
	if s.Window.HumanChallenges == nil {
		s.Window.HumanChallenges = map[string]string{}
	}
	if s.Meta.PhaseTimings == nil {
		s.Meta.PhaseTimings = map[string]PhaseTiming{}
	}
	s.Policy.ApplyDefaults()
	for _, name := range s.Policy.Specialists {
		if _, ok := s.Specialists[name]; !ok {
			s.Specialists[name] = &SpecialistSlot{Name: name, Status: SlotPending}
		}
	}
	s.SchemaVersion = SnapshotVersion
}

// Clone returns a deep copy safe to hand to queries and to continue-as-new.
func (s *ReviewState) Clone() *ReviewState {
	if s == nil {
		return nil
	}
	c := *s
	if s.Artifact != nil {
		a := *s.Artifact
		c.Artifact = &a
	}
	c.Specialists = make(map[string]*SpecialistSlot, len(s.Specialists))
	for name, slot := range s.Specialists {
		cp := *slot
		if slot.Findings != nil {
			cp.Findings = append([]Finding{}, slot.Findings...)
		}
		c.Specialists[name] = &cp
	}
	c.Disputes = make([]DisputeRecord, len(s.Disputes))
	for i, d := range s.Disputes {
		c.Disputes[i] = d.clone()
	}
	c.Window = s.Window
	c.Window.HumanChallenges = cloneStrings(s.Window.HumanChallenges)
	if s.Verdict != nil {
		v := Verdict{Summary: s.Verdict.Summary, Findings: make([]VerdictFinding, len(s.Verdict.Findings))}
		for i, f := range s.Verdict.Findings {
			f.ChallengeSources = append([]string(nil), f.ChallengeSources...)
			v.Findings[i] = f
		}
		c.Verdict = &v
	}
	c.Policy.Specialists = append([]string(nil), s.Policy.Specialists...)
	c.Meta.PhaseTimings = make(map[string]PhaseTiming, len(s.Meta.PhaseTimings))
	for k, v := range s.Meta.PhaseTimings {
		c.Meta.PhaseTimings[k] = v
	}
	return &c
}

func (d DisputeRecord) clone() DisputeRecord {
	c := d
	if d.Challenger != nil {
		ch := *d.Challenger
		ch.Challenge = cloneStringPtr(d.Challenger.Challenge)
		c.Challenger = &ch
	}
	c.HumanChallenge = cloneStringPtr(d.HumanChallenge)
	if d.Stances != nil {
		c.Stances = make(map[string]Stance, len(d.Stances))
		for k, v := range d.Stances {
			c.Stances[k] = v
		}
	}
	c.ChallengeSources = append([]string(nil), d.ChallengeSources...)
	return c
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// disputeIndex returns the position of the dispute for findingID, or -1.
func (s *ReviewState) disputeIndex(findingID string) int {
	for i := range s.Disputes {
		if s.Disputes[i].Finding.ID == findingID {
			return i
		}
	}
	return -1
}

// SurvivingFindings returns the findings selected for disputes, in slot order.
func (s *ReviewState) SurvivingFindings() []Finding {
	return SelectFindings(s.Policy.Specialists, s.Specialists, s.Policy.FindingsPerSpecialist)
}

// DoneCount reports how many specialist slots are terminal.
func (s *ReviewState) DoneCount() (done, total int) {
	for _, slot := range s.Specialists {
		if slot.Status.Terminal() {
			done++
		}
	}
	return done, len(s.Specialists)
}

func (s *ReviewState) startPhase(name string, now time.Time) {
	t := s.Meta.PhaseTimings[name]
	if t.Start.IsZero() {
		t.Start = now
	}
	s.Meta.PhaseTimings[name] = t
}

func (s *ReviewState) endPhase(name string, now time.Time) {
	t := s.Meta.PhaseTimings[name]
	if t.Start.IsZero() {
		t.Start = now
	}
	t.End = now
	s.Meta.PhaseTimings[name] = t
}
