package workflows

// Names of the signals, updates and queries the review workflows handle.
const (
	// SignalExtendWindow pushes the challenge deadline back. No payload.
	SignalExtendWindow = "extend-window"

	// SignalChallengerResult is sent by a dispute saga to its parent with a
	// ChallengerReport.
	SignalChallengerResult = "challenger-result"

	// SignalSpecialistProgress is sent by specialist activities with a
	// SpecialistProgress payload.
	SignalSpecialistProgress = "specialist-progress"

	// SignalHumanChallenge delivers a HumanChallenge to a dispute saga.
	SignalHumanChallenge = "human-challenge"

	// UpdateSubmitChallenges records human challenges and closes the window.
	UpdateSubmitChallenges = "submit-challenges"

	// QueryGetState returns the orchestrator's ReviewState.
	QueryGetState = "get-state"

	// QueryGetPhase returns a dispute saga's DisputePhase.
	QueryGetPhase = "get-phase"
)

// Workflow type names registered with the worker.
const (
	ReviewWorkflowName  = "ReviewWorkflow"
	DisputeWorkflowName = "DisputeWorkflow"
)
