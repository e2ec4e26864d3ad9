// Package control is the review control plane: it starts, inspects, steers
// and cancels review sessions running on Temporal.
//
// At most one session runs at a time. Session IDs double as workflow IDs and
// have the form review-<uuid>, so every control call addresses the latest run
// of the workflow even after it has continued as new.
package control

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/reviewd/internal/logging"
	"github.com/fyrsmithlabs/reviewd/internal/source"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
)

// SessionPrefix prefixes every session (and workflow) ID.
const SessionPrefix = "review-"

var (
	// ErrNoActiveSession is returned when no session has been started.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionRunning is returned by Start while another session runs.
	ErrSessionRunning = errors.New("a review session is already running")

	// ErrSessionNotFound is returned for an unknown session ID.
	ErrSessionNotFound = errors.New("review session not found")
)

// StartRequest is the caller-facing start input.
type StartRequest struct {
	Reference string `json:"reference"`
	Context   string `json:"context,omitempty"`
}

// SubmitResult acknowledges a challenge submission.
type SubmitResult struct {
	Accepted bool `json:"accepted"`
}

// Service implements the control plane over a Temporal client.
type Service struct {
	client client.Client
	policy workflows.ReviewPolicy
	logger *logging.Logger

	mu     sync.Mutex
	active string
}

// New creates a service that starts sessions with policy. The policy's task
// queue selects the worker pool.
func New(c client.Client, policy workflows.ReviewPolicy, logger *logging.Logger) *Service {
	policy.ApplyDefaults()
	if policy.TaskQueue == "" {
		policy.TaskQueue = workflows.DefaultTaskQueue
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{client: c, policy: policy, logger: logger.Named("control")}
}

// Start validates req and starts a new session. It fails with
// ErrSessionRunning if the last started session has not completed.
func (s *Service) Start(ctx context.Context, req StartRequest) (string, error) {
	req.Reference = strings.TrimSpace(req.Reference)
	if _, err := source.ParseReference(req.Reference); err != nil {
		return "", fmt.Errorf("%w: %v", workflows.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != "" {
		running, err := s.isRunning(ctx, s.active)
		if err != nil {
			return "", err
		}
		if running {
			return "", fmt.Errorf("%w: %s", ErrSessionRunning, s.active)
		}
	}

	sessionID := SessionPrefix + uuid.NewString()
	request := workflows.ReviewRequest{
		SessionID: sessionID,
		Reference: req.Reference,
		Context:   req.Context,
		Policy:    s.policy,
	}
	if err := request.Validate(); err != nil {
		return "", err
	}

	run, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        sessionID,
		TaskQueue: s.policy.TaskQueue,
	}, workflows.ReviewWorkflow, workflows.ReviewInput{Request: request})
	if err != nil {
		return "", fmt.Errorf("failed to start review workflow: %w", err)
	}
	s.active = sessionID

	s.logger.Info(ctx, "review session started",
		zap.String("session_id", sessionID),
		zap.String("run_id", run.GetRunID()),
		zap.String("reference", req.Reference))
	return sessionID, nil
}

// Cancel requests cancellation of a session. An unknown or finished session
// is not an error.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	err := s.client.CancelWorkflow(ctx, sessionID, "")
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to cancel %s: %w", sessionID, err)
	}
	s.logger.Info(ctx, "review session cancel requested", zap.String("session_id", sessionID))
	return nil
}

// ExtendWindow pushes the session's challenge deadline back. It is a no-op
// once the window or the session has closed.
func (s *Service) ExtendWindow(ctx context.Context, sessionID string) error {
	err := s.client.SignalWorkflow(ctx, sessionID, "", workflows.SignalExtendWindow, nil)
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return s.classifyMissing(ctx, sessionID)
	}
	return fmt.Errorf("failed to extend window for %s: %w", sessionID, err)
}

// SubmitChallenges records human challenges and closes the window. The call
// blocks until the session has applied the submission.
func (s *Service) SubmitChallenges(ctx context.Context, sessionID string, challenges map[string]string) (SubmitResult, error) {
	req := workflows.SubmitChallengesRequest{Challenges: challenges}
	if err := req.Validate(); err != nil {
		return SubmitResult{}, err
	}

	handle, err := s.client.UpdateWorkflow(ctx, client.UpdateWorkflowOptions{
		WorkflowID:   sessionID,
		UpdateName:   workflows.UpdateSubmitChallenges,
		Args:         []interface{}{req},
		WaitForStage: client.WorkflowUpdateStageCompleted,
	})
	if err != nil {
		if isNotFound(err) {
			return SubmitResult{}, s.classifyMissing(ctx, sessionID)
		}
		return SubmitResult{}, fmt.Errorf("failed to submit challenges to %s: %w", sessionID, err)
	}

	var res workflows.SubmitChallengesResult
	if err := handle.Get(ctx, &res); err != nil {
		return SubmitResult{}, fmt.Errorf("submit challenges to %s: %w", sessionID, err)
	}
	s.logger.Info(ctx, "challenges submitted",
		zap.String("session_id", sessionID),
		zap.Int("challenges", len(challenges)),
		zap.Bool("accepted", res.Accepted))
	return SubmitResult{Accepted: res.Accepted}, nil
}

// GetState queries a session's current state.
func (s *Service) GetState(ctx context.Context, sessionID string) (*workflows.ReviewState, error) {
	val, err := s.client.QueryWorkflow(ctx, sessionID, "", workflows.QueryGetState)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to query %s: %w", sessionID, err)
	}
	var st workflows.ReviewState
	if err := val.Get(&st); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", sessionID, err)
	}
	return &st, nil
}

// Active returns the state of the most recently started session, running or
// complete.
func (s *Service) Active(ctx context.Context) (*workflows.ReviewState, error) {
	id := s.ActiveID()
	if id == "" {
		return nil, ErrNoActiveSession
	}
	return s.GetState(ctx, id)
}

// ActiveID returns the most recently started session ID, or "".
func (s *Service) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Adopt makes sessionID the active session, for example after a restart.
func (s *Service) Adopt(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = sessionID
}

func (s *Service) isRunning(ctx context.Context, sessionID string) (bool, error) {
	resp, err := s.client.DescribeWorkflowExecution(ctx, sessionID, "")
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe %s: %w", sessionID, err)
	}
	status := resp.GetWorkflowExecutionInfo().GetStatus()
	// A continued-as-new run is followed by a running one.
	return status == enumspb.WORKFLOW_EXECUTION_STATUS_RUNNING ||
		status == enumspb.WORKFLOW_EXECUTION_STATUS_CONTINUED_AS_NEW, nil
}

// classifyMissing distinguishes an unknown session from a finished one after
// the server reported not-found. Finished sessions make the call a no-op.
func (s *Service) classifyMissing(ctx context.Context, sessionID string) error {
	_, err := s.client.DescribeWorkflowExecution(ctx, sessionID, "")
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return fmt.Errorf("failed to describe %s: %w", sessionID, err)
}

func isNotFound(err error) bool {
	var nf *serviceerror.NotFound
	return errors.As(err, &nf)
}
