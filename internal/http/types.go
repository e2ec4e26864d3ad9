package http

import (
	"context"

	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

// Controller is the control plane the API fronts.
type Controller interface {
	Start(ctx context.Context, req control.StartRequest) (string, error)
	Cancel(ctx context.Context, sessionID string) error
	ExtendWindow(ctx context.Context, sessionID string) error
	SubmitChallenges(ctx context.Context, sessionID string, challenges map[string]string) (control.SubmitResult, error)
	GetState(ctx context.Context, sessionID string) (*workflows.ReviewState, error)
	Active(ctx context.Context) (*workflows.ReviewState, error)
}

// HistoryLister lists persisted review records.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]store.Record, error)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StartReviewResponse is the response body for POST /api/v1/reviews.
type StartReviewResponse struct {
	SessionID string `json:"session_id"`
}

// SubmitChallengesRequest is the request body for
// POST /api/v1/reviews/:id/challenges, keyed by finding ID.
type SubmitChallengesRequest struct {
	Challenges map[string]string `json:"challenges"`
}

// HistoryResponse is the response body for GET /api/v1/history.
type HistoryResponse struct {
	Records []store.Record `json:"records"`
}

// WebhookResponse is the response body for the GitHub webhook.
type WebhookResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
}
