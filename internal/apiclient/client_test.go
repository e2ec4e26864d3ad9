package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", nil)
}

func TestClient_Start(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/reviews", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"session_id":"review-1"}`)
	})

	id, err := c.Start(context.Background(), control.StartRequest{Reference: "acme/widgets#42"})
	require.NoError(t, err)
	assert.Equal(t, "review-1", id)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"no active session", http.StatusNotFound, `{"error":"no active session"}`, control.ErrNoActiveSession},
		{"unknown session", http.StatusNotFound, `{"error":"session not found"}`, control.ErrSessionNotFound},
		{"running", http.StatusConflict, `{"error":"a review session is already running: review-0"}`, control.ErrSessionRunning},
		{"bad input", http.StatusBadRequest, `{"error":"reference field is required"}`, workflows.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			})
			_, err := c.Active(context.Background())
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("running message is not doubled", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"error":"a review session is already running: review-0"}`)
		})
		_, err := c.Start(context.Background(), control.StartRequest{Reference: "acme/widgets#1"})
		assert.EqualError(t, err, "a review session is already running: review-0")
	})

	t.Run("other statuses", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"internal error"}`)
		})
		err := c.Cancel(context.Background(), "review-1")
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, http.StatusInternalServerError, se.Code)
		assert.Equal(t, "internal error", se.Message)
	})
}

func TestClient_SessionOperations(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case r.URL.Path == "/api/v1/reviews/review-1/extend":
			w.WriteHeader(http.StatusAccepted)
		case r.URL.Path == "/api/v1/reviews/review-1/challenges":
			fmt.Fprint(w, `{"accepted":true}`)
		default:
			fmt.Fprint(w, `{"session_id":"review-1","phase":"disputes-running"}`)
		}
	})
	ctx := context.Background()

	require.NoError(t, c.Cancel(ctx, "review-1"))
	require.NoError(t, c.ExtendWindow(ctx, "review-1"))
	res, err := c.SubmitChallenges(ctx, "review-1", map[string]string{"security-1": "fine"})
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	st, err := c.GetState(ctx, "review-1")
	require.NoError(t, err)
	assert.Equal(t, workflows.PhaseDisputesRunning, st.Phase)

	assert.Equal(t, []string{
		"DELETE /api/v1/reviews/review-1",
		"POST /api/v1/reviews/review-1/extend",
		"POST /api/v1/reviews/review-1/challenges",
		"GET /api/v1/reviews/review-1",
	}, paths)
}

func TestClient_ListAndHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			fmt.Fprint(w, `{"status":"ok"}`)
		case "/api/v1/history":
			assert.Equal(t, "3", r.URL.Query().Get("limit"))
			fmt.Fprint(w, `{"records":[{"session_id":"review-2"},{"session_id":"review-1"}]}`)
		}
	})
	ctx := context.Background()

	status, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", status)

	records, err := c.List(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"review-2", "review-1"}, []string{records[0].SessionID, records[1].SessionID})
}
