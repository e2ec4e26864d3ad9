package http

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/google/go-github/v57/github"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var validNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// handleGitHubWebhook starts a review when a pull request is opened, reopened
// or pushed to. Deliveries arriving while a session runs are acknowledged and
// dropped.
func (s *Server) handleGitHubWebhook(c echo.Context) error {
	r := c.Request()
	payload, err := github.ValidatePayload(r, []byte(s.config.WebhookSecret.Value()))
	if err != nil {
		s.logger.Warn("invalid webhook signature", zap.Error(err))
		s.counters.webhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	eventType := github.WebHookType(r)
	event, err := github.ParseWebHook(eventType, payload)
	if err != nil {
		s.logger.Warn("failed to parse webhook", zap.Error(err))
		s.counters.webhookEvents.WithLabelValues(eventType, "rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	e, ok := event.(*github.PullRequestEvent)
	if !ok {
		s.counters.webhookEvents.WithLabelValues(eventType, "ignored").Inc()
		return c.JSON(http.StatusOK, WebhookResponse{Status: "ignored"})
	}
	switch e.GetAction() {
	case "opened", "synchronize", "reopened":
	default:
		s.counters.webhookEvents.WithLabelValues(eventType, "ignored").Inc()
		return c.JSON(http.StatusOK, WebhookResponse{Status: "ignored"})
	}
	if err := validatePREvent(e); err != nil {
		s.logger.Warn("invalid PR event data", zap.Error(err))
		s.counters.webhookEvents.WithLabelValues(eventType, "rejected").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pr := e.GetPullRequest()
	reference := fmt.Sprintf("%s/%s#%d", e.GetRepo().GetOwner().GetLogin(), e.GetRepo().GetName(), pr.GetNumber())
	id, err := s.control.Start(r.Context(), control.StartRequest{
		Reference: reference,
		Context:   pr.GetTitle(),
	})
	if errors.Is(err, control.ErrSessionRunning) {
		s.logger.Info("webhook skipped, session running", zap.String("reference", reference))
		s.counters.webhookEvents.WithLabelValues(eventType, "busy").Inc()
		return c.JSON(http.StatusAccepted, WebhookResponse{Status: "busy"})
	}
	if err != nil {
		s.counters.webhookEvents.WithLabelValues(eventType, "failed").Inc()
		return err
	}

	s.counters.webhookEvents.WithLabelValues(eventType, "started").Inc()
	s.counters.sessionsStarted.WithLabelValues("webhook").Inc()
	s.logger.Info("review started from webhook",
		zap.String("reference", reference),
		zap.String("action", e.GetAction()),
		zap.String("session_id", id))
	return c.JSON(http.StatusCreated, WebhookResponse{Status: "started", SessionID: id})
}

// validatePREvent rejects events whose identifiers could not form a valid
// reference.
func validatePREvent(e *github.PullRequestEvent) error {
	if e.GetPullRequest().GetNumber() <= 0 {
		return fmt.Errorf("invalid PR number")
	}
	if !validNameRegex.MatchString(e.GetRepo().GetOwner().GetLogin()) {
		return fmt.Errorf("invalid repository owner")
	}
	if !validNameRegex.MatchString(e.GetRepo().GetName()) {
		return fmt.Errorf("invalid repository name")
	}
	return nil
}
