package http

import (
	"net/http"
	"strconv"

	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/store"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const maxHistoryLimit = 200

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleStartReview(c echo.Context) error {
	var req control.StartRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid start request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Reference == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "reference field is required")
	}

	id, err := s.control.Start(c.Request().Context(), req)
	if err != nil {
		return err
	}
	s.counters.sessionsStarted.WithLabelValues("api").Inc()
	return c.JSON(http.StatusCreated, StartReviewResponse{SessionID: id})
}

func (s *Server) handleCurrentReview(c echo.Context) error {
	st, err := s.control.Active(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleGetReview(c echo.Context) error {
	st, err := s.control.GetState(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) handleCancelReview(c echo.Context) error {
	if err := s.control.Cancel(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleExtendWindow(c echo.Context) error {
	if err := s.control.ExtendWindow(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	s.counters.windowExtensions.Inc()
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) handleSubmitChallenges(c echo.Context) error {
	var req SubmitChallengesRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid challenge submission", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	res, err := s.control.SubmitChallenges(c.Request().Context(), c.Param("id"), req.Challenges)
	if err != nil {
		return err
	}
	s.counters.challengesSubmitted.Add(float64(len(req.Challenges)))
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleHistory(c echo.Context) error {
	limit := store.DefaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxHistoryLimit)
	}

	if s.history == nil {
		return c.JSON(http.StatusOK, HistoryResponse{Records: []store.Record{}})
	}
	records, err := s.history.List(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HistoryResponse{Records: records})
}
