package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

func (s *Server) registerTools() {
	s.registerStartTool()
	s.registerStateTool()
	s.registerExtendTool()
	s.registerSubmitTool()
}

// instrument records the call's outcome when the returned func runs.
func (s *Server) instrument(ctx context.Context, tool string) func(*error) {
	done := s.metrics.Begin(ctx, tool)
	return func(errp *error) {
		done(*errp)
		if *errp != nil {
			s.logger.Debug("tool failed", zap.String("tool", tool), zap.Error(*errp))
		}
	}
}

func textResult(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

// ===== review_start =====

type startInput struct {
	Reference string `json:"reference" jsonschema:"Artifact to review: owner/repo#123, a GitHub pull request URL, or git:<path>@<rev>"`
	Context   string `json:"context,omitempty" jsonschema:"Author's context for the reviewers"`
}

type startOutput struct {
	SessionID string `json:"session_id" jsonschema:"Review session identifier"`
}

func (s *Server) registerStartTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "review_start",
		Description: "Start a review session. Fails while another session is running.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args startInput) (_ *mcp.CallToolResult, _ startOutput, err error) {
		defer s.instrument(ctx, "review_start")(&err)

		if strings.TrimSpace(args.Reference) == "" {
			return nil, startOutput{}, fmt.Errorf("%w: reference", workflows.ErrEmptyField)
		}
		id, err := s.control.Start(ctx, control.StartRequest{Reference: args.Reference, Context: args.Context})
		if err != nil {
			return nil, startOutput{}, fmt.Errorf("review start failed: %w", err)
		}
		return textResult("Review started: %s", id), startOutput{SessionID: id}, nil
	})
}

// ===== review_state =====

type stateInput struct {
	SessionID string `json:"session_id,omitempty" jsonschema:"Session to inspect; the active session when empty"`
}

type specialistSummary struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Attempt  int    `json:"attempt"`
	Findings int    `json:"findings"`
	Error    string `json:"error,omitempty"`
}

type findingSummary struct {
	ID          string `json:"id"`
	Specialist  string `json:"specialist"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
	Ruling      string `json:"ruling,omitempty"`
}

type windowSummary struct {
	Open            bool   `json:"open"`
	Deadline        string `json:"deadline,omitempty"`
	Extensions      int    `json:"extensions"`
	HumanChallenges int    `json:"human_challenges"`
}

type verdictFinding struct {
	Severity       string `json:"severity"`
	Specialist     string `json:"specialist"`
	Description    string `json:"description"`
	Ruling         string `json:"ruling,omitempty"`
	Recommendation string `json:"recommendation"`
}

type stateOutput struct {
	SessionID       string              `json:"session_id"`
	Reference       string              `json:"reference"`
	Status          string              `json:"status"`
	Phase           string              `json:"phase"`
	FetchError      string              `json:"fetch_error,omitempty"`
	Specialists     []specialistSummary `json:"specialists"`
	Findings        []findingSummary    `json:"findings"`
	Window          windowSummary       `json:"window"`
	Summary         string              `json:"summary,omitempty"`
	VerdictFindings []verdictFinding    `json:"verdict_findings,omitempty"`
	SynthesisError  string              `json:"synthesis_error,omitempty"`
}

func (s *Server) registerStateTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "review_state",
		Description: "Get the state of a review session: phase, specialist progress, findings, challenge window and verdict",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args stateInput) (_ *mcp.CallToolResult, _ stateOutput, err error) {
		defer s.instrument(ctx, "review_state")(&err)

		var st *workflows.ReviewState
		if args.SessionID == "" {
			st, err = s.control.Active(ctx)
		} else {
			st, err = s.control.GetState(ctx, args.SessionID)
		}
		if err != nil {
			return nil, stateOutput{}, fmt.Errorf("review state failed: %w", err)
		}

		out := summarizeState(st)
		return textResult("Session %s is %s (%s), %d findings", out.SessionID, out.Status, out.Phase, len(out.Findings)), out, nil
	})
}

// summarizeState flattens a ReviewState into the tool's output. Findings are
// listed in specialist order, with the dispute ruling when one exists.
func summarizeState(st *workflows.ReviewState) stateOutput {
	out := stateOutput{
		SessionID:      st.SessionID,
		Reference:      st.Reference,
		Status:         string(st.Status),
		Phase:          string(st.Phase),
		FetchError:     st.FetchError,
		Specialists:    []specialistSummary{},
		Findings:       []findingSummary{},
		SynthesisError: st.SynthesisError,
		Window: windowSummary{
			Open:            st.Window.Open,
			Extensions:      st.Window.Extensions,
			HumanChallenges: len(st.Window.HumanChallenges),
		},
	}
	if !st.Window.Deadline.IsZero() {
		out.Window.Deadline = st.Window.Deadline.UTC().Format(time.RFC3339)
	}

	rulings := make(map[string]string, len(st.Disputes))
	for _, d := range st.Disputes {
		rulings[d.Finding.ID] = string(d.Ruling)
	}

	names := make([]string, 0, len(st.Specialists))
	for name := range st.Specialists {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		slot := st.Specialists[name]
		if slot == nil {
			continue
		}
		out.Specialists = append(out.Specialists, specialistSummary{
			Name:     name,
			Status:   string(slot.Status),
			Attempt:  slot.Attempt,
			Findings: len(slot.Findings),
			Error:    slot.Error,
		})
		for _, f := range slot.Findings {
			out.Findings = append(out.Findings, findingSummary{
				ID:          f.ID,
				Specialist:  f.Specialist,
				Severity:    string(f.Severity),
				Description: f.Description,
				Location:    f.Location,
				Ruling:      rulings[f.ID],
			})
		}
	}

	if st.Verdict != nil {
		out.Summary = st.Verdict.Summary
		for _, f := range st.Verdict.Findings {
			out.VerdictFindings = append(out.VerdictFindings, verdictFinding{
				Severity:       string(f.Severity),
				Specialist:     f.Specialist,
				Description:    f.Description,
				Ruling:         string(f.Ruling),
				Recommendation: f.Recommendation,
			})
		}
	}
	return out
}

// ===== review_extend =====

type extendInput struct {
	SessionID string `json:"session_id" jsonschema:"Session whose challenge window to extend"`
}

type extendOutput struct {
	Requested bool `json:"requested" jsonschema:"True when the extension was delivered to the session"`
}

func (s *Server) registerExtendTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "review_extend",
		Description: "Extend the human challenge window of a review session",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args extendInput) (_ *mcp.CallToolResult, _ extendOutput, err error) {
		defer s.instrument(ctx, "review_extend")(&err)

		if args.SessionID == "" {
			return nil, extendOutput{}, fmt.Errorf("%w: session_id", workflows.ErrEmptyField)
		}
		if err = s.control.ExtendWindow(ctx, args.SessionID); err != nil {
			return nil, extendOutput{}, fmt.Errorf("review extend failed: %w", err)
		}
		return textResult("Extension requested for %s", args.SessionID), extendOutput{Requested: true}, nil
	})
}

// ===== review_submit =====

type submitInput struct {
	SessionID  string            `json:"session_id" jsonschema:"Session to challenge"`
	Challenges map[string]string `json:"challenges" jsonschema:"Challenge text keyed by finding ID"`
}

type submitOutput struct {
	Accepted bool `json:"accepted" jsonschema:"False when the window has closed or the session is finished"`
}

func (s *Server) registerSubmitTool() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "review_submit",
		Description: "Submit human challenges to findings while the challenge window is open",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args submitInput) (_ *mcp.CallToolResult, _ submitOutput, err error) {
		defer s.instrument(ctx, "review_submit")(&err)

		if args.SessionID == "" {
			return nil, submitOutput{}, fmt.Errorf("%w: session_id", workflows.ErrEmptyField)
		}
		res, err := s.control.SubmitChallenges(ctx, args.SessionID, args.Challenges)
		if err != nil {
			return nil, submitOutput{}, fmt.Errorf("review submit failed: %w", err)
		}
		if !res.Accepted {
			return textResult("Challenges not accepted: the window is closed"), submitOutput{}, nil
		}
		return textResult("Accepted %d challenge(s)", len(args.Challenges)), submitOutput{Accepted: true}, nil
	})
}
