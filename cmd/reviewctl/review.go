package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/reviewd/internal/apiclient"
	"github.com/fyrsmithlabs/reviewd/internal/control"
	"github.com/fyrsmithlabs/reviewd/internal/workflows"
)

var (
	startContext  string
	stateJSON     bool
	submitEntries []string
)

func init() {
	startCmd.Flags().StringVar(&startContext, "context", "", "extra guidance for the reviewers")
	stateCmd.Flags().BoolVar(&stateJSON, "json", false, "print the full state as JSON")
	submitCmd.Flags().StringArrayVarP(&submitEntries, "challenge", "c", nil, "challenge as FINDING_ID=text (repeatable)")
	_ = submitCmd.MarkFlagRequired("challenge")

	rootCmd.AddCommand(startCmd, stateCmd, extendCmd, submitCmd, cancelCmd)
}

var startCmd = &cobra.Command{
	Use:   "start <reference>",
	Short: "Start a review session",
	Long: `Start reviewing a pull request or local commit range.

References:
  acme/widgets#42
  https://github.com/acme/widgets/pull/42
  git:/path/to/repo@HEAD
  git:/path/to/repo@main~3..main

Examples:
  reviewctl start acme/widgets#42
  reviewctl start git:$PWD@HEAD --context "focus on the retry logic"`,
	Args: cobra.ExactArgs(1),
	RunE: runStart,
}

var stateCmd = &cobra.Command{
	Use:   "state [session-id]",
	Short: "Show a session's progress, findings and verdict",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runState,
}

var extendCmd = &cobra.Command{
	Use:   "extend [session-id]",
	Short: "Extend the open challenge window",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExtend,
}

var submitCmd = &cobra.Command{
	Use:   "submit [session-id] --challenge ID=text...",
	Short: "Challenge findings while the window is open",
	Long: `Submit human challenges against findings. Each challenge names the finding
ID shown by "reviewctl state". A later challenge for the same finding replaces
the earlier one until arbitration begins.

Examples:
  reviewctl submit -c security-1="the input is already validated upstream"
  reviewctl submit review-1234 -c perf-2="only runs once per deploy"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [session-id]",
	Short: "Cancel a running session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCancel,
}

func runStart(cmd *cobra.Command, args []string) error {
	id, err := newClient().Start(cmd.Context(), control.StartRequest{
		Reference: args[0],
		Context:   startContext,
	})
	if err != nil {
		return fmt.Errorf("failed to start review: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Review started: %s\nFollow progress with: reviewctl state %s\n", id, id)
	return nil
}

func runState(cmd *cobra.Command, args []string) error {
	c := newClient()
	var (
		st  *workflows.ReviewState
		err error
	)
	if len(args) == 1 {
		st, err = c.GetState(cmd.Context(), args[0])
	} else {
		st, err = c.Active(cmd.Context())
	}
	if err != nil {
		return err
	}
	if stateJSON {
		return outputJSON(cmd.OutOrStdout(), st)
	}
	printState(cmd.OutOrStdout(), st)
	return nil
}

func runExtend(cmd *cobra.Command, args []string) error {
	c := newClient()
	id, err := resolveSession(cmd.Context(), c, args)
	if err != nil {
		return err
	}
	if err := c.ExtendWindow(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to extend window: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Extension requested for %s\n", id)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	challenges, err := parseChallenges(submitEntries)
	if err != nil {
		return err
	}
	c := newClient()
	id, err := resolveSession(cmd.Context(), c, args)
	if err != nil {
		return err
	}
	res, err := c.SubmitChallenges(cmd.Context(), id, challenges)
	if err != nil {
		return fmt.Errorf("failed to submit challenges: %w", err)
	}
	if !res.Accepted {
		return fmt.Errorf("challenges not accepted: the window for %s is closed", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Accepted %d challenge(s) for %s\n", len(challenges), id)
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	c := newClient()
	id, err := resolveSession(cmd.Context(), c, args)
	if err != nil {
		return err
	}
	if err := c.Cancel(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", id)
	return nil
}

// resolveSession returns the explicit session argument, or the current
// session's ID when none was given.
func resolveSession(ctx context.Context, c *apiclient.Client, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	st, err := c.Active(ctx)
	if err != nil {
		return "", err
	}
	return st.SessionID, nil
}

// parseChallenges turns ID=text entries into a submission. A repeated ID
// keeps the last text.
func parseChallenges(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("at least one --challenge is required")
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		id, text, ok := strings.Cut(e, "=")
		id, text = strings.TrimSpace(id), strings.TrimSpace(text)
		if !ok || id == "" || text == "" {
			return nil, fmt.Errorf("invalid challenge %q: want FINDING_ID=text", e)
		}
		out[id] = text
	}
	return out, nil
}

func printState(w io.Writer, st *workflows.ReviewState) {
	fmt.Fprintf(w, "Session:   %s\n", st.SessionID)
	fmt.Fprintf(w, "Reference: %s\n", st.Reference)
	fmt.Fprintf(w, "Status:    %s (%s)\n", st.Status, st.Phase)
	if st.FetchError != "" {
		fmt.Fprintf(w, "Fetch error: %s\n", st.FetchError)
	}

	if len(st.Specialists) > 0 {
		names := make([]string, 0, len(st.Specialists))
		for name := range st.Specialists {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "\nSpecialists:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSTATUS\tATTEMPT\tFINDINGS")
		for _, name := range names {
			slot := st.Specialists[name]
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", name, slot.Status, slot.Attempt, len(slot.Findings))
		}
		tw.Flush()
	}

	rulings := make(map[string]workflows.Ruling, len(st.Disputes))
	for _, d := range st.Disputes {
		rulings[d.Finding.ID] = d.Ruling
	}
	var findings []workflows.Finding
	for _, slot := range st.Specialists {
		findings = append(findings, slot.Findings...)
	}
	if len(findings) > 0 {
		sort.Slice(findings, func(i, j int) bool { return findings[i].ID < findings[j].ID })
		fmt.Fprintln(w, "\nFindings:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSEVERITY\tRULING\tDESCRIPTION")
		for _, f := range findings {
			ruling := string(rulings[f.ID])
			if ruling == "" {
				ruling = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.Severity, ruling, truncate(f.Description, 60))
		}
		tw.Flush()
	}

	if st.Window.Opened {
		state := "closed"
		if st.Window.Open {
			state = "open until " + formatTime(st.Window.Deadline)
		}
		fmt.Fprintf(w, "\nChallenge window: %s (%d extension(s), %d challenge(s))\n",
			state, st.Window.Extensions, len(st.Window.HumanChallenges))
	}

	if st.Verdict != nil {
		fmt.Fprintf(w, "\nVerdict:\n%s\n", st.Verdict.Summary)
	} else if st.SynthesisError != "" {
		fmt.Fprintf(w, "\nSynthesis failed: %s\n", st.SynthesisError)
	}
}
