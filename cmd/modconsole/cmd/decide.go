package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/wesm/modconsole/internal/cache"
	"github.com/wesm/modconsole/internal/listing"
	"github.com/wesm/modconsole/internal/moderation"
)

var (
	decideReason  string
	decideComment string
)

var approveCmd = &cobra.Command{
	Use:   "approve <id>...",
	Short: "Approve records",
	Long: `Approve one or more records. Records are processed one at a time in the
order given; a failed record does not stop the rest.

Examples:
  modconsole approve 42
  modconsole approve 42 43 44`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(cmd, args, listing.ActionApprove)
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <id>...",
	Short: "Reject records with a reason",
	Long: `Reject one or more records. A reason is required; when --reason is not
given and the terminal is interactive, a prompt offers the standard reasons.

Reasons:
  ` + strings.Join(listing.Reasons, "\n  ") + `

Examples:
  modconsole reject 42 --reason "Prohibited item"
  modconsole reject 42 43 --reason Other --comment "Duplicate of 17"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(cmd, args, listing.ActionReject)
	},
}

var requestChangesCmd = &cobra.Command{
	Use:   "request-changes <id>...",
	Short: "Return records to the seller for changes",
	Long: `Return one or more records to the seller for changes. Takes the same
--reason and --comment flags as reject.

Examples:
  modconsole request-changes 42 --reason "Incorrect description"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecision(cmd, args, listing.ActionRequestChanges)
	},
}

func runDecision(cmd *cobra.Command, args []string, action listing.Action) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	d := listing.Decision{Action: action}
	if action != listing.ActionApprove {
		reason, comment := decideReason, decideComment
		if reason == "" && isInteractive() {
			reason, comment, err = promptReason(cmd.Context(), action, comment)
			if err != nil {
				return err
			}
		}
		if reason != "" {
			canonical, ok := canonicalReason(reason)
			if !ok {
				return fmt.Errorf("unknown reason %q (choose one of: %s)", reason, strings.Join(listing.Reasons, ", "))
			}
			reason = canonical
		}
		d.Reason = reason
		d.Comment = strings.TrimSpace(comment)
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w (pass --reason)", err)
	}

	client, err := newClient()
	if err != nil {
		return err
	}

	var progress moderation.Progress = moderation.NullProgress{}
	if len(ids) > 1 && isatty.IsTerminal(os.Stderr.Fd()) {
		progress = &CLIProgress{out: os.Stderr, action: action}
	}
	exec := moderation.NewBulkExecutor(client, cache.New(client, cache.Options{}), nil).
		WithLogger(logger).
		WithProgress(progress)

	result, err := exec.Run(cmd.Context(), ids, d)
	if err != nil {
		return err
	}
	return reportBulk(cmd.OutOrStdout(), result)
}

// reportBulk prints the outcome of a decision run. It returns an error when
// any record failed so the exit status reflects it.
func reportBulk(out io.Writer, result *moderation.BulkResult) error {
	fmt.Fprintln(out, result.Summary())
	for _, f := range result.Failed {
		fmt.Fprintf(out, "  %d: %v\n", f.ID, describeError(f.Err))
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d decisions failed", len(result.Failed), len(result.Failed)+len(result.Succeeded))
	}
	return nil
}

// parseIDs parses record ids, dropping repeats while keeping order.
func parseIDs(args []string) ([]int64, error) {
	seen := make(map[int64]bool, len(args))
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid record id %q", part)
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no record ids given")
	}
	return ids, nil
}

// canonicalReason matches s against the standard reasons ignoring case.
func canonicalReason(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, r := range listing.Reasons {
		if strings.EqualFold(r, s) {
			return r, true
		}
	}
	return "", false
}

func isInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}

// promptReason asks for a reason and an optional comment.
func promptReason(ctx context.Context, action listing.Action, comment string) (string, string, error) {
	reason := listing.Reasons[0]
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Reason to " + action.String()).
				Options(huh.NewOptions(listing.Reasons...)...).
				Value(&reason),
			huh.NewInput().
				Title("Comment (optional)").
				Value(&comment),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", "", errors.New("cancelled")
		}
		return "", "", fmt.Errorf("prompt: %w", err)
	}
	return reason, comment, nil
}

// CLIProgress prints bulk progress on one terminal line.
type CLIProgress struct {
	out       io.Writer
	action    listing.Action
	total     int
	startTime time.Time
	lastPrint time.Time
}

func (p *CLIProgress) OnStart(total int) {
	now := time.Now()
	p.total = total
	p.startTime = now
	p.lastPrint = time.Time{}
}

func (p *CLIProgress) OnProgress(processed, succeeded, failed int) {
	if p.startTime.IsZero() {
		p.startTime = time.Now()
	}
	// Throttle redraws, but always draw the last item.
	if processed < p.total && time.Since(p.lastPrint) < 100*time.Millisecond {
		return
	}
	p.lastPrint = time.Now()
	fmt.Fprintf(p.out, "\r%s: %d/%d (%d ok, %d failed)", p.action, processed, p.total, succeeded, failed)
}

func (p *CLIProgress) OnComplete(succeeded, failed int) {
	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	fmt.Fprintf(p.out, "\r%s: %d ok, %d failed in %s\n", p.action, succeeded, failed, elapsed)
}

func init() {
	for _, c := range []*cobra.Command{rejectCmd, requestChangesCmd} {
		c.Flags().StringVar(&decideReason, "reason", "", "reason for the decision")
		c.Flags().StringVar(&decideComment, "comment", "", "optional comment")
	}
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(rejectCmd)
	rootCmd.AddCommand(requestChangesCmd)
}
