package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/journal"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// Exit codes returned by the verify command.
const (
	ExitIntact = 0
	ExitError  = 1
	ExitBroken = 10
)

// ChainVerifier verifies one company chain.
type ChainVerifier interface {
	VerifyIntegrity(ctx context.Context, companyID int64) (journal.Verification, error)
}

// VerifyOptions configures the verify command.
type VerifyOptions struct {
	CompanyID  int64
	All        bool
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// VerifyReport is the structured output of one company verification.
type VerifyReport struct {
	CompanyID  int64  `json:"company_id"`
	Total      int    `json:"total"`
	Verified   int    `json:"verified"`
	Intact     bool   `json:"intact"`
	BrokenAtID string `json:"broken_at_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Tail       string `json:"tail,omitempty"`
}

// VerifyCLI runs chain verification from the command line.
type VerifyCLI struct {
	verifier ChainVerifier
	all      *jobs.ChainIntegrityJob
}

// NewVerifyCLI constructs the helper. all may be nil when -all is not supported.
func NewVerifyCLI(verifier ChainVerifier, all *jobs.ChainIntegrityJob) *VerifyCLI {
	return &VerifyCLI{verifier: verifier, all: all}
}

// VerifyCommand executes the verify workflow and returns the process exit code.
func (c *VerifyCLI) VerifyCommand(ctx context.Context, opts VerifyOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.All {
		return c.verifyAll(ctx, opts)
	}
	if opts.CompanyID <= 0 {
		fmt.Fprintln(opts.Stderr, "verify: -company is required")
		return ExitError
	}
	if c == nil || c.verifier == nil {
		fmt.Fprintln(opts.Stderr, "verify: verifier not configured")
		return ExitError
	}
	v, err := c.verifier.VerifyIntegrity(ctx, opts.CompanyID)
	var violation *ledger.IntegrityViolation
	if err != nil && !errors.As(err, &violation) {
		fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return ExitError
	}
	report := reportOf(v)
	if err := writeReports(opts, []VerifyReport{report}); err != nil {
		fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return ExitError
	}
	if !report.Intact {
		return ExitBroken
	}
	return ExitIntact
}

func (c *VerifyCLI) verifyAll(ctx context.Context, opts VerifyOptions) int {
	if c == nil || c.all == nil {
		fmt.Fprintln(opts.Stderr, "verify: -all not configured")
		return ExitError
	}
	summary, err := c.all.Run(ctx, nil)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
		return ExitError
	}
	reports := make([]VerifyReport, 0, len(summary.Violations))
	for _, v := range summary.Violations {
		reports = append(reports, VerifyReport{
			CompanyID:  v.CompanyID,
			Verified:   v.Verified,
			BrokenAtID: v.BrokenAtID.String(),
			Reason:     v.Reason,
		})
	}
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{
			"companies":  summary.Companies,
			"entries":    summary.Entries,
			"violations": reports,
		}); err != nil {
			fmt.Fprintf(opts.Stderr, "verify: %v\n", err)
			return ExitError
		}
	} else {
		fmt.Fprintf(opts.Stdout, "verified %d companies, %d entries, %d broken\n", summary.Companies, summary.Entries, len(reports))
		for _, r := range reports {
			fmt.Fprintf(opts.Stdout, "company %d: BROKEN at %s after %d entries: %s\n", r.CompanyID, r.BrokenAtID, r.Verified, r.Reason)
		}
	}
	if !summary.Intact() {
		return ExitBroken
	}
	return ExitIntact
}

func reportOf(v journal.Verification) VerifyReport {
	r := VerifyReport{
		CompanyID: v.CompanyID,
		Total:     v.Total,
		Verified:  v.Verified,
		Intact:    v.Intact(),
		Reason:    v.Reason,
		Tail:      v.Tail,
	}
	if v.BrokenAtID != nil {
		r.BrokenAtID = v.BrokenAtID.String()
	}
	return r
}

func writeReports(opts VerifyOptions, reports []VerifyReport) error {
	if opts.JSONOutput {
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		if len(reports) == 1 {
			return enc.Encode(reports[0])
		}
		return enc.Encode(reports)
	}
	for _, r := range reports {
		if r.Intact {
			if _, err := fmt.Fprintf(opts.Stdout, "company %d: OK (%d entries, tail %s)\n", r.CompanyID, r.Total, r.Tail); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintf(opts.Stdout, "company %d: BROKEN at %s after %d of %d entries: %s\n",
			r.CompanyID, r.BrokenAtID, r.Verified, r.Total, r.Reason); err != nil {
			return err
		}
	}
	return nil
}
