package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

const usage = `usage: ledgerctl <command> [flags]

commands:
  verify -company N [-json]   verify one company's journal chain
  verify -all [-json]         verify every company
  trigger-integrity [-company N,...]
                              enqueue a chain verification on the worker
  trigger-approved            enqueue the approved-posting sweep
  queue                       show default queue depth
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	ctx, stop := app.SignalContext(context.Background())
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	logger := app.NewLogger(cfg)

	switch args[0] {
	case "verify":
		return runVerify(ctx, cfg, logger, args[1:], stdout, stderr)
	case "trigger-integrity", "trigger-approved", "queue":
		return runJobs(ctx, cfg, args, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

func runVerify(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	company := fs.Int64("company", 0, "company id to verify")
	all := fs.Bool("all", false, "verify every company")
	jsonOut := fs.Bool("json", false, "emit JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 4, ApplicationName: "ledgerctl"})
	if err != nil {
		fmt.Fprintf(stderr, "connect database: %v\n", err)
		return 1
	}
	defer pool.Close()

	ledgerSvc, err := app.NewLedger(app.LedgerDeps{Config: cfg, Logger: logger, Pool: pool})
	if err != nil {
		fmt.Fprintf(stderr, "init ledger: %v\n", err)
		return 1
	}
	job := jobs.NewChainIntegrityJob(ledgerSvc.Repo, ledgerSvc.Posting, logger, nil, cfg.IntegrityConcurrency)
	return cli.NewVerifyCLI(ledgerSvc.Posting, job).VerifyCommand(ctx, cli.VerifyOptions{
		CompanyID:  *company,
		All:        *all,
		JSONOutput: *jsonOut,
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string, stdout, stderr io.Writer) int {
	jobsCLI := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			fmt.Fprintf(stderr, "close: %v\n", err)
		}
	}()

	switch args[0] {
	case "queue":
		stats, err := jobsCLI.InspectQueue()
		if err != nil {
			fmt.Fprintf(stderr, "queue: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return 0
	case "trigger-approved":
		info, err := jobsCLI.Trigger(ctx, jobs.TaskApprovedPosting)
		if err != nil {
			fmt.Fprintf(stderr, "trigger: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "enqueued %s id=%s\n", info.Type, info.ID)
		return 0
	}

	fs := flag.NewFlagSet("trigger-integrity", flag.ContinueOnError)
	fs.SetOutput(stderr)
	companies := fs.String("company", "", "comma separated company ids; empty means all")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	ids, err := parseCompanies(*companies)
	if err != nil {
		fmt.Fprintf(stderr, "trigger-integrity: %v\n", err)
		return 2
	}
	info, err := jobsCLI.Trigger(ctx, jobs.TaskChainVerify, ids...)
	if err != nil {
		fmt.Fprintf(stderr, "trigger: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "enqueued %s id=%s\n", info.Type, info.ID)
	return 0
}

func parseCompanies(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid company id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
