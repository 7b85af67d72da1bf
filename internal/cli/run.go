package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jzx17/syncqueue/internal/manifest"
	"github.com/jzx17/syncqueue/internal/simulate"
	"github.com/jzx17/syncqueue/pkg/metrics"
	"github.com/jzx17/syncqueue/pkg/queue"
)

// ErrRunIncomplete is returned when a run leaves failed, cancelled or blocked items
var ErrRunIncomplete = errors.New("run incomplete")

type syncItem = queue.WorkItem[simulate.Behavior, string]

type runOptions struct {
	metricsAddr string
	linger      time.Duration
}

func newRunCmd(opts *Options) *cobra.Command {
	ro := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every item of a manifest",
		Long: `Run loads the manifest, executes its items in priority and dependency
order and prints a per-item summary. The exit status is non-zero when any
item failed, was cancelled or stayed blocked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runManifest(ctx, cmd, opts, ro)
		},
	}

	cmd.Flags().StringVar(&ro.metricsAddr, "metrics-addr", "", "serve /metrics, /stats and /healthz on this address")
	cmd.Flags().DurationVar(&ro.linger, "linger", 0, "keep the metrics server up this long after the run")

	return cmd
}

func runManifest(ctx context.Context, cmd *cobra.Command, opts *Options, ro *runOptions) error {
	logger := slog.Default()

	m, err := manifest.Load(opts.ManifestPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	config := queue.DefaultConfig[simulate.Behavior, string]()
	manifest.Apply(m.Queue, config)
	config.Logger = logger
	config.Metrics = metrics.NewRecorder(reg)
	config.OnProgress = func(completed, total int, item syncItem) {
		logger.Info("progress", "completed", completed, "total", total, "item_id", item.ID)
	}

	q, err := queue.New(config)
	if err != nil {
		return err
	}
	if err := q.Add(m.WorkItems()...); err != nil {
		return err
	}

	if ro.metricsAddr != "" {
		srv := metrics.NewServer(ro.metricsAddr, reg, q.Stats)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(shutdownCtx)
		}()
		logger.Info("metrics server listening", "addr", ro.metricsAddr)
	}

	logger.Info("starting run", "manifest", opts.ManifestPath, "items", q.Len())

	items, err := q.Start(ctx, simulate.New(nil).Processor())
	if err != nil {
		return err
	}

	stats := q.Stats()
	blocked := q.Diagnose()
	printSummary(NewOutput(cmd.OutOrStdout(), opts.JSON), items, stats, blocked)

	if ro.metricsAddr != "" && ro.linger > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(ro.linger):
		}
	}

	if stats.Failed > 0 || stats.Cancelled > 0 || stats.Blocked > 0 {
		return fmt.Errorf("%w: %d failed, %d cancelled, %d blocked",
			ErrRunIncomplete, stats.Failed, stats.Cancelled, stats.Blocked)
	}
	return nil
}

type itemSummary struct {
	ID        string `json:"id"`
	Priority  string `json:"priority"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	ErrorType string `json:"error_type,omitempty"`
	Error     string `json:"error,omitempty"`
	Result    string `json:"result,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

type runSummary struct {
	RunID      string              `json:"run_id"`
	Items      []itemSummary       `json:"items"`
	Blocked    []queue.BlockedItem `json:"blocked,omitempty"`
	Completed  int                 `json:"completed"`
	Failed     int                 `json:"failed"`
	Cancelled  int                 `json:"cancelled"`
	Pending    int                 `json:"pending"`
	Retries    int                 `json:"retries"`
	Throughput float64             `json:"throughput_per_minute"`
}

func summarize(items []syncItem, stats queue.Stats, blocked []queue.BlockedItem) runSummary {
	summary := runSummary{
		RunID:      stats.RunID,
		Items:      make([]itemSummary, 0, len(items)),
		Blocked:    blocked,
		Completed:  stats.Completed,
		Failed:     stats.Failed,
		Cancelled:  stats.Cancelled,
		Pending:    stats.Pending,
		Retries:    stats.Retries,
		Throughput: stats.Throughput,
	}

	for _, w := range items {
		s := itemSummary{
			ID:        w.ID,
			Priority:  w.Priority.String(),
			Status:    string(w.Status),
			Attempts:  w.Attempts,
			ErrorType: string(w.ErrorType),
			Error:     w.Error,
			Result:    w.Result,
		}
		if d := w.ProcessingTime(); d > 0 {
			s.Duration = d.Round(time.Millisecond).String()
		}
		summary.Items = append(summary.Items, s)
	}
	return summary
}

func printSummary(out *Output, items []syncItem, stats queue.Stats, blocked []queue.BlockedItem) {
	summary := summarize(items, stats, blocked)

	if out.jsonMode {
		out.JSON(summary)
		return
	}

	rows := make([][]string, 0, len(summary.Items))
	for _, s := range summary.Items {
		detail := s.Result
		if s.Error != "" {
			detail = s.Error
		}
		rows = append(rows, []string{
			s.ID, s.Priority, s.Status, strconv.Itoa(s.Attempts), s.ErrorType, s.Duration, detail,
		})
	}
	out.Table([]string{"ID", "PRIORITY", "STATUS", "ATTEMPTS", "ERROR TYPE", "DURATION", "DETAIL"}, rows)

	if len(blocked) > 0 {
		out.Line("")
		brows := make([][]string, 0, len(blocked))
		for _, b := range blocked {
			brows = append(brows, []string{b.ID, b.Reason, b.Dependency})
		}
		out.Table([]string{"BLOCKED", "REASON", "DEPENDENCY"}, brows)
	}

	out.Line("")
	out.Line("%d completed, %d failed, %d cancelled, %d pending, %d retries, %.1f items/min",
		summary.Completed, summary.Failed, summary.Cancelled, summary.Pending, summary.Retries, summary.Throughput)
}
