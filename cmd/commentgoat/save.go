package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/engine"
	"github.com/IshaanNene/commentgoat/internal/settings"
	"github.com/IshaanNene/commentgoat/internal/storage"
	"github.com/IshaanNene/commentgoat/internal/types"
)

var (
	saveCount  int
	saveDays   int
	saveAll    bool
	saveResume bool
	saveOutput string
	preloadN   int
)

// saveCmd creates the "save" subcommand.
func saveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [url]",
		Short: "Export comments from a board page to a text file",
		Long: `Export comments starting at the given page, following the next-page link.

Exactly one stopping rule is required:
  --count 1000|10000   stop after about that many comments
  --days 1|7           keep comments posted within that many days of the newest
  --all                continue until the feed runs out

--resume continues the last interrupted run for the same site, appending to
the same output file.`,
		Args: cobra.ExactArgs(1),
		RunE: runSave,
	}

	cmd.Flags().IntVar(&saveCount, "count", 0, "number of comments to save: 1000 or 10000")
	cmd.Flags().IntVar(&saveDays, "days", 0, "age window in days: 1 or 7")
	cmd.Flags().BoolVar(&saveAll, "all", false, "save the whole feed")
	cmd.Flags().BoolVar(&saveResume, "resume", false, "resume from the last checkpoint")
	cmd.Flags().StringVarP(&saveOutput, "output", "o", "", "output file (default: <output_dir>/<host>.txt)")
	cmd.MarkFlagsMutuallyExclusive("count", "days", "all", "resume")
	cmd.MarkFlagsOneRequired("count", "days", "all", "resume")

	return cmd
}

// preloadCmd creates the "preload" subcommand.
func preloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preload [url]",
		Short: "Print the comments that follow the given page",
		Long:  "Fetch the next 20 or 100 comments after the given page and print them to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreload,
	}
	cmd.Flags().IntVar(&preloadN, "next", 20, "number of comments to preload: 20 or 100")
	return cmd
}

func saveKind() (string, int) {
	switch {
	case saveCount > 0:
		return "count", saveCount
	case saveDays > 0:
		return "days", saveDays
	default:
		return "all", 0
	}
}

func defaultOutput(outputDir, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return filepath.Join(outputDir, "comments.txt")
	}
	return filepath.Join(outputDir, strings.ReplaceAll(u.Hostname(), ":", "_")+".txt")
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// runSave executes the save command.
func runSave(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	origin, err := config.OriginOf(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.startMetrics(ctx)

	output := saveOutput
	if output == "" {
		output = defaultOutput(a.cfg.Server.OutputDir, rawURL)
	}

	var (
		policy types.Policy
		sink   *storage.TextSink
	)
	if saveResume {
		sink, err = storage.AppendTextSink(output, a.logger)
	} else {
		kind, value := saveKind()
		var trigger settings.Trigger
		trigger, policy, err = settings.ResolveTrigger(kind, value, a.cfg.Scrape.CommentsPerPage)
		if err != nil {
			return err
		}
		if err := a.flags.CheckTrigger(ctx, trigger); err != nil {
			return err
		}
		sink, err = storage.NewTextSink(output, a.logger)
	}
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}

	spin := newSpinnerReporter()
	controller := a.newController(
		engine.WithCheckpoints(engine.NewCheckpointManager("")),
		engine.WithReporter(engine.Reporters{engine.NewLogReporter(a.logger), spin}),
	)

	a.logger.Info("starting export", "url", rawURL, "output", output, "resume", saveResume)

	start := time.Now()
	spin.Start()
	var state *engine.RunState
	if saveResume {
		state, err = controller.Resume(ctx, origin, sink)
	} else {
		state, err = controller.Run(ctx, origin, policy, rawURL, sink)
	}
	spin.Stop()

	if state == nil {
		// Rejected before the controller took the sink.
		_ = sink.Close()
		return err
	}

	if err != nil {
		fmt.Printf("\n⚠️  Export interrupted after %s\n", time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Pages:     %d\n", state.Pages)
		fmt.Printf("   Comments:  %d saved, %d skipped\n", state.Records, state.Skipped)
		fmt.Printf("   Output:    %s\n", output)
		if !errors.Is(err, context.Canceled) {
			fmt.Printf("   Resume:    commentgoat save %s --resume -o %s\n", rawURL, output)
		}
		return err
	}

	fmt.Printf("\n✅ Export complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Policy:    %s\n", state.Policy)
	fmt.Printf("   Pages:     %d (%d handshakes)\n", state.Pages, state.Handshakes)
	fmt.Printf("   Comments:  %d saved, %d skipped\n", state.Records, state.Skipped)
	fmt.Printf("   Output:    %s\n", output)
	if a.snapshot.GotoLast && state.LastURL != "" {
		fmt.Printf("   Last page: %s\n", state.LastURL)
	}
	return nil
}

// runPreload executes the preload command.
func runPreload(cmd *cobra.Command, args []string) error {
	rawURL := args[0]
	origin, err := config.OriginOf(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	trigger, policy, err := settings.ResolveTrigger("next", preloadN, a.cfg.Scrape.CommentsPerPage)
	if err != nil {
		return err
	}
	if err := a.flags.CheckTrigger(ctx, trigger); err != nil {
		return err
	}

	controller := a.newController()
	next, err := controller.ResolveNext(ctx, rawURL)
	if err != nil {
		return err
	}

	sink := storage.NewStagingSink(a.logger)
	state, err := controller.Run(ctx, origin, policy, next, sink)
	if state == nil {
		_ = sink.Close()
	}
	for _, rec := range sink.Records() {
		fmt.Print(rec.String())
	}
	return err
}
