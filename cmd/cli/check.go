package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/playlistchecker/internal/app"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [playlist-url...]",
		Short: "Probe every channel of the given playlists and write filtered copies",
		Long: `check fetches each playlist, probes all channels and writes one output
playlist per input. Without arguments the playlist_urls setting is used.`,
		RunE: runCheck,
	}
	cmd.Flags().StringP("output-dir", "o", ".", "Directory for the filtered playlists")
	cmd.Flags().IntP("concurrency", "c", 5, "Number of channels probed at once")
	cmd.Flags().Bool("mark-failed", false, "Keep failed channels and prefix their name and group")
	cmd.Flags().String("failed-marker", "[X] ", "Prefix used by --mark-failed")
	cmd.Flags().Bool("use-dereferenced-url", false, "Write the final media URL instead of the original")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	e, err := loadEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = e.logger.Sync() }()

	urls := args
	if len(urls) == 0 {
		urls = e.cfg.PlaylistURLs
	}

	ctx := cmd.Context()
	stores, err := app.OpenStores(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer stores.Close()

	p := app.NewPipeline(e.cfg, e.logger, stores)
	rep, err := p.Runner.RunOnce(ctx, urls)
	if rep != nil {
		out := cmd.OutOrStdout()
		run := rep.Run
		fmt.Fprintf(out, "run %s: %d channels, %d passed, %d failed, %d skipped\n",
			run.ID, run.Channels, run.Passed, run.Failed, rep.Summary.Skipped)
		reasons := make([]string, 0, len(rep.Summary.ByReason))
		for r := range rep.Summary.ByReason {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(out, "  %-24s %d\n", r, rep.Summary.ByReason[r])
		}
		for _, f := range run.Files {
			fmt.Fprintf(out, "wrote %s\n", f)
		}
	}
	if err != nil {
		e.logger.Error("check_failed", zap.Error(err))
		return err
	}
	return nil
}
