package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cadence/internal/cleanup"
	"cadence/internal/scanner"
)

func newScanCommand(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Import new files from enabled music folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			progress := newScanProgress("[cyan][1/1][reset] Scanning library...", quiet)
			summary, err := a.engine.Scan(cmd.Context(), progress.update)
			progress.finish()
			printSummary(cmd.OutOrStdout(), summary, a.cfg.Scan.MaxFileBytes)
			return err
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not render a progress bar")
	return cmd
}

func newRefreshCommand(a *app) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rescan enabled folders and drop songs whose files are gone",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			progress := newScanProgress("[cyan][1/1][reset] Refreshing library...", quiet)
			summary, err := a.engine.Refresh(cmd.Context(), progress.update)
			progress.finish()
			printSummary(cmd.OutOrStdout(), summary.Summary, a.cfg.Scan.MaxFileBytes)
			if summary.Missing > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "missing:   %s (%s kept under unavailable folders)\n",
					humanize.Comma(int64(summary.Missing)), humanize.Comma(int64(summary.Protected)))
			}
			return err
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not render a progress bar")
	return cmd
}

func newStartupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "startup",
		Short: "Run the launch pass: content check, scan and revoked-folder removal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := a.engine.Startup(cmd.Context(), nil)
			printSummary(cmd.OutOrStdout(), summary, a.cfg.Scan.MaxFileBytes)
			for _, folder := range summary.RevokedFolders {
				fmt.Fprintf(cmd.OutOrStdout(), "revoked:   %s\n", folder)
			}
			return err
		},
	}
}

func newCleanupCommand(a *app) *cobra.Command {
	var loop bool

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Reconcile the catalog with the files on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if loop {
				a.logger.Info("periodic cleanup started", "interval", a.cfg.Cleanup.Interval)
				return a.engine.RunCleanupLoop(cmd.Context())
			}

			report, err := a.engine.RunCleanup(cmd.Context())
			printCleanupReport(cmd.OutOrStdout(), report)
			return err
		},
	}
	cmd.Flags().BoolVar(&loop, "loop", false, "keep running and sweep on the configured interval")
	return cmd
}

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Scan on folder changes and sweep periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			group, ctx := errgroup.WithContext(cmd.Context())
			group.Go(func() error {
				return a.engine.Watch(ctx)
			})
			group.Go(func() error {
				return a.engine.RunCleanupLoop(ctx)
			})
			return group.Wait()
		},
	}
}

// scanProgress renders scanner progress on a terminal bar. The total is
// unknown until enumeration finishes, so the bar starts as a spinner.
type scanProgress struct {
	bar *progressbar.ProgressBar
}

func newScanProgress(description string, quiet bool) *scanProgress {
	if quiet {
		return &scanProgress{}
	}

	return &scanProgress{
		bar: progressbar.NewOptions(
			-1,
			progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetTheme(progressbar.ThemeASCII),
			progressbar.OptionFullWidth(),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription(description),
			progressbar.OptionClearOnFinish(),
		),
	}
}

func (p *scanProgress) update(progress scanner.Progress) {
	if p.bar == nil {
		return
	}

	if progress.Total > 0 && p.bar.GetMax() != progress.Total {
		p.bar.ChangeMax(progress.Total)
	}
	if progress.Total > 0 {
		_ = p.bar.Set(progress.Processed)
	}
}

func (p *scanProgress) finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
}

func printSummary(w io.Writer, summary scanner.Summary, maxFileBytes int64) {
	fmt.Fprintf(w, "folders:   %s scanned, %s failed\n",
		humanize.Comma(int64(summary.FoldersScanned)), humanize.Comma(int64(summary.FoldersFailed)))
	fmt.Fprintf(w, "files:     %s seen\n", humanize.Comma(int64(summary.FilesSeen)))
	fmt.Fprintf(w, "added:     %s (%s with default metadata)\n",
		humanize.Comma(int64(summary.Added)), humanize.Comma(int64(summary.Degraded)))
	if summary.Skipped > 0 {
		fmt.Fprintf(w, "skipped:   %s (already present or over %s)\n",
			humanize.Comma(int64(summary.Skipped)), humanize.IBytes(uint64(maxFileBytes)))
	}
	if summary.Failed > 0 {
		fmt.Fprintf(w, "failed:    %s\n", humanize.Comma(int64(summary.Failed)))
	}
	if summary.Removed > 0 {
		fmt.Fprintf(w, "removed:   %s\n", humanize.Comma(int64(summary.Removed)))
	}
	if summary.Cancelled {
		fmt.Fprintln(w, "cancelled: stopped after the current batch")
	}
	fmt.Fprintf(w, "took:      %s\n", summary.Duration.Round(time.Millisecond))
}

func printCleanupReport(w io.Writer, report cleanup.Report) {
	fmt.Fprintf(w, "artwork:   %s of %s references cleared, %s thumbnails removed\n",
		humanize.Comma(int64(report.Images.SongsCleared)),
		humanize.Comma(int64(report.Images.SongsChecked)),
		humanize.Comma(int64(report.Images.VariantsRemoved)))
	fmt.Fprintf(w, "artists:   %s images reset, %s duplicates merged\n",
		humanize.Comma(int64(report.Images.ArtistsFallback)), humanize.Comma(int64(report.Artists.Removed)))
	fmt.Fprintf(w, "songs:     %s of %s removed", humanize.Comma(int64(report.Audio.Removed)), humanize.Comma(int64(report.Audio.Checked)))
	if report.Audio.Unverified > 0 {
		fmt.Fprintf(w, ", %s could not be checked", humanize.Comma(int64(report.Audio.Unverified)))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "took:      %s\n", report.Duration.Round(time.Millisecond))
}
