package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/hillmyna/internal/app"
	"github.com/codebuildervaibhav/hillmyna/internal/audio"
	"github.com/codebuildervaibhav/hillmyna/internal/auth"
	"github.com/codebuildervaibhav/hillmyna/internal/cleanup"
)

func benchCmd() *cobra.Command {
	var (
		dir    string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure false accepts and rejects per confidence level",
		Long: `Identifies every <username>_*.wav file of --dir against the enrolled users.
Files named after a user who is not enrolled count as impostor attempts.
Samples are converted to 16 kHz mono with ffmpeg first.`,
		Args: cobra.NoArgs,
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			samples, err := auth.SamplesFromDir(dir)
			if err != nil {
				return err
			}
			if len(samples) == 0 {
				return fmt.Errorf("no <username>_*.wav samples in %s", dir)
			}

			if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
				return err
			}
			prepared, originals, done := normalizeSamples(cmd.Context(), samples, cfg.Storage.TempDir, audio.Normalize, log)
			defer done()

			report, err := w.Service.Benchmark(cmd.Context(), prepared)
			if err != nil {
				return err
			}
			for i := range report.Outcomes {
				report.Outcomes[i].Path = originals[report.Outcomes[i].Path]
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), report)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d samples: %d genuine, %d impostor, %d failed\n\n",
				report.Samples, report.Genuine, report.Impostor, report.Failed)
			tw := newTable(out, "MIN CONFIDENCE", "FALSE ACCEPTS", "MISIDENTIFIED", "FALSE REJECTS", "FAR", "FRR")
			for _, l := range report.Levels {
				row(tw, l.Confidence, l.FalseAccepts, l.Misidentified, l.FalseRejects,
					fmt.Sprintf("%.2f", l.FAR), fmt.Sprintf("%.2f", l.FRR))
			}
			return tw.Flush()
		}),
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of labelled samples")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}

type normalizeFunc func(ctx context.Context, inputPath, tempDir string) (string, error)

// normalizeSamples converts every sample for Azure. A sample that cannot be
// converted keeps its path and is reported as failed by the benchmark.
// originals maps the returned paths back to the input ones and done removes
// the converted files.
func normalizeSamples(ctx context.Context, samples []auth.LabelledSample, tempDir string, normalize normalizeFunc, log *logrus.Entry) ([]auth.LabelledSample, map[string]string, func()) {
	prepared := make([]auth.LabelledSample, len(samples))
	originals := make(map[string]string, len(samples))
	var converted []string
	for i, smp := range samples {
		prepared[i] = smp
		originals[smp.Path] = smp.Path
		out, err := normalize(ctx, smp.Path, tempDir)
		if err != nil {
			log.WithError(err).Warnf("Could not convert %s", smp.Path)
			continue
		}
		if out != smp.Path {
			converted = append(converted, out)
		}
		prepared[i].Path = out
		originals[out] = smp.Path
	}
	return prepared, originals, func() {
		for _, p := range converted {
			os.Remove(p)
		}
	}
}
