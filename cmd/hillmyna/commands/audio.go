package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/hillmyna/internal/app"
	"github.com/codebuildervaibhav/hillmyna/internal/audio"
	"github.com/codebuildervaibhav/hillmyna/internal/azure"
	"github.com/codebuildervaibhav/hillmyna/internal/cleanup"
)

// normalized converts path to an Azure-ready WAV and returns a func removing
// any converted copy.
func normalized(cmd *cobra.Command, path string) (string, func(), error) {
	if err := cleanup.EnsureTempDirExists(cfg.Storage.TempDir); err != nil {
		return "", nil, err
	}
	out, err := audio.Normalize(cmd.Context(), path, cfg.Storage.TempDir)
	if err != nil {
		return "", nil, err
	}
	return out, func() {
		if out != path {
			os.Remove(out)
		}
	}, nil
}

func enrollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enroll <username> <audio file>",
		Short: "Send an enrollment sample for a user and wait for Azure",
		Args:  cobra.ExactArgs(2),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			path, done, err := normalized(cmd, args[1])
			if err != nil {
				return err
			}
			defer done()

			res, err := w.Service.Enroll(cmd.Context(), args[0], path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s, %.1fs of speech still needed\n",
				res.EnrollmentStatus, res.RemainingEnrollmentSpeechTime)
			return nil
		}),
	}
}

func identifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "identify <audio file>",
		Short: "Identify the speaker of a recording among the enabled users",
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			path, done, err := normalized(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			id, err := w.Service.IdentifySample(cmd.Context(), path)
			if err != nil {
				return err
			}
			if id == nil || id.User == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Nobody identified")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s confidence)\n", id.User.Username, id.Confidence)
			return nil
		}),
	}
}

func recognizeCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "recognize <audio file>",
		Short: "Transcribe a recording",
		Args:  cobra.ExactArgs(1),
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			path, done, err := normalized(cmd, args[0])
			if err != nil {
				return err
			}
			defer done()

			rec, err := w.Service.Transcribe(cmd.Context(), path, azure.RecognizeOptions{
				Detailed: detailed,
				Locale:   cfg.Azure.Locale,
			})
			if err != nil {
				return err
			}
			if detailed {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			fmt.Fprintln(cmd.OutOrStdout(), rec.Text())
			return nil
		}),
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "print every alternative with its confidence")
	return cmd
}
