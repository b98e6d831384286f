package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/hillmyna/internal/auth"
	"github.com/codebuildervaibhav/hillmyna/internal/words"
)

func wordsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "words",
		Short: "Sample challenge words",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := words.Load(cfg.Path(cfg.Data.WordsFile), words.WithLogger(log))
			if err != nil {
				return err
			}
			list, err := m.Sample(n)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(list, " "))
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 5, "number of words")
	return cmd
}

func enrollmentTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enrollment-text",
		Short: "Print the text users read while enrolling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), auth.LoadEnrollmentText(cfg.Path(cfg.Data.EnrollmentTextFile), log))
			return nil
		},
	}
}
