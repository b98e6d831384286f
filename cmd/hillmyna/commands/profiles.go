package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/hillmyna/internal/app"
)

func profilesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profiles",
		Short: "Inspect Azure identification profiles",
	}
	cmd.AddCommand(profilesListCmd(), profilesPurgeCmd())
	return cmd
}

func profilesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every profile of the identification resource",
		Args:  cobra.NoArgs,
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			profiles, err := w.Service.Profiles(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout(), "PROFILE", "STATUS", "SPEECH", "REMAINING", "LOCALE")
			for _, p := range profiles {
				row(tw, p.ID, p.EnrollmentStatus,
					fmt.Sprintf("%.1fs", p.EnrollmentSpeechTime),
					fmt.Sprintf("%.1fs", p.RemainingEnrollmentSpeechTime),
					p.Locale)
			}
			return tw.Flush()
		}),
	}
}

func profilesPurgeCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete every profile and every user",
		Args:  cobra.NoArgs,
		RunE: withWire(func(cmd *cobra.Command, args []string, w *app.Wire) error {
			if !yes {
				return errors.New("refusing to delete every profile without --yes")
			}
			deleted, err := w.Service.PurgeProfiles(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d profiles\n", len(deleted))
			return err
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
