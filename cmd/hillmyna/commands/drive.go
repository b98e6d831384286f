package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/hillmyna/internal/storage"
)

func driveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Google Drive sample upload",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "auth",
		Short: "Authorize uploads and store the OAuth token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			gd := cfg.GoogleDrive
			if gd.CredentialsFile == "" {
				return fmt.Errorf("google_drive.credentials_file is not set in %s", configPath)
			}
			if err := storage.AuthorizeDrive(cmd.Context(), gd.CredentialsFile, gd.TokenFile, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", gd.TokenFile)
			return nil
		},
	})
	return cmd
}
