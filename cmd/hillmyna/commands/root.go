package commands

import (
	"context"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/hillmyna/internal/app"
	"github.com/codebuildervaibhav/hillmyna/internal/config"
	"github.com/codebuildervaibhav/hillmyna/internal/logging"
)

var (
	configPath string
	verbose    bool

	cfg *config.Config
	log *logrus.Entry
)

// Execute runs the command line and cancels it on interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "hillmyna",
		Short:        "Voice authentication administration",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}

			settings := cfg.Logging
			settings.File = ""
			settings.Level = "warn"
			if verbose {
				settings.Level = "debug"
			}
			logger, err := logging.NewLogger(settings)
			if err != nil {
				return err
			}
			logger.SetOutput(os.Stderr)
			log = logrus.NewEntry(logger)
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "path to the YAML configuration")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log Azure requests")

	root.AddCommand(
		wordsCmd(),
		enrollmentTextCmd(),
		usersCmd(),
		enrollCmd(),
		identifyCmd(),
		recognizeCmd(),
		profilesCmd(),
		benchCmd(),
		driveCmd(),
	)
	return root
}

// loadWire builds the services for commands that need Azure or the database.
// Release it with Close.
func loadWire(cmd *cobra.Command) (*app.Wire, error) {
	return app.NewWire(cmd.Context(), cfg, log, nil)
}

// withWire runs fn with a freshly built Wire and closes it afterwards.
func withWire(fn func(cmd *cobra.Command, args []string, w *app.Wire) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		w, err := loadWire(cmd)
		if err != nil {
			return err
		}
		defer w.Close()
		return fn(cmd, args, w)
	}
}
