package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "closure-tracker",
	Short: "Track how bank account closures go, from blog comments",
	Long:  "Incrementally scrapes comments on the DoctorOfCredit bank-closure post, extracts closure attempts with Claude, and summarizes them per bank.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
