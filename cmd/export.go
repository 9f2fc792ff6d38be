package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/closure-tracker/internal/summary"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the per-bank summary to a spreadsheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		s, err := summary.Load(ctx, env.Backend, env.Files.SummaryFile)
		if err != nil {
			return err
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return eris.Wrap(err, "export: create file")
		}
		if err := summary.WriteXLSX(f, s); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		if err := f.Close(); err != nil {
			return eris.Wrap(err, "export: close file")
		}

		zap.L().Info("export: written", zap.String("path", exportOut), zap.Int("banks", len(s)))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "by_bank.xlsx", "output spreadsheet path")
	rootCmd.AddCommand(exportCmd)
}
