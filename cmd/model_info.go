package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/waste-risk/internal/inference"
)

var modelInfoCmd = &cobra.Command{
	Use:   "model-info",
	Short: "Print the classifier capability descriptor",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, name, err := newProvider(cfg, cfg.Data.ModelPath)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), inference.ModelInfo(name))
	},
}

func init() {
	rootCmd.AddCommand(modelInfoCmd)
}
