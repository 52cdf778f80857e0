package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	configPath string
	useLocal   bool
)

var rootCmd = &cobra.Command{
	Use:   "gridpilot",
	Short: "gridpilot - spreadsheet automation on request",
	Long: color.CyanString("gridpilot") + " turns conversation into reviewed, one-click workbook operations.\n" +
		"The agent proposes Excel.run snippets; nothing touches the workbook until you run one.",
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gridpilot.yaml", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&useLocal, "local", false, "answer turns with an in-process agent instead of the HTTP backend")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(telegramCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
