package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "workbook",
	Short: "Local CBT workbook journal",
	Long: `workbook keeps a local journal of CBT exercises: self-endorsements,
pros and cons, pleasure predictions, daily plans and more. Entries are stored
on this machine only.

Run "workbook start" to launch the server, then use the other commands to read
and edit your entries.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(sectionsCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(dataCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
