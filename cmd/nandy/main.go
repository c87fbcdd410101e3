package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nandy",
	Short: "Nandy - routines, todos, acts and areas for a household",
	Long: `Nandy tracks guided routines, reminders, good and bad acts and
right-or-wrong areas for the people of a household, and announces every
change so speakers and displays can react.`,
	SilenceUsage: true,
	// No RunE - defaults to showing help when no subcommand is provided
}

var (
	apiAddr    string
	configPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://127.0.0.1:7467", "API server address")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.nandy/config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(personCmd)
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(routineCmd)
	rootCmd.AddCommand(todoCmd)
	rootCmd.AddCommand(actCmd)
	rootCmd.AddCommand(areaCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
