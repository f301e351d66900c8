// Package cmd implements the CLI commands for WebToBook using Cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var flagLogLevel string

var rootCmd = &cobra.Command{
	Use:   "webtobook",
	Short: "WebToBook — convert web content into EPUB, PDF, or HTML books",
	Long: `WebToBook scrapes serialized web content (novels, manga, articles,
documentation) and assembles it into a downloadable book.

Usage:
  webtobook serve [flags]
  webtobook convert <url> [flags]`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(flagLogLevel)
		if err != nil {
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log_level", "info", "Log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
