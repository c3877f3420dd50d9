package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/drawkit/sai/pkg/commands"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	rootCmd := &cobra.Command{
		Use:   "saictl",
		Short: "Inspect SAI document containers",
	}
	rootCmd.AddCommand(commands.TreeCmd)
	rootCmd.AddCommand(commands.InfoCmd)
	rootCmd.AddCommand(commands.LayersCmd)
	rootCmd.AddCommand(commands.ExtractCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
