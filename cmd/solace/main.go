// Solace is a voice and text companion that listens, answers with a local or
// hosted language model and speaks the reply.
//
// Usage:
//
//	solace                      talk through the microphone
//	solace console --text       type instead of speaking
//	solace web                  serve the browser chat
//	solace --config /path/to/solace.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nadzzz/solace/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "solace",
		Short: "A supportive companion you can talk to",
		Long: `solace listens to you through the microphone (or the keyboard), answers
with an empathetic language model and speaks the reply.

Say "exit", "quit", "bye" or "goodbye" to end the conversation.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/solace.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		return cfg, nil
	}

	console := newConsoleCmd(load)
	root.RunE = console.RunE
	root.Flags().AddFlagSet(console.Flags())

	root.AddCommand(console, newWebCmd(load), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "solace %s\n", version)
		},
	}
}
