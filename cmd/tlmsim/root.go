package main

import (
	"github.com/spf13/cobra"

	"github.com/sarchlab/tlm/config"
)

type rootOptions struct {
	configPath string
	envFiles   []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "tlmsim",
		Short: "tlmsim simulates an initiator accessing a memory target.",
		Long: `tlmsim simulates an initiator accessing a memory target ` +
			`through blocking transport calls and direct memory access ` +
			`grants, with periodic grant invalidation and a final debug ` +
			`dump of the memory.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"YAML configuration file")
	rootCmd.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file",
		[]string{".env"}, "files to load environment variables from")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newDumpConfigCmd(opts))

	return rootCmd
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(o.envFiles...); err != nil {
		return nil, err
	}

	return config.Load(o.configPath)
}
