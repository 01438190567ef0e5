package main

import (
	"github.com/spf13/cobra"
)

func newDumpConfigCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump-config",
		Short: "Print the configuration after files and environment are applied.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			data, err := cfg.Marshal()
			if err != nil {
				return err
			}

			_, err = cmd.OutOrStdout().Write(data)

			return err
		},
	}
}
