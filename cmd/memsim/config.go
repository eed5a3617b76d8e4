package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/timing/memsys"
)

func newConfigCmd() *cobra.Command {
	var (
		mode     string
		numCores int
		output   string
	)

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print or save a default memory system configuration.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config := memsys.DefaultConfig()
			config.NumCores = numCores

			if mode != "" {
				m, err := memsys.ParseMode(mode)
				if err != nil {
					return err
				}
				config.Mode = m
			}

			if err := config.Validate(); err != nil {
				return err
			}

			if output != "" {
				return config.SaveConfig(output)
			}

			data, err := json.MarshalIndent(config, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to serialize memsys config: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))

			return err
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "simulation mode A-F")
	cmd.Flags().IntVar(&numCores, "cores", 1, "number of cores")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
