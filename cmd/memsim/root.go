package main

import (
	"github.com/spf13/cobra"
)

const (
	envConfig = "MEMSIM_CONFIG"
	envRecord = "MEMSIM_RECORD"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memsim",
		Short: "memsim simulates a cache and DRAM hierarchy driven by traces.",
		Long: `memsim simulates a cache and DRAM hierarchy driven by ` +
			`instruction traces. It supports a lone data cache, shared L1 ` +
			`caches in front of an L2, and per-core L1 caches with address ` +
			`translation in front of a shared L2.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newRunCmd(), newConfigCmd())

	return rootCmd
}
