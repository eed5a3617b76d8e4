package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/recording"
	"github.com/sarchlab/memsim/timing/core"
	"github.com/sarchlab/memsim/timing/memsys"
)

type runOptions struct {
	configPath string
	mode       string
	traces     []string
	recordPath string
	verbose    bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] <trace>...",
		Short: "Replay traces, one per core, and print the statistics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.traces = append(opts.traces, args...)
			if len(opts.traces) == 0 {
				return fmt.Errorf("no trace given")
			}

			var traceLog io.Writer
			if opts.verbose {
				traceLog = cmd.ErrOrStderr()
			}

			return runSimulation(opts, cmd.OutOrStdout(), traceLog)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", os.Getenv(envConfig),
		"memory system configuration JSON file")
	flags.StringVar(&opts.mode, "mode", "",
		"simulation mode A-F, overrides the configuration")
	flags.StringArrayVar(&opts.traces, "trace", nil,
		"trace file, may be repeated; one core per trace")
	flags.StringVar(&opts.recordPath, "record", os.Getenv(envRecord),
		"record statistics to this SQLite database")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false,
		"log every memory access to stderr")

	return cmd
}

func loadConfig(opts runOptions) (memsys.Config, error) {
	config := memsys.DefaultConfig()
	if opts.configPath != "" {
		var err error
		config, err = memsys.LoadConfig(opts.configPath)
		if err != nil {
			return memsys.Config{}, err
		}
	}

	if opts.mode != "" {
		mode, err := memsys.ParseMode(opts.mode)
		if err != nil {
			return memsys.Config{}, err
		}
		config.Mode = mode
	}

	config.NumCores = len(opts.traces)

	return config, nil
}

func runSimulation(opts runOptions, out, traceLog io.Writer) error {
	config, err := loadConfig(opts)
	if err != nil {
		return err
	}

	var sysOpts []memsys.Option
	if traceLog != nil {
		sysOpts = append(sysOpts,
			memsys.WithTraceLogger(log.New(traceLog, "memsim: ", 0)))
	}

	sys, err := memsys.New(config, sysOpts...)
	if err != nil {
		return err
	}

	cores := make([]*core.Core, len(opts.traces))
	for i, path := range opts.traces {
		trace, err := loader.Load(path)
		if err != nil {
			return err
		}

		cores[i] = core.NewCore(i, trace.Source(), sys)
	}

	if err := core.RunAll(cores); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "MODE\t\t\t\t : %10s", config.Mode)
	_, _ = fmt.Fprintf(out, "\nNUM_CORES\t\t\t : %10d", config.NumCores)
	for _, c := range cores {
		printCoreStats(out, c)
	}
	sys.PrintStats(out)

	if opts.recordPath != "" {
		return record(opts.recordPath, sys, out)
	}

	return nil
}

func printCoreStats(out io.Writer, c *core.Core) {
	s := c.Stats()
	header := fmt.Sprintf("CORE_%d", c.ID)

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintf(out, "\n%s_INST          \t\t : %10d", header, s.Instructions)
	_, _ = fmt.Fprintf(out, "\n%s_CYCLES        \t\t : %10d", header, s.Cycles)
	_, _ = fmt.Fprintf(out, "\n%s_CPI           \t\t : %10.3f", header, s.CPI())
}

func record(path string, sys *memsys.MemorySystem, out io.Writer) error {
	r, err := recording.New(path)
	if err != nil {
		return err
	}

	runID := recording.NewRunID()
	if err := recording.RecordMemsys(r, runID, sys); err != nil {
		_ = r.Close()
		return err
	}

	if err := r.Close(); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "\nRecorded run %s to %s\n", runID, r.Path())

	return nil
}
