// Command driftscan is the thin cobra CLI shell over the C1-C9 core: one
// subcommand per §6 external-interface operation, each RunE translating
// flags into a call against the matching internal/* package and a call
// to output.NewFormatter for rendering. Grounded on the teacher's
// cmd/omen/*.go one-file-per-command convention (root.go's persistent
// pprof flags, the individual command files' RunE/flags shape).
package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	verbose      bool
	pprofPrefix  string
	pprofCPUFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "driftscan",
	Short: "Architectural drift detector for multi-language codebases",
	Long: `driftscan mines a codebase's own conventions (routing, error
handling, auth, data access, and six other categories), tracks them as
approved or ignored patterns, and flags files that drift from them.

It also builds a cross-file call graph to answer reachability and
blast-radius questions: what can reach this function, what does this
change affect.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if pprofPrefix != "" {
			f, err := os.Create(pprofPrefix + ".cpu.pprof")
			if err != nil {
				return fmt.Errorf("failed to create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return fmt.Errorf("failed to start CPU profile: %w", err)
			}
			pprofCPUFile = f
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if pprofPrefix != "" {
			pprof.StopCPUProfile()
			if pprofCPUFile != nil {
				pprofCPUFile.Close()
				color.Green("CPU profile written to %s.cpu.pprof", pprofPrefix)
			}

			memFile, err := os.Create(pprofPrefix + ".mem.pprof")
			if err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			defer memFile.Close()

			runtime.GC()
			if err := pprof.WriteHeapProfile(memFile); err != nil {
				return fmt.Errorf("failed to write memory profile: %w", err)
			}
			color.Green("Memory profile written to %s.mem.pprof", pprofPrefix)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to config file (TOML, YAML, or JSON)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&pprofPrefix, "pprof", "", "Enable pprof profiling (creates <prefix>.cpu.pprof and <prefix>.mem.pprof)")
	rootCmd.PersistentFlags().String("format", "text", "Output format: text, json, markdown")
	rootCmd.PersistentFlags().String("output", "", "Write output to a file instead of stdout")
	rootCmd.PersistentFlags().String("project-dir", ".drift", "Path to the project's drift state directory")
	rootCmd.PersistentFlags().String("path", ".", "Project root for commands that operate on an existing .drift state")
}
