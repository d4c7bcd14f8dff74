package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/pmemctl/internal/pool"
)

var (
	poolPath   string
	confString string
	confFile   string
)

var rootCmd = &cobra.Command{
	Use:   "pmemctl",
	Short: "pmemctl: inspect and tune persistent-memory pools by name",
	Long: `pmemctl opens a persistent-memory pool file and resolves dotted control
paths (e.g. heap.0.automatic, stats.enabled) against its control tree, the
same namespace the engine uses internally.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&poolPath, "pool", "p", "", "Path to the pool file")
	rootCmd.PersistentFlags().StringVar(&confString, "conf", "", "Control queries applied at open (name=value;...)")
	rootCmd.PersistentFlags().StringVar(&confFile, "conf-file", "", "HCL config file applied at open")
}

// openPool opens the pool named by the global flags.
func openPool() (*pool.Pool, error) {
	if poolPath == "" {
		return nil, fmt.Errorf("no pool file given (use --pool)")
	}
	return pool.Open(poolPath, pool.Options{
		ConfigString: confString,
		ConfigFile:   confFile,
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
