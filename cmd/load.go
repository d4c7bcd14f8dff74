package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loadFile string

var loadCmd = &cobra.Command{
	Use:   "load [queries]",
	Short: "Apply a batch of control queries as config input",
	Long: `Applies either a ";"-separated query string ("stats.enabled=1;heap.0.automatic=0")
or, with --file, an HCL config file. Queries run as config input: leaves that
reject bulk configuration (e.g. stats.reset) fail the load.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && loadFile == "" {
			return fmt.Errorf("nothing to load: give a query string or --file")
		}

		p, err := openPool()
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		if len(args) == 1 {
			if err := p.LoadString(args[0]); err != nil {
				return err
			}
		}
		if loadFile != "" {
			if err := p.LoadFile(loadFile); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVar(&loadFile, "file", "", "HCL config file to apply")
	rootCmd.AddCommand(loadCmd)
}
