package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/pmemctl/internal/pool"
)

var (
	createChunkSize uint64
	createChunks    uint64
	createArenas    uint64
)

var createCmd = &cobra.Command{
	Use:   "create [pool-file]",
	Short: "Create a new pool file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := pool.Create(args[0], pool.Options{
			ChunkSize:      createChunkSize,
			ChunksPerArena: createChunks,
			NArenas:        createArenas,
			ConfigString:   confString,
			ConfigFile:     confFile,
		})
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()

		info := p.Info()
		fmt.Printf("Created %s: %d arenas x %d chunks x %d bytes\n",
			args[0], info.NArenas, info.ChunksPerArena, info.ChunkSize)
		return nil
	},
}

func init() {
	createCmd.Flags().Uint64Var(&createChunkSize, "chunk-size", 0, "Chunk size in bytes")
	createCmd.Flags().Uint64Var(&createChunks, "chunks", 0, "Chunks per arena")
	createCmd.Flags().Uint64Var(&createArenas, "arenas", 0, "Number of arenas")
	rootCmd.AddCommand(createCmd)
}
