package main

import (
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/tierheap/heap"
	"github.com/joshuapare/tierheap/internal/format"
	"github.com/joshuapare/tierheap/internal/vmem"
	"github.com/joshuapare/tierheap/pkg/config"
)

func init() {
	rootCmd.AddCommand(newConfigCmd())
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration and size classes",
		Long: `The config command resolves the configuration, validates it against
the platform page size and prints the size class table.

Example:
  tierctl config
  tierctl config --config tierheap.yaml
  TIERHEAP_POOL_SIZE=4K tierctl config --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfig()
		},
	}
	return cmd
}

type classRow struct {
	Class       int `json:"class"`
	ObjectSize  int `json:"object_size"`
	ObjectCount int `json:"objects_per_block"`
}

type configReport struct {
	Config   config.Config `json:"config"`
	PageSize int           `json:"page_size"`
	Valid    bool          `json:"valid"`
	Error    string        `json:"error,omitempty"`
	Blocks   int           `json:"blocks_per_chunk"`
	Classes  []classRow    `json:"classes,omitempty"`
}

func runConfig() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rep := configReport{Config: cfg, PageSize: vmem.PageSize(), Blocks: format.BlocksPerChunk}
	if err := cfg.Validate(rep.PageSize); err != nil {
		rep.Error = err.Error()
	} else {
		rep.Valid = true
		sizes, err := heap.SizeClasses(cfg)
		if err != nil {
			return err
		}
		for c := 2; c < len(sizes); c++ {
			if c > 2 && sizes[c] == sizes[c-1] {
				continue
			}
			rep.Classes = append(rep.Classes, classRow{Class: c, ObjectSize: sizes[c], ObjectCount: cfg.PoolSize / sizes[c]})
		}
	}

	if jsonOut {
		if err := printJSON(rep); err != nil {
			return err
		}
	} else {
		printConfigReport(rep)
	}
	if !rep.Valid {
		return errInvalidConfig
	}
	return nil
}

func printConfigReport(rep configReport) {
	printInfo("Chunk size:  %d bytes (%s)\n", rep.Config.ChunkSize, humanize.IBytes(uint64(rep.Config.ChunkSize)))
	printInfo("Pool size:   %d bytes (%s)\n", rep.Config.PoolSize, humanize.IBytes(uint64(rep.Config.PoolSize)))
	printInfo("Pool count:  %d\n", rep.Config.PoolCount)
	printVerbose("Page size:   %d bytes\n", rep.PageSize)
	printVerbose("Blocks:      %d per chunk\n", rep.Blocks)
	if !rep.Valid {
		printInfo("\nInvalid: %s\n", rep.Error)
		return
	}
	printInfo("\n%-6s  %10s  %8s\n", "CLASS", "SIZE", "PER BLOCK")
	for _, row := range rep.Classes {
		printInfo("%-6d  %10d  %8d\n", row.Class, row.ObjectSize, row.ObjectCount)
	}
}
