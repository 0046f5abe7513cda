package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/joshuapare/tierheap/heap"
	"github.com/joshuapare/tierheap/internal/logger"
	"github.com/joshuapare/tierheap/pkg/diag"
	"github.com/joshuapare/tierheap/pkg/metrics"
)

var (
	stressWorkers int
	stressRegions int
	stressOps     int
	stressBatch   int
	stressMinSize int
	stressMaxSize int
	stressForeign float64
	stressRequeue bool
	stressInspect bool
	stressTrim    bool
	stressMetrics bool
	stressSeed    uint64
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().IntVarP(&stressWorkers, "workers", "w", 8, "Goroutines, each owning a Local heap")
	cmd.Flags().IntVar(&stressRegions, "regions", 2, "Regional heaps the workers are spread over")
	cmd.Flags().IntVarP(&stressOps, "ops", "n", 100000, "Allocations per worker")
	cmd.Flags().IntVar(&stressBatch, "batch", 256, "Objects held per worker before freeing")
	cmd.Flags().IntVar(&stressMinSize, "min-size", 16, "Smallest request size")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 0, "Largest request size (default: largest class)")
	cmd.Flags().Float64Var(&stressForeign, "foreign", 0.25, "Fraction of objects freed by another goroutine")
	cmd.Flags().BoolVar(&stressRequeue, "requeue", false, "Requeue half-empty blocks next to the head")
	cmd.Flags().BoolVar(&stressInspect, "inspect", false, "Print chunk header summaries before teardown")
	cmd.Flags().BoolVar(&stressTrim, "trim", false, "Release unformatted pages to the OS before teardown")
	cmd.Flags().BoolVar(&stressMetrics, "metrics", false, "Print Prometheus metrics before teardown")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run a concurrent allocation workload",
		Long: `The stress command builds a Root heap from the resolved configuration,
attaches Regional heaps and one Local heap per worker, and runs a mixed
allocate/free workload. A share of objects is handed to a shared pool of
freeing goroutines to exercise the cross-goroutine free path.

Example:
  tierctl stress
  tierctl stress -w 16 -n 1000000 --foreign 0.5
  tierctl stress --config small.yaml --requeue --inspect --trim --json
  tierctl stress -n 10000 --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress()
		},
	}
	return cmd
}

type stressReport struct {
	Workers  int              `json:"workers"`
	Regions  int              `json:"regions"`
	Ops      int64            `json:"ops"`
	Elapsed  time.Duration    `json:"elapsed_ns"`
	OpsPerS  float64          `json:"ops_per_second"`
	Stats    heap.Stats       `json:"stats"`
	Chunks   []heap.ChunkInfo `json:"chunks,omitempty"`
	Trimmed  int              `json:"bytes_trimmed,omitempty"`
	Reported int              `json:"diagnostics"`
}

func runStress() error {
	if stressWorkers < 1 || stressRegions < 1 || stressOps < 1 || stressBatch < 1 {
		return errors.New("workers, regions, ops and batch must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var reports diag.Collector
	root, err := heap.NewRoot(cfg, &heap.Options{
		Sink:             diag.SinkFunc(func(r diag.Report) { reports.Report(r); diag.LogSink{Logger: logger.L}.Report(r) }),
		RequeueHalfEmpty: stressRequeue,
		Verbose:          verbose,
	})
	if err != nil {
		return err
	}
	maxSize := stressMaxSize
	if maxSize <= 0 || maxSize > root.MaxObjectSize() {
		maxSize = root.MaxObjectSize()
	}
	minSize := min(max(stressMinSize, 1), maxSize)

	regions := make([]*heap.Regional, stressRegions)
	for i := range regions {
		if regions[i], err = root.NewRegional(); err != nil {
			return err
		}
	}
	printVerbose("Chunk %d, pool %d, %d classes up to %d bytes\n", cfg.ChunkSize, cfg.PoolSize, cfg.PoolCount-2, maxSize)

	handoff := make(chan unsafe.Pointer, stressWorkers*stressBatch)
	errs := make(chan error, 2*stressWorkers+1)

	var freers sync.WaitGroup
	for i := 0; i < max(stressWorkers/2, 1); i++ {
		freers.Add(1)
		go func() {
			defer freers.Done()
			for p := range handoff {
				if err := root.Free(p); err != nil {
					select {
					case errs <- err:
					default:
					}
				}
			}
		}()
	}

	start := time.Now()
	var workers sync.WaitGroup
	for w := 0; w < stressWorkers; w++ {
		h, err := regions[w%len(regions)].NewLocal()
		if err != nil {
			return err
		}
		workers.Add(1)
		go func(w int, h *heap.Local) {
			defer workers.Done()
			if err := stressWorker(h, w, minSize, maxSize, handoff); err != nil {
				errs <- fmt.Errorf("worker %d: %w", w, err)
			}
		}(w, h)
	}
	workers.Wait()
	close(handoff)
	freers.Wait()
	elapsed := time.Since(start)
	close(errs)
	if err := errors.Join(collect(errs)...); err != nil {
		return err
	}

	rep := stressReport{
		Workers:  stressWorkers,
		Regions:  stressRegions,
		Ops:      int64(stressWorkers) * int64(stressOps),
		Elapsed:  elapsed,
		Stats:    root.Stats(),
		Reported: len(reports.Reports()),
	}
	rep.OpsPerS = float64(rep.Ops) / elapsed.Seconds()
	if stressInspect {
		if rep.Chunks, err = root.Inspect(); err != nil {
			return err
		}
	}

	// Regions without workers were never dropped.
	for _, r := range regions {
		if err := r.Close(); err != nil && !errors.Is(err, heap.ErrClosed) {
			return err
		}
	}
	if stressTrim {
		if rep.Trimmed, err = root.Trim(); err != nil {
			return err
		}
	}
	var metricsText bytes.Buffer
	if stressMetrics {
		if err := writeMetrics(&metricsText, root); err != nil {
			return err
		}
	}
	if err := root.Destroy(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(rep)
	}
	printInfo("%d workers over %d regions: %d allocations in %v (%.0f ops/s)\n",
		rep.Workers, rep.Regions, rep.Ops, rep.Elapsed.Round(time.Millisecond), rep.OpsPerS)
	if !quiet {
		rep.Stats.Print(out)
	}
	for _, c := range rep.Chunks {
		printInfo("chunk %d at %#x: %d/%d blocks formatted\n", c.ID, c.Base, c.Formatted, len(c.Records))
		for i, r := range c.Records {
			printVerbose("  block %2d: %5d x %4d bytes, formatted %d times\n", i, r.ObjCount, r.ObjSize, r.Formats)
		}
	}
	if stressTrim {
		printInfo("trimmed %s\n", humanize.IBytes(uint64(rep.Trimmed)))
	}
	if rep.Reported > 0 {
		printInfo("%d diagnostics reported\n", rep.Reported)
	}
	if stressMetrics {
		fmt.Fprint(out, metricsText.String())
	}
	return nil
}

// writeMetrics renders the root's statistics in the Prometheus text format.
func writeMetrics(w io.Writer, root *heap.Root) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(metrics.NewCollector("tierheap", root, nil)); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// stressWorker allocates in batches, frees part of each batch locally and
// hands the rest to the shared freers, then destroys its heap.
func stressWorker(h *heap.Local, w, minSize, maxSize int, handoff chan<- unsafe.Pointer) error {
	rng := rand.New(rand.NewPCG(stressSeed, uint64(w)))
	held := make([]unsafe.Pointer, 0, stressBatch)

	flush := func() error {
		for _, p := range held {
			if rng.Float64() < stressForeign {
				handoff <- p
				continue
			}
			if err := h.Free(p); err != nil {
				return err
			}
		}
		held = held[:0]
		return nil
	}

	for i := 0; i < stressOps; i++ {
		size := minSize + rng.IntN(maxSize-minSize+1)
		p, err := h.Alloc(size)
		if err != nil {
			return err
		}
		*(*byte)(p) = byte(w)
		held = append(held, p)
		if len(held) == stressBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return h.Destroy()
}

func collect(errs <-chan error) []error {
	var out []error
	for err := range errs {
		out = append(out, err)
	}
	return out
}
