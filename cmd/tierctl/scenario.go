package main

import (
	"fmt"
	"slices"
	"sync/atomic"
	"unsafe"

	"github.com/spf13/cobra"

	"github.com/joshuapare/tierheap/heap"
	"github.com/joshuapare/tierheap/pkg/config"
)

// scenarioConfig is the geometry every scenario runs with.
var scenarioConfig = config.Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 4}

type scenario struct {
	name string
	desc string
	run  func() (string, heap.Stats, error)
}

var scenarios = []scenario{
	{"three-tier", "1000 allocations through Root, Regional and Local", runThreeTier},
	{"foreign-free", "object freed by another goroutine returns to its owner", runForeignFree},
	{"empty-enough", "half-empty notification fires once per crossing", runEmptyEnough},
	{"teardown", "destroying a Local heap moves its blocks to the parent", runTeardown},
}

func init() {
	rootCmd.AddCommand(newScenarioCmd())
}

func newScenarioCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario [name...]",
		Short: "Run built-in allocator scenarios",
		Long: `The scenario command runs end-to-end checks against a fresh heap
hierarchy (1 MiB chunks, 4 KiB pools, 4 pools). With no arguments every
scenario runs.

Scenarios:
  three-tier     1000 allocations through Root, Regional and Local
  foreign-free   object freed by another goroutine returns to its owner
  empty-enough   half-empty notification fires once per crossing
  teardown       destroying a Local heap moves its blocks to the parent

Example:
  tierctl scenario
  tierctl scenario teardown --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(args)
		},
	}
	return cmd
}

type scenarioResult struct {
	Name   string     `json:"name"`
	OK     bool       `json:"ok"`
	Detail string     `json:"detail"`
	Stats  heap.Stats `json:"stats"`
}

func runScenarios(names []string) error {
	selected := scenarios
	if len(names) > 0 {
		selected = nil
		for _, name := range names {
			i := slices.IndexFunc(scenarios, func(s scenario) bool { return s.name == name })
			if i < 0 {
				return fmt.Errorf("%w: %s", errUnknownScenario, name)
			}
			selected = append(selected, scenarios[i])
		}
	}

	var results []scenarioResult
	failed := 0
	for _, s := range selected {
		printVerbose("Running %s: %s\n", s.name, s.desc)
		detail, stats, err := s.run()
		res := scenarioResult{Name: s.name, OK: err == nil, Detail: detail, Stats: stats}
		if err != nil {
			res.Detail = err.Error()
			failed++
		}
		results = append(results, res)
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			status := "PASS"
			if !res.OK {
				status = "FAIL"
			}
			printInfo("%-4s  %-13s  %s\n", status, res.Name, res.Detail)
			if verbose {
				res.Stats.Print(out)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

// hierarchy builds Root, one Regional and n Local heaps.
func hierarchy(opts *heap.Options, n int) (*heap.Root, *heap.Regional, []*heap.Local, error) {
	root, err := heap.NewRoot(scenarioConfig, opts)
	if err != nil {
		return nil, nil, nil, err
	}
	region, err := root.NewRegional()
	if err != nil {
		root.Destroy()
		return nil, nil, nil, err
	}
	locals := make([]*heap.Local, n)
	for i := range locals {
		if locals[i], err = region.NewLocal(); err != nil {
			return nil, nil, nil, err
		}
	}
	return root, region, locals, nil
}

// teardown destroys the Local heaps, which drops the Regional, then the Root.
func teardown(root *heap.Root, locals []*heap.Local) error {
	for _, h := range locals {
		if err := h.Destroy(); err != nil {
			return err
		}
	}
	return root.Destroy()
}

func runThreeTier() (string, heap.Stats, error) {
	root, _, locals, err := hierarchy(nil, 1)
	if err != nil {
		return "", heap.Stats{}, err
	}
	seen := map[uintptr]bool{}
	for i := 0; i < 1000; i++ {
		p, err := locals[0].Alloc(64)
		if err != nil {
			return "", root.Stats(), fmt.Errorf("allocation %d: %w", i, err)
		}
		if !root.Owns(p) {
			return "", root.Stats(), fmt.Errorf("allocation %d at %p outside root chunks", i, p)
		}
		if seen[uintptr(p)] {
			return "", root.Stats(), fmt.Errorf("allocation %d at %p handed out twice", i, p)
		}
		seen[uintptr(p)] = true
	}
	stats := root.Stats()
	detail := fmt.Sprintf("1000 objects in %d chunk(s), %d blocks", root.Chunks(), locals[0].Census()[2])
	return detail, stats, teardown(root, locals)
}

func runForeignFree() (string, heap.Stats, error) {
	root, _, locals, err := hierarchy(nil, 2)
	if err != nil {
		return "", heap.Stats{}, err
	}
	owner, other := locals[0], locals[1]

	p, err := owner.Alloc(200)
	if err != nil {
		return "", root.Stats(), err
	}
	done := make(chan error)
	go func() { done <- other.Free(p) }()
	if err := <-done; err != nil {
		return "", root.Stats(), fmt.Errorf("foreign free: %w", err)
	}

	perBlock := scenarioConfig.PoolSize / 256
	for i := 0; i < perBlock; i++ {
		q, err := owner.Alloc(200)
		if err != nil {
			return "", root.Stats(), err
		}
		if q == p {
			stats := root.Stats()
			return fmt.Sprintf("address returned after %d allocations", i+1), stats, teardown(root, locals)
		}
	}
	return "", root.Stats(), fmt.Errorf("freed address %p never returned to its owner", p)
}

func runEmptyEnough() (string, heap.Stats, error) {
	var fired atomic.Int64
	opts := &heap.Options{OnEmptyEnough: func(heap.BlockInfo) { fired.Add(1) }}
	root, region, locals, err := hierarchy(opts, 1)
	if err != nil {
		return "", heap.Stats{}, err
	}
	h := locals[0]

	perBlock := scenarioConfig.PoolSize / 256
	full := make([]unsafe.Pointer, perBlock)
	for i := range full {
		if full[i], err = h.Alloc(256); err != nil {
			return "", root.Stats(), err
		}
	}
	// Pull a second block so the first is no longer the allocation target.
	if _, err := h.Alloc(256); err != nil {
		return "", root.Stats(), err
	}
	for i, p := range full {
		if i%2 == 0 {
			err = h.Free(p)
		} else {
			err = region.Free(p)
		}
		if err != nil {
			return "", root.Stats(), err
		}
		if i < perBlock/2-1 {
			if _, err := h.Alloc(256); err != nil {
				return "", root.Stats(), err
			}
		}
	}
	if n := fired.Load(); n != 1 {
		return "", root.Stats(), fmt.Errorf("notification fired %d times, want 1", n)
	}
	stats := root.Stats()
	return fmt.Sprintf("fired once over %d frees, block evacuated (%d)", perBlock, stats.BlocksEvacuated), stats, teardown(root, locals)
}

func runTeardown() (string, heap.Stats, error) {
	root, region, locals, err := hierarchy(nil, 2)
	if err != nil {
		return "", heap.Stats{}, err
	}
	victim := locals[1]

	var ptrs []unsafe.Pointer
	for i := 0; i < 100; i++ {
		p, err := victim.Alloc(100)
		if err != nil {
			return "", root.Stats(), err
		}
		ptrs = append(ptrs, p)
	}
	held := sum(victim.Census())
	refs := region.Refs()
	if err := victim.Destroy(); err != nil {
		return "", root.Stats(), err
	}
	if got := sum(region.Census()); got != held {
		return "", root.Stats(), fmt.Errorf("parent received %d blocks, want %d", got, held)
	}
	if region.Refs() != refs-1 {
		return "", root.Stats(), fmt.Errorf("parent refcount %d, want %d", region.Refs(), refs-1)
	}
	for _, p := range ptrs {
		if err := region.Free(p); err != nil {
			return "", root.Stats(), err
		}
	}
	stats := root.Stats()
	return fmt.Sprintf("%d blocks evacuated, refcount %d -> %d", held, refs, refs-1), stats, teardown(root, locals[:1])
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}
