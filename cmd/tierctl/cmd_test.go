package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/tierheap/pkg/config"
)

// run executes tierctl with args and returns its output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	verbose, quiet, jsonOut, configPath, logLevel = false, false, false, "", ""
	stressWorkers, stressRegions, stressOps, stressBatch = 8, 2, 100000, 256
	stressMinSize, stressMaxSize, stressForeign = 16, 0, 0.25
	stressRequeue, stressInspect, stressTrim, stressSeed = false, false, false, 1
	stressMetrics = false

	var buf bytes.Buffer
	out = &buf
	t.Cleanup(func() { out = os.Stdout })

	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{config.EnvChunkSize, config.EnvPoolSize, config.EnvPoolCount} {
		t.Setenv(name, "")
	}
}

func TestVersionCommand(t *testing.T) {
	output, err := run(t, "version")
	require.NoError(t, err)
	require.Contains(t, output, "tierctl dev")
}

func TestConfigCommandDefault(t *testing.T) {
	clearEnv(t)
	output, err := run(t, "config")
	require.NoError(t, err)
	require.Contains(t, output, "2,097,152 bytes (2.0 MiB)")
	require.Contains(t, output, "4,096")
}

func TestConfigCommandFileAndEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "tierheap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 1M\npool_size: 4K\npool_count: 6\n"), 0o644))
	t.Setenv(config.EnvPoolCount, "4")

	output, err := run(t, "config", "--config", path, "--json")
	require.NoError(t, err)

	var rep configReport
	require.NoError(t, json.Unmarshal([]byte(output), &rep))
	require.True(t, rep.Valid)
	require.Equal(t, config.Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 4}, rep.Config)
	require.Equal(t, []classRow{{2, 256, 16}, {3, 512, 8}}, rep.Classes)
}

func TestConfigCommandInvalid(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvChunkSize, "3M")
	output, err := run(t, "config")
	require.ErrorIs(t, err, errInvalidConfig)
	require.Contains(t, output, "Invalid")
}

func TestScenarioCommand(t *testing.T) {
	output, err := run(t, "scenario", "--json")
	require.NoError(t, err)

	var results []scenarioResult
	require.NoError(t, json.Unmarshal([]byte(output), &results))
	require.Len(t, results, len(scenarios))
	for _, res := range results {
		require.True(t, res.OK, "%s: %s", res.Name, res.Detail)
	}
}

func TestScenarioCommandUnknown(t *testing.T) {
	_, err := run(t, "scenario", "nope")
	require.ErrorIs(t, err, errUnknownScenario)
}

func TestStressCommand(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvChunkSize, "1M")
	t.Setenv(config.EnvPoolSize, "4K")
	t.Setenv(config.EnvPoolCount, "4")

	output, err := run(t, "stress", "-w", "4", "--regions", "3", "-n", "5000", "--batch", "64",
		"--requeue", "--inspect", "--trim", "--json")
	require.NoError(t, err)

	var rep stressReport
	require.NoError(t, json.Unmarshal([]byte(output), &rep))
	require.EqualValues(t, 20000, rep.Ops)
	require.Positive(t, rep.Stats.ChunksMinted)
	require.Positive(t, rep.Stats.ForeignFrees)
	require.EqualValues(t, 3, rep.Stats.Drops)
	require.NotEmpty(t, rep.Chunks)
	require.Zero(t, rep.Reported)
}

func TestStressCommandMetrics(t *testing.T) {
	clearEnv(t)
	t.Setenv(config.EnvChunkSize, "1M")
	t.Setenv(config.EnvPoolSize, "4K")
	t.Setenv(config.EnvPoolCount, "4")

	output, err := run(t, "stress", "-w", "2", "-n", "2000", "--metrics")
	require.NoError(t, err)
	require.Contains(t, output, "# TYPE tierheap_chunks_minted_total counter")
	require.Contains(t, output, `tierheap_slides_total{direction="left"}`)
	require.Contains(t, output, "tierheap_drops_total 2")
}

func TestStressCommandRejectsBadFlags(t *testing.T) {
	_, err := run(t, "stress", "-w", "0")
	require.Error(t, err)
}
