package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate(4096))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"default", Default(), true},
		{"scenario", Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 4}, true},
		{"minimal", Config{ChunkSize: 128 << 10, PoolSize: 2048, PoolCount: 3}, true},
		{"chunk not pow2", Config{ChunkSize: 3 << 20, PoolSize: 4096, PoolCount: 4}, false},
		{"chunk too small", Config{ChunkSize: 128 << 10, PoolSize: 4096, PoolCount: 4}, false},
		{"chunk below page", Config{ChunkSize: 2048, PoolSize: 2048, PoolCount: 4}, false},
		{"pool too small", Config{ChunkSize: 1 << 20, PoolSize: 1024, PoolCount: 4}, false},
		{"pool too large", Config{ChunkSize: 8 << 20, PoolSize: 65536, PoolCount: 4}, false},
		{"pool misaligned", Config{ChunkSize: 1 << 20, PoolSize: 4100, PoolCount: 4}, false},
		{"count too small", Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 2}, false},
		{"count too large", Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 65}, false},
		{"zero", Config{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(4096)
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestConfigRead(t *testing.T) {
	c := Config{ChunkSize: 1, PoolSize: 2, PoolCount: 3}
	for i, p := range Params {
		v, err := c.Read(p)
		require.NoError(t, err)
		require.Equal(t, i+1, v)
	}
	_, err := c.Read(Param(9))
	require.ErrorIs(t, err, ErrUnknownParam)
}

func TestFromSourceEnv(t *testing.T) {
	t.Setenv(EnvChunkSize, "1M")
	t.Setenv(EnvPoolSize, "4KiB")
	t.Setenv(EnvPoolCount, "4")

	c, err := FromSource(Env{})
	require.NoError(t, err)
	require.Equal(t, Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 4}, c)
}

func TestEnvFallback(t *testing.T) {
	t.Setenv(EnvPoolCount, "6")
	os.Unsetenv(EnvChunkSize)
	os.Unsetenv(EnvPoolSize)

	fallback := Config{ChunkSize: 4 << 20, PoolSize: 8192, PoolCount: 12}
	c, err := FromSource(Env{Fallback: fallback})
	require.NoError(t, err)
	require.Equal(t, Config{ChunkSize: 4 << 20, PoolSize: 8192, PoolCount: 6}, c)
}

func TestEnvBadValue(t *testing.T) {
	t.Setenv(EnvPoolSize, "lots")
	_, err := FromSource(Env{})
	require.ErrorIs(t, err, ErrInvalid)
	require.Contains(t, err.Error(), "pool_size")
}

func TestParseSize(t *testing.T) {
	tests := map[string]int{
		"16":    16,
		" 4k ":  4096,
		"4KB":   4096,
		"2MiB":  2 << 20,
		"1g":    1 << 30,
		"65535": 65535,
	}
	for in, want := range tests {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "K", "-4", "1.5M", "99999999999999G"} {
		_, err := ParseSize(in)
		require.Error(t, err, in)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tierheap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_size: 1M\npool_size: 4096\npool_count: 4\n"), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 4}, c)
	require.NoError(t, c.Validate(4096))
}

func TestLoadFilePartialAndEmpty(t *testing.T) {
	dir := t.TempDir()

	partial := filepath.Join(dir, "partial.yaml")
	require.NoError(t, os.WriteFile(partial, []byte("pool_count: 5\n"), 0o644))
	c, err := LoadFile(partial)
	require.NoError(t, err)
	want := Default()
	want.PoolCount = 5
	require.Equal(t, want, c)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	c, err = LoadFile(empty)
	require.NoError(t, err)
	require.Equal(t, Default(), c)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunk_sz: 1\n"), 0o644))
	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMarshalParseRoundTrip(t *testing.T) {
	in := Config{ChunkSize: 1 << 20, PoolSize: 4096, PoolCount: 4}
	data, err := in.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(data), "chunk_size: 1048576")

	out, err := Parse(data, Config{})
	require.NoError(t, err)
	require.Equal(t, in, out)
}
