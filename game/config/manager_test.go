package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/tilemerge/game/engine"
)

func createValidVariant(name string) *engine.Variant {
	return &engine.Variant{
		Name:            name,
		Description:     "Test variant",
		GridSize:        4,
		StartTiles:      2,
		FourProbability: 0.1,
		TargetTile:      2048,
	}
}

func writeJSONVariant(t *testing.T, dir, filename string, v *engine.Variant) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), data, 0644))
}

func writeRaw(t *testing.T, dir, filename, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(content), 0644))
}

func TestNewManager(t *testing.T) {
	t.Run("classic is the default", func(t *testing.T) {
		dir := t.TempDir()
		writeJSONVariant(t, dir, "classic.json", createValidVariant("classic"))
		writeJSONVariant(t, dir, "alpha.json", createValidVariant("alpha"))

		manager, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "classic", manager.GetDefault().Name)
	})

	t.Run("non-existent directory", func(t *testing.T) {
		_, err := NewManager("/non/existent/path")
		assert.Error(t, err)
	})

	t.Run("empty directory falls back to built-in", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		require.NoError(t, err)
		def := manager.GetDefault()
		require.NotNil(t, def)
		assert.Equal(t, engine.DefaultVariant(), def)
	})

	t.Run("first valid file when classic is missing", func(t *testing.T) {
		dir := t.TempDir()
		writeRaw(t, dir, "aaa.json", "{not json")
		writeJSONVariant(t, dir, "bravo.json", createValidVariant("bravo"))
		writeJSONVariant(t, dir, "charlie.json", createValidVariant("charlie"))

		manager, err := NewManager(dir)
		require.NoError(t, err)
		assert.Equal(t, "bravo", manager.GetDefault().Name)
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeJSONVariant(t, dir, "classic.json", createValidVariant("classic"))
	writeRaw(t, dir, "tiny.yaml", "name: tiny\ngrid_size: 3\ntarget_tile: 256\nfour_probability: 0\n")
	writeRaw(t, dir, "wide.yml", "name: wide\ngrid_size: 6\n")
	writeRaw(t, dir, "broken.json", `{"name": "broken", "grid_size": 12}`)

	manager, err := NewManager(dir)
	require.NoError(t, err)

	tests := []struct {
		name      string
		input     string
		wantName  string
		wantGrid  int
		wantError error
	}{
		{"json by id", "classic", "classic", 4, nil},
		{"json with extension", "classic.json", "classic", 4, nil},
		{"yaml", "tiny", "tiny", 3, nil},
		{"yml with defaults", "wide", "wide", 6, nil},
		{"invalid grid size", "broken", "", 0, ErrInvalidConfig},
		{"missing", "nope", "", 0, ErrConfigNotFound},
		{"path traversal", "../classic", "", 0, ErrConfigNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := manager.LoadConfig(tt.input)
			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, v.Name)
			assert.Equal(t, tt.wantGrid, v.GridSize)
		})
	}

	t.Run("yaml defaults applied", func(t *testing.T) {
		v, err := manager.LoadConfig("wide")
		require.NoError(t, err)
		assert.Equal(t, engine.DefaultTargetTile, v.TargetTile)
		assert.Equal(t, engine.DefaultStartTiles, v.StartTiles)

		tiny, err := manager.LoadConfig("tiny")
		require.NoError(t, err)
		assert.Zero(t, tiny.FourProbability)
	})

	t.Run("cached", func(t *testing.T) {
		first, err := manager.LoadConfig("classic")
		require.NoError(t, err)
		second, err := manager.LoadConfig("classic")
		require.NoError(t, err)
		assert.Same(t, first, second)
	})
}

func TestListConfigs(t *testing.T) {
	dir := t.TempDir()
	writeJSONVariant(t, dir, "classic.json", createValidVariant("classic"))
	writeRaw(t, dir, "tiny.yaml", "name: tiny\ngrid_size: 3\ntarget_tile: 256\n")
	writeRaw(t, dir, "broken.json", `{"name": ""}`)
	writeRaw(t, dir, "README.md", "not a variant")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	manager, err := NewManager(dir)
	require.NoError(t, err)

	configs, err := manager.ListConfigs()
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "classic", configs[0].ConfigID)
	assert.Equal(t, "classic.json", configs[0].Filename)
	assert.Equal(t, 2048, configs[0].TargetTile)
	assert.Equal(t, "tiny", configs[1].ConfigID)
	assert.Equal(t, 3, configs[1].GridSize)
}

func TestSaveConfig(t *testing.T) {
	dir := t.TempDir()
	manager, err := NewManager(dir)
	require.NoError(t, err)

	t.Run("json", func(t *testing.T) {
		require.NoError(t, manager.SaveConfig("saved", createValidVariant("saved")))
		assert.FileExists(t, filepath.Join(dir, "saved.json"))

		loaded, err := manager.LoadConfig("saved")
		require.NoError(t, err)
		assert.Equal(t, "saved", loaded.Name)
	})

	t.Run("yaml", func(t *testing.T) {
		require.NoError(t, manager.SaveConfig("mini.yaml", createValidVariant("mini")))
		data, err := os.ReadFile(filepath.Join(dir, "mini.yaml"))
		require.NoError(t, err)
		assert.Contains(t, string(data), "grid_size: 4")

		// a fresh manager reads it back from disk
		fresh, err := NewManager(dir)
		require.NoError(t, err)
		loaded, err := fresh.LoadConfig("mini")
		require.NoError(t, err)
		assert.Equal(t, 2048, loaded.TargetTile)
	})

	t.Run("invalid", func(t *testing.T) {
		bad := createValidVariant("bad")
		bad.TargetTile = 100
		assert.ErrorIs(t, manager.SaveConfig("bad", bad), ErrInvalidConfig)
		assert.NoFileExists(t, filepath.Join(dir, "bad.json"))
	})

	t.Run("bad name", func(t *testing.T) {
		assert.ErrorIs(t, manager.SaveConfig("../escape", createValidVariant("x")), ErrInvalidConfig)
	})
}

func TestSetDefaultAndRefresh(t *testing.T) {
	dir := t.TempDir()
	writeJSONVariant(t, dir, "classic.json", createValidVariant("classic"))
	writeJSONVariant(t, dir, "other.json", createValidVariant("other"))

	manager, err := NewManager(dir)
	require.NoError(t, err)

	require.NoError(t, manager.SetDefault("other"))
	assert.Equal(t, "other", manager.GetDefault().Name)
	assert.ErrorIs(t, manager.SetDefault("missing"), ErrConfigNotFound)

	changed := createValidVariant("classic")
	changed.Description = "changed on disk"
	writeJSONVariant(t, dir, "classic.json", changed)

	require.NoError(t, manager.RefreshCache())
	assert.Equal(t, "changed on disk", manager.GetDefault().Description)
}

func TestConcurrentLoad(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeJSONVariant(t, dir, fmt.Sprintf("v%d.json", i), createValidVariant(fmt.Sprintf("v%d", i)))
	}
	manager, err := NewManager(dir)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := manager.LoadConfig(fmt.Sprintf("v%d", i%5))
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("v%d", i%5), v.Name)
		}(i)
	}
	wg.Wait()
}
