package main

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/featurecloud/internal/pointcloud"
)

// setFlag sets a command-line flag for the duration of the test.
func setFlag(t *testing.T, name, value string) {
	t.Helper()
	f := flag.Lookup(name)
	require.NotNil(t, f, "flag -%s not defined", name)
	prev := f.Value.String()
	require.NoError(t, flag.Set(name, value))
	t.Cleanup(func() { flag.Set(name, prev) })
}

func TestFlagDefaults(t *testing.T) {
	assert.Empty(t, *inputPath)
	assert.Empty(t, *configPath)
	assert.Zero(t, *zscore)
	assert.Zero(t, *playbackRate)
	assert.False(t, *withPreview)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, []pointcloud.Mode{pointcloud.ModeDistanceFilter}, cfg.GetModes())
	assert.Equal(t, pointcloud.DefaultZScore, cfg.GetZScore())
	assert.Equal(t, "recordings", cfg.GetOutputDir())
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"zscore": 3, "output_dir": "from-file"}`), 0644))

	setFlag(t, "config", path)
	setFlag(t, "out", "/tmp/scans")
	setFlag(t, "modes", "full, avg")
	setFlag(t, "preview", "true")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.GetZScore())
	assert.Equal(t, "/tmp/scans", cfg.GetOutputDir())
	assert.Equal(t, []pointcloud.Mode{pointcloud.ModeFull, pointcloud.ModeAverage}, cfg.GetModes())
	assert.True(t, cfg.GetPreview())

	setFlag(t, "zscore", "2.5")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 2.5, cfg.GetZScore())
}

func TestLoadConfigRejectsBadModes(t *testing.T) {
	setFlag(t, "modes", "full,median")
	_, err := loadConfig()
	assert.Error(t, err)
}

func TestRenderPreviews(t *testing.T) {
	dir := t.TempDir()
	xyz := filepath.Join(dir, "2019_03_14_15_09_26_dist.xyz")
	require.NoError(t, os.WriteFile(xyz, []byte("0 0 1\n1 2 3\n-1 0.5 2\n"), 0644))

	require.NoError(t, renderPreviews(xyz))

	html, err := os.ReadFile(filepath.Join(dir, "2019_03_14_15_09_26_dist.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "2019_03_14_15_09_26_dist (3 points)")

	png, err := os.ReadFile(filepath.Join(dir, "2019_03_14_15_09_26_dist.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}

func TestRenderPreviewsErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, renderPreviews(filepath.Join(dir, "missing.xyz")))

	bad := filepath.Join(dir, "bad.xyz")
	require.NoError(t, os.WriteFile(bad, []byte("1 2\n"), 0644))
	assert.ErrorContains(t, renderPreviews(bad), "line 1")

	empty := filepath.Join(dir, "empty.xyz")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	assert.Error(t, renderPreviews(empty))
}
