package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModels() []ModelCaps {
	return []ModelCaps{
		{
			ID: "seedream-3.0", Name: "Seedream 3.0", Kind: "image", IsDefault: true,
			Resolutions:  []string{"720p", "1080p", "4k"},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
		},
		{
			ID: "seededit-1.5", Name: "SeedEdit 1.5", Kind: "image", IsDefault: true,
			Resolutions:  []string{"720p", "1080p"},
			AspectRatios: []string{"16:9", "1:1"},
			ImageToImage: true,
		},
		{
			ID: "veo-3.1", Name: "Veo 3.1", Kind: "video",
			Resolutions:  []string{"720p", "1080p", "4k"},
			AspectRatios: []string{"16:9", "9:16"},
			Temporal:     &TemporalCaps{SupportedDurations: []int{4, 6, 8}, MaxOutputSeconds: 8},
		},
		{
			ID: "seedance-1.0", Name: "Seedance 1.0", Kind: "video", IsDefault: true,
			Resolutions:  []string{"720p", "1080p"},
			AspectRatios: []string{"16:9", "9:16", "1:1"},
			Temporal:     &TemporalCaps{SupportedDurations: []int{4, 8}, MaxOutputSeconds: 8},
		},
	}
}

func TestLookup_ExactIDBeatsNameAndSubstring(t *testing.T) {
	r := New(sampleModels())

	mc, err := r.Lookup("veo-3.1")
	require.NoError(t, err)
	assert.Equal(t, "Veo 3.1", mc.Name)

	// 名称不区分大小写
	mc, err = r.Lookup("veo 3.1")
	require.NoError(t, err)
	assert.Equal(t, "veo-3.1", mc.ID)

	// 子串兜底
	mc, err = r.Lookup("seedance")
	require.NoError(t, err)
	assert.Equal(t, "seedance-1.0", mc.ID)
}

func TestLookup_NotFound(t *testing.T) {
	r := New(sampleModels())

	_, err := r.Lookup("sora")
	assert.ErrorIs(t, err, ErrModelNotFound)

	_, err = r.Lookup("")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestDefaultModels(t *testing.T) {
	r := New(sampleModels())

	assert.Equal(t, "seedream-3.0", r.DefaultModel("image").ID)
	assert.Equal(t, "seedance-1.0", r.DefaultModel("video").ID)
	// 全局默认不支持图生图时，图生图默认必须另选
	assert.Equal(t, "seededit-1.5", r.DefaultImageToImageModel().ID)
}

func TestTemporalCaps(t *testing.T) {
	r := New(sampleModels())
	mc, err := r.Lookup("veo-3.1")
	require.NoError(t, err)

	assert.Equal(t, 8, mc.MaxClipSeconds())
	assert.True(t, mc.SupportsDuration(6))
	assert.False(t, mc.SupportsDuration(10))
	assert.Equal(t, 8, mc.ClosestDuration(10))
	assert.Equal(t, 4, mc.ClosestDuration(3))
}

func TestClosestResolution(t *testing.T) {
	r := New(sampleModels())
	mc, _ := r.Lookup("seedance-1.0")

	assert.Equal(t, "1080p", mc.ClosestResolution("4k"))
	assert.Equal(t, "720p", mc.ClosestResolution("480p"))
	assert.Equal(t, "1080p", mc.ClosestResolution("1080x1920"))
}

func TestLoad_FromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	content := `models:
  - id: "test-video"
    name: "Test Video"
    kind: video
    is_default: true
    resolutions: ["720p"]
    aspect_ratios: ["16:9"]
    temporal:
      supported_durations: [4, 8]
      max_output_seconds: 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := Load(path)
	require.NoError(t, err)

	mc, err := r.Lookup("test-video")
	require.NoError(t, err)
	assert.Equal(t, 8, mc.MaxClipSeconds())
}

func TestLoad_EmptyFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models: []\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
