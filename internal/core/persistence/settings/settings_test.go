package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/fileformat"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
)

func TestDefault_IsValid(t *testing.T) {
	s := Default()
	require.NoError(t, s.Validate())
	assert.Equal(t, fileformat.CodecZstd, s.Codec())
	assert.Equal(t, log.LevelInfo, s.LogLevel())

	v, err := s.EngineVersion()
	require.NoError(t, err)
	assert.EqualValues(t, 1, v.Major)
	assert.Equal(t, "main", v.Branch)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeusave.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
save_dir: /tmp/saves
compression: lz4
max_slots: 8
periodic_save_interval: 30s
filters:
  actors:
    allow: [Actor]
    deny: [Projectile]
log:
  level: debug
  encoding: console
`), 0o600))

	t.Setenv("ZEUSAVE_MAX_SLOTS", "3")
	t.Setenv("ZEUSAVE_PERIODIC_SAVE_INTERVAL", "45s")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/saves", s.SaveDir)
	assert.Equal(t, fileformat.CodecLZ4, s.Codec())
	assert.Equal(t, 3, s.MaxSlots)
	assert.Equal(t, 45*time.Second, s.PeriodicSaveInterval)
	assert.Equal(t, []string{"Projectile"}, s.Filters.Actors.Deny)
	assert.Equal(t, log.LevelDebug, s.LogLevel())
	assert.Equal(t, "console", s.LogConfig().Encoding)
	// untouched defaults survive
	assert.Equal(t, "autosave", s.DefaultSlot)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	s := Default()
	s.Storage = "s3"
	s.Compression = "brotli"
	s.MaxFrameMs = 0
	s.DefaultSlot = " "
	s.Engine = "latest"

	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	for _, want := range []string{"s3", "brotli", "max_frame_ms", "default_slot", "latest"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestApplyEnv_BadInterval(t *testing.T) {
	t.Setenv("ZEUSAVE_PERIODIC_SAVE_INTERVAL", "soon")
	require.ErrorIs(t, Default().ApplyEnv(), ErrInvalid)
}

func TestNewSlot_CarriesPolicy(t *testing.T) {
	s := Default()
	s.Compression = "none"
	s.MultithreadedFiles = "sync"
	s.StoreComponents = false
	s.Filters.Actors.Deny = []string{"Projectile"}

	out := s.NewSlot()
	assert.False(t, out.UseCompression)
	assert.Equal(t, slot.OnlySync, out.MultithreadedFiles)
	assert.Equal(t, slot.SaveAsync, out.MultithreadedSerialization)
	assert.False(t, out.Filter.StoreComponents)

	reg := models.NewTypeRegistry()
	require.NoError(t, reg.Register("Projectile", models.TypeActor))
	require.NoError(t, reg.Register("Door", models.TypeActor))
	out.Filter.Bake(reg)
	assert.True(t, out.Filter.ShouldLoadType("Door"))
	assert.False(t, out.Filter.ShouldLoadType("Projectile"))
}
