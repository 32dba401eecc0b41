package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/zeusave/internal/core/models"
)

func TestAsyncMode(t *testing.T) {
	assert.True(t, SaveAndLoadAsync.Load())
	assert.True(t, SaveAndLoadAsync.Save())
	assert.True(t, LoadAsync.Load())
	assert.False(t, LoadAsync.Save())
	assert.False(t, OnlySync.Load())

	for _, m := range []AsyncMode{OnlySync, LoadAsync, SaveAsync, SaveAndLoadAsync} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var got AsyncMode
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, m, got)
	}
	_, err := ParseAsyncMode("sometimes")
	assert.Error(t, err)
}

func TestSlot_Policies(t *testing.T) {
	s := New()
	s.MultithreadedSerialization = OnlySync
	s.FrameSplittedSerialization = SaveAndLoadAsync
	assert.True(t, s.IsFrameSplitLoad())
	assert.True(t, s.IsFrameSplitSave())

	s.MultithreadedSerialization = LoadAsync
	assert.False(t, s.IsFrameSplitLoad())
	assert.True(t, s.IsFrameSplitSave())
	assert.False(t, s.IsMTSerializationSave())

	s.MultithreadedFiles = SaveAsync
	assert.True(t, s.IsMTFilesSave())
	assert.False(t, s.IsMTFilesLoad())

	s.MaxFrameMs = 2.5
	assert.Equal(t, 2500*time.Microsecond, s.FrameBudget())
}

func TestSlot_SerializeRoundTrip(t *testing.T) {
	s := New()
	s.FileName = "A"
	s.DisplayName = "Chapter 1"
	s.Map = "Overworld"
	s.Stats.PlayedTime = 90 * time.Second
	s.Stats.SlotPlayedTime = 30 * time.Second
	s.Stats.SaveDate = time.Unix(1700000000, 123)
	s.Stats.LoadDate = time.Now()
	s.ThumbnailPath = "A.png"
	s.Filter.StoreComponents = true
	s.SubsystemFilter.Deny("WeatherSubsystem")
	s.FrameSplittedSerialization = LoadAsync
	s.Data().Map = "Overworld"

	data, err := s.Serialize()
	require.NoError(t, err)

	got := New()
	require.NoError(t, got.Deserialize(data))
	assert.Equal(t, "A", got.FileName)
	assert.Equal(t, "Chapter 1", got.DisplayName)
	assert.Equal(t, s.Stats.PlayedTime, got.Stats.PlayedTime)
	assert.Equal(t, s.Stats.SlotPlayedTime, got.Stats.SlotPlayedTime)
	assert.True(t, s.Stats.SaveDate.Equal(got.Stats.SaveDate))
	assert.True(t, got.Stats.LoadDate.IsZero())
	assert.False(t, got.Stats.WasLoaded())
	assert.True(t, s.Filter.Equal(got.Filter))
	assert.Equal(t, []models.TypeRef{"WeatherSubsystem"}, got.SubsystemFilter.DeniedTypes())
	assert.Equal(t, LoadAsync, got.FrameSplittedSerialization)
	assert.Empty(t, got.Data().Map)
	assert.Equal(t, TypeName, got.TypeName())
}

func TestSlot_DeserializeRejectsVersion(t *testing.T) {
	s := New()
	err := s.Deserialize([]byte{9, 0, 0, 0})
	require.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.Equal(t, DefaultFileName, s.FileName)
}

func TestSlot_Clone(t *testing.T) {
	s := New()
	s.Data().Map = "Overworld"
	c := s.Clone()
	c.Filter.StoreComponents = true
	c.SubsystemFilter.Deny(models.TypeSubsystem)

	assert.False(t, s.Filter.StoreComponents)
	assert.Empty(t, s.SubsystemFilter.DeniedTypes())
	assert.Empty(t, c.Data().Map)
	assert.NotSame(t, s.LevelFilter(), s.Filter)
}
