// Package settings loads the save system configuration: defaults, then a YAML file, then
// ZEUSAVE_* environment overrides.
package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/zeusave/internal/core/models"
	"github.com/zeusync/zeusave/internal/core/observability/log"
	"github.com/zeusync/zeusave/internal/core/persistence/archive"
	"github.com/zeusync/zeusave/internal/core/persistence/fileformat"
	"github.com/zeusync/zeusave/internal/core/persistence/filter"
	"github.com/zeusync/zeusave/internal/core/persistence/slot"
)

var ErrInvalid = errors.New("settings: invalid")

const (
	StorageLocal = "local"
	StorageRedis = "redis"
)

type Redis struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

type Thumbnail struct {
	Enabled bool `yaml:"enabled"`
	Width   int  `yaml:"width"`
	Height  int  `yaml:"height"`
}

// Rules is an allow/deny list of type names.
type Rules struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

type Filters struct {
	Actors     Rules `yaml:"actors"`
	Components Rules `yaml:"components"`
	Subsystems Rules `yaml:"subsystems"`
}

type Log struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type Settings struct {
	SaveDir     string `yaml:"save_dir"`
	Storage     string `yaml:"storage"`
	Redis       Redis  `yaml:"redis"`
	Compression string `yaml:"compression"`

	Workers       int     `yaml:"workers"`
	IOBytesPerSec int     `yaml:"io_bytes_per_sec"`
	MaxFrameMs    float64 `yaml:"max_frame_ms"`

	MultithreadedSerialization string `yaml:"multithreaded_serialization"`
	MultithreadedFiles         string `yaml:"multithreaded_files"`
	FrameSplittedSerialization string `yaml:"frame_splitted_serialization"`

	StoreGameInstance bool `yaml:"store_game_instance"`
	StoreComponents   bool `yaml:"store_components"`

	// MaxSlots caps the number of slot files. Zero is unlimited.
	MaxSlots             int           `yaml:"max_slots"`
	PeriodicSave         bool          `yaml:"periodic_save"`
	PeriodicSaveInterval time.Duration `yaml:"periodic_save_interval"`
	SaveOnClose          bool          `yaml:"save_on_close"`
	LoadOnStart          bool          `yaml:"load_on_start"`
	SaveAndLoadSublevels bool          `yaml:"save_and_load_sublevels"`
	DefaultSlot          string        `yaml:"default_slot"`

	Thumbnail Thumbnail `yaml:"thumbnail"`
	Filters   Filters   `yaml:"filters"`
	Log       Log       `yaml:"log"`

	// Engine is stamped into every file header as "major.minor.patch".
	Engine       string `yaml:"engine"`
	EngineBranch string `yaml:"engine_branch"`
}

func Default() *Settings {
	return &Settings{
		SaveDir:                    "SaveGames",
		Storage:                    StorageLocal,
		Redis:                      Redis{Addr: "127.0.0.1:6379", Prefix: "zeusave:"},
		Compression:                fileformat.CodecZstd.String(),
		MaxFrameMs:                 5,
		MultithreadedSerialization: slot.SaveAsync.String(),
		MultithreadedFiles:         slot.SaveAndLoadAsync.String(),
		FrameSplittedSerialization: slot.OnlySync.String(),
		StoreGameInstance:          true,
		StoreComponents:            true,
		PeriodicSave:               true,
		PeriodicSaveInterval:       2 * time.Minute,
		LoadOnStart:                true,
		SaveAndLoadSublevels:       true,
		DefaultSlot:                "autosave",
		Thumbnail:                  Thumbnail{Width: 640, Height: 360},
		Filters: Filters{
			Actors:     Rules{Allow: []string{string(models.TypeActor)}},
			Components: Rules{Allow: []string{string(models.TypeComponent)}},
			Subsystems: Rules{Allow: []string{string(models.TypeSubsystem)}},
		},
		Log:          Log{Level: "info", Encoding: "json"},
		Engine:       "1.0.0",
		EngineBranch: "main",
	}
}

// Load reads path over the defaults, applies environment overrides and validates. An empty
// path skips the file.
func Load(path string) (*Settings, error) {
	s := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}
		if err := yaml.Unmarshal(raw, s); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}
	if err := s.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// env mirrors the scalar settings. Only variables present in the environment overwrite them.
type env struct {
	SaveDir                    string  `config:"ZEUSAVE_SAVE_DIR"`
	Storage                    string  `config:"ZEUSAVE_STORAGE"`
	RedisAddr                  string  `config:"ZEUSAVE_REDIS_ADDR"`
	RedisPrefix                string  `config:"ZEUSAVE_REDIS_PREFIX"`
	Compression                string  `config:"ZEUSAVE_COMPRESSION"`
	Workers                    int     `config:"ZEUSAVE_WORKERS"`
	IOBytesPerSec              int     `config:"ZEUSAVE_IO_BYTES_PER_SEC"`
	MaxFrameMs                 float64 `config:"ZEUSAVE_MAX_FRAME_MS"`
	MultithreadedSerialization string  `config:"ZEUSAVE_MULTITHREADED_SERIALIZATION"`
	MultithreadedFiles         string  `config:"ZEUSAVE_MULTITHREADED_FILES"`
	FrameSplittedSerialization string  `config:"ZEUSAVE_FRAME_SPLITTED_SERIALIZATION"`
	StoreGameInstance          bool    `config:"ZEUSAVE_STORE_GAME_INSTANCE"`
	StoreComponents            bool    `config:"ZEUSAVE_STORE_COMPONENTS"`
	MaxSlots                   int     `config:"ZEUSAVE_MAX_SLOTS"`
	PeriodicSave               bool    `config:"ZEUSAVE_PERIODIC_SAVE"`
	PeriodicSaveInterval       string  `config:"ZEUSAVE_PERIODIC_SAVE_INTERVAL"`
	SaveOnClose                bool    `config:"ZEUSAVE_SAVE_ON_CLOSE"`
	LoadOnStart                bool    `config:"ZEUSAVE_LOAD_ON_START"`
	DefaultSlot                string  `config:"ZEUSAVE_DEFAULT_SLOT"`
	LogLevel                   string  `config:"ZEUSAVE_LOG_LEVEL"`
	LogEncoding                string  `config:"ZEUSAVE_LOG_ENCODING"`
}

// ApplyEnv overlays ZEUSAVE_* environment variables.
func (s *Settings) ApplyEnv() error {
	e := env{
		SaveDir:                    s.SaveDir,
		Storage:                    s.Storage,
		RedisAddr:                  s.Redis.Addr,
		RedisPrefix:                s.Redis.Prefix,
		Compression:                s.Compression,
		Workers:                    s.Workers,
		IOBytesPerSec:              s.IOBytesPerSec,
		MaxFrameMs:                 s.MaxFrameMs,
		MultithreadedSerialization: s.MultithreadedSerialization,
		MultithreadedFiles:         s.MultithreadedFiles,
		FrameSplittedSerialization: s.FrameSplittedSerialization,
		StoreGameInstance:          s.StoreGameInstance,
		StoreComponents:            s.StoreComponents,
		MaxSlots:                   s.MaxSlots,
		PeriodicSave:               s.PeriodicSave,
		PeriodicSaveInterval:       s.PeriodicSaveInterval.String(),
		SaveOnClose:                s.SaveOnClose,
		LoadOnStart:                s.LoadOnStart,
		DefaultSlot:                s.DefaultSlot,
		LogLevel:                   s.Log.Level,
		LogEncoding:                s.Log.Encoding,
	}
	if err := jlconfig.FromEnv().To(&e); err != nil {
		return fmt.Errorf("settings env: %w", err)
	}
	interval, err := time.ParseDuration(e.PeriodicSaveInterval)
	if err != nil {
		return fmt.Errorf("%w: periodic save interval %q", ErrInvalid, e.PeriodicSaveInterval)
	}

	s.SaveDir = e.SaveDir
	s.Storage = e.Storage
	s.Redis.Addr = e.RedisAddr
	s.Redis.Prefix = e.RedisPrefix
	s.Compression = e.Compression
	s.Workers = e.Workers
	s.IOBytesPerSec = e.IOBytesPerSec
	s.MaxFrameMs = e.MaxFrameMs
	s.MultithreadedSerialization = e.MultithreadedSerialization
	s.MultithreadedFiles = e.MultithreadedFiles
	s.FrameSplittedSerialization = e.FrameSplittedSerialization
	s.StoreGameInstance = e.StoreGameInstance
	s.StoreComponents = e.StoreComponents
	s.MaxSlots = e.MaxSlots
	s.PeriodicSave = e.PeriodicSave
	s.PeriodicSaveInterval = interval
	s.SaveOnClose = e.SaveOnClose
	s.LoadOnStart = e.LoadOnStart
	s.DefaultSlot = e.DefaultSlot
	s.Log.Level = e.LogLevel
	s.Log.Encoding = e.LogEncoding
	return nil
}

// Validate reports every problem at once.
func (s *Settings) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	switch s.Storage {
	case StorageLocal:
		if s.SaveDir == "" {
			bad("save_dir is required for local storage")
		}
	case StorageRedis:
		if s.Redis.Addr == "" {
			bad("redis.addr is required for redis storage")
		}
	default:
		bad("unknown storage %q", s.Storage)
	}
	if _, err := fileformat.ParseCodec(s.Compression); err != nil {
		bad("compression %q", s.Compression)
	}
	for name, v := range map[string]string{
		"multithreaded_serialization":  s.MultithreadedSerialization,
		"multithreaded_files":          s.MultithreadedFiles,
		"frame_splitted_serialization": s.FrameSplittedSerialization,
	} {
		if _, err := slot.ParseAsyncMode(v); err != nil {
			bad("%s %q", name, v)
		}
	}
	if s.Workers < 0 {
		bad("workers must not be negative")
	}
	if s.IOBytesPerSec < 0 {
		bad("io_bytes_per_sec must not be negative")
	}
	if s.MaxFrameMs <= 0 {
		bad("max_frame_ms must be positive")
	}
	if s.MaxSlots < 0 {
		bad("max_slots must not be negative")
	}
	if s.PeriodicSave && s.PeriodicSaveInterval <= 0 {
		bad("periodic_save_interval must be positive")
	}
	if strings.TrimSpace(s.DefaultSlot) == "" {
		bad("default_slot is required")
	}
	if s.Thumbnail.Enabled && (s.Thumbnail.Width <= 0 || s.Thumbnail.Height <= 0) {
		bad("thumbnail size must be positive")
	}
	if _, err := log.ParseLevel(s.Log.Level); err != nil {
		bad("log level %q", s.Log.Level)
	}
	if s.Log.Encoding != "json" && s.Log.Encoding != "console" {
		bad("log encoding %q", s.Log.Encoding)
	}
	if _, err := s.EngineVersion(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Settings) Codec() fileformat.Codec {
	c, _ := fileformat.ParseCodec(s.Compression)
	return c
}

func (s *Settings) LogLevel() log.Level {
	l, err := log.ParseLevel(s.Log.Level)
	if err != nil {
		return log.LevelInfo
	}
	return l
}

func (s *Settings) LogConfig() log.Config {
	return log.Config{Level: s.LogLevel(), Encoding: s.Log.Encoding}
}

func (s *Settings) EngineVersion() (archive.EngineVersion, error) {
	var v archive.EngineVersion
	if _, err := fmt.Sscanf(s.Engine, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch); err != nil {
		return v, fmt.Errorf("%w: engine version %q", ErrInvalid, s.Engine)
	}
	v.Branch = s.EngineBranch
	return v, nil
}

// FormatOptions describes the file header stamp and compressor.
func (s *Settings) FormatOptions() fileformat.Options {
	engine, _ := s.EngineVersion()
	return fileformat.Options{Engine: engine, Codec: s.Codec()}
}

// NewSlot returns an empty slot carrying the configured policy.
func (s *Settings) NewSlot() *slot.Slot {
	out := slot.New()
	out.StoreGameInstance = s.StoreGameInstance
	out.UseCompression = s.Codec() != fileformat.CodecNone
	out.MultithreadedSerialization, _ = slot.ParseAsyncMode(s.MultithreadedSerialization)
	out.MultithreadedFiles, _ = slot.ParseAsyncMode(s.MultithreadedFiles)
	out.FrameSplittedSerialization, _ = slot.ParseAsyncMode(s.FrameSplittedSerialization)
	out.MaxFrameMs = s.MaxFrameMs

	out.Filter = &filter.LevelFilter{
		ActorFilter:     classFilter(models.TypeActor, s.Filters.Actors),
		StoreComponents: s.StoreComponents,
		ComponentFilter: classFilter(models.TypeComponent, s.Filters.Components),
	}
	out.SubsystemFilter = classFilter(models.TypeSubsystem, s.Filters.Subsystems)
	return out
}

func classFilter(base models.TypeRef, r Rules) *filter.ClassFilter {
	f := filter.NewClassFilter(base)
	for _, t := range r.Allow {
		f.Allow(models.TypeRef(t))
	}
	for _, t := range r.Deny {
		f.Deny(models.TypeRef(t))
	}
	return f
}
