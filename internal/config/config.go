package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".config/voxkeep"
	// DefaultDataDir holds durable state: markers, spooled temp files, logs
	DefaultDataDir = ".local/share/voxkeep"
	// DefaultRecordingsDir is the default output directory for finished recordings
	DefaultRecordingsDir = "Audio/Recordings"
	// ConfigFileName is the name of the configuration file
	ConfigFileName = "config.json"
)

// StatusDir is where per-session live status files are published. It is
// deliberately non-durable; status files carry no recoverable state.
const StatusDir = "/tmp/voxkeep-status"

// CaptureFormat describes the raw PCM stream delivered by the capture device
type CaptureFormat struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// TranscribeConfig configures the optional downstream transcription sink
type TranscribeConfig struct {
	Enabled         bool   `json:"enabled"`
	Language        string `json:"language,omitempty"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	ClientID        string `json:"client_id,omitempty"`
	ClientSecret    string `json:"client_secret,omitempty"`
	TokenFile       string `json:"token_file,omitempty"`
}

// Config holds the application configuration
type Config struct {
	RecordingsDir string        `json:"recordings_dir"`
	ListenAddr    string        `json:"listen_addr"`
	AudioDevice   string        `json:"audio_device"`
	Format        CaptureFormat `json:"format"`

	// FlushThresholdBytes: buffered audio is flushed to the temp file once
	// this many bytes accumulate.
	FlushThresholdBytes int `json:"flush_threshold_bytes"`
	// MinValidBytes: recovered temp files smaller than this (payload, not
	// header) are discarded rather than committed.
	MinValidBytes int64 `json:"min_valid_bytes"`
	// OverflowLimitBytes bounds in-memory buffering after a disk error
	// before the session is force-stopped.
	OverflowLimitBytes int `json:"overflow_limit_bytes"`

	// StatusCap and StatusWindow bound live-status publishing: at most
	// StatusCap updates in any sliding StatusWindow.
	StatusCap    int           `json:"status_cap"`
	StatusWindow time.Duration `json:"status_window"`

	// MaxSessionDuration is the failsafe ceiling; sessions still running
	// after this long are auto-stopped.
	MaxSessionDuration time.Duration `json:"max_session_duration"`

	// StaleTempRetention: orphaned temp files older than this are removed.
	StaleTempRetention time.Duration `json:"stale_temp_retention"`

	Notifications bool             `json:"notifications"`
	Beep          bool             `json:"beep"`
	Transcribe    TranscribeConfig `json:"transcribe"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		RecordingsDir:       GetDefaultRecordingsDir(),
		ListenAddr:          "127.0.0.1:7391",
		AudioDevice:         "",
		Format:              CaptureFormat{SampleRate: 16000, Channels: 1},
		FlushThresholdBytes: 40960,
		MinValidBytes:       4096,
		OverflowLimitBytes:  8 << 20,
		StatusCap:           8,
		StatusWindow:        15 * time.Minute,
		MaxSessionDuration:  30 * time.Minute,
		StaleTempRetention:  24 * time.Hour,
		Notifications:       true,
		Beep:                false,
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigDir
	}
	return filepath.Join(home, DefaultConfigDir)
}

// GetDataDir returns the durable state directory path
func GetDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// GetDefaultRecordingsDir returns the default recordings directory path
func GetDefaultRecordingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultRecordingsDir
	}
	return filepath.Join(home, DefaultRecordingsDir)
}

// MarkersDir is the marker-store directory under the data dir
func MarkersDir() string {
	return filepath.Join(GetDataDir(), "markers")
}

// SpoolDir holds in-flight temporary audio files
func SpoolDir() string {
	return filepath.Join(GetDataDir(), "spool")
}

// LogDir holds the daemon log files
func LogDir() string {
	return filepath.Join(GetDataDir(), "log")
}

// EnsureDirectories creates the necessary directories
func EnsureDirectories(cfg *Config) error {
	dirs := []string{
		GetConfigDir(),
		MarkersDir(),
		SpoolDir(),
		LogDir(),
		StatusDir,
		cfg.RecordingsDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// Load loads the configuration from disk
func Load() (*Config, error) {
	configPath := filepath.Join(GetConfigDir(), ConfigFileName)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return default config if file doesn't exist
			cfg := DefaultConfig()
			return &cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save saves the configuration to disk
func Save(cfg *Config) error {
	if err := os.MkdirAll(GetConfigDir(), 0755); err != nil {
		return err
	}

	configPath := filepath.Join(GetConfigDir(), ConfigFileName)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
