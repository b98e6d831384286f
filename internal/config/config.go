package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Challenge store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port        int    `yaml:"port"`
		Host        string `yaml:"host"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
	} `yaml:"server"`

	Data struct {
		Directory          string `yaml:"directory"`
		CredentialsFile    string `yaml:"credentials_file"`
		WordsFile          string `yaml:"words_file"`
		EnrollmentTextFile string `yaml:"enrollment_text_file"`
		UsersImportFile    string `yaml:"users_import_file"`
	} `yaml:"data"`

	Azure struct {
		SpeechResource         string        `yaml:"speech_resource"`
		IdentificationResource string        `yaml:"identification_resource"`
		Locale                 string        `yaml:"locale"`
		OperationCheckInterval time.Duration `yaml:"operation_check_interval"`
		OperationTimeout       time.Duration `yaml:"operation_timeout"`
		RequestsPerMinute      int           `yaml:"requests_per_minute"`
		RetryMax               int           `yaml:"retry_max"`
		DetailedRecognition    bool          `yaml:"detailed_recognition"`
	} `yaml:"azure"`

	Challenge struct {
		Words             int           `yaml:"words"`
		TTL               time.Duration `yaml:"ttl"`
		MatchThreshold    float64       `yaml:"match_threshold"`
		PhoneticThreshold float64       `yaml:"phonetic_threshold"`
		Store             string        `yaml:"store"`
	} `yaml:"challenge"`

	Identification struct {
		MinConfidence   string        `yaml:"min_confidence"`
		ShortAudioBelow time.Duration `yaml:"short_audio_below"`
	} `yaml:"identification"`

	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Storage struct {
		TempDir    string `yaml:"temp_dir"`
		SamplesDir string `yaml:"samples_dir"`
		Database   string `yaml:"database"`
	} `yaml:"storage"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	GoogleDrive struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Logging LogSettings `yaml:"logging"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`

	Limits struct {
		MaxFileSizeMB      int `yaml:"max_file_size_mb"`
		MaxDurationSeconds int `yaml:"max_duration_seconds"`
	} `yaml:"limits"`
}

// LogSettings controls the logger output
type LogSettings struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Load loads configuration from a YAML file, fills in defaults and validates it
func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyLimitMB == 0 {
		c.Server.BodyLimitMB = 25
	}

	if c.Data.Directory == "" {
		c.Data.Directory = "data"
	}
	if c.Data.CredentialsFile == "" {
		c.Data.CredentialsFile = "credentials.csv"
	}
	if c.Data.WordsFile == "" {
		c.Data.WordsFile = "words.txt"
	}
	if c.Data.EnrollmentTextFile == "" {
		c.Data.EnrollmentTextFile = "enrollment.txt"
	}

	if c.Azure.SpeechResource == "" {
		c.Azure.SpeechResource = "SpeechBS2019"
	}
	if c.Azure.IdentificationResource == "" {
		c.Azure.IdentificationResource = "SpeakerBS2019"
	}
	if c.Azure.Locale == "" {
		c.Azure.Locale = "en-US"
	}
	if c.Azure.OperationCheckInterval == 0 {
		c.Azure.OperationCheckInterval = 30 * time.Second
	}
	if c.Azure.OperationTimeout == 0 {
		c.Azure.OperationTimeout = 10 * time.Minute
	}
	if c.Azure.RequestsPerMinute == 0 {
		c.Azure.RequestsPerMinute = 20
	}
	if c.Azure.RetryMax == 0 {
		c.Azure.RetryMax = 3
	}

	if c.Challenge.Words == 0 {
		c.Challenge.Words = 5
	}
	if c.Challenge.TTL == 0 {
		c.Challenge.TTL = 2 * time.Minute
	}
	if c.Challenge.MatchThreshold == 0 {
		c.Challenge.MatchThreshold = 0.85
	}
	if c.Challenge.PhoneticThreshold == 0 {
		c.Challenge.PhoneticThreshold = 0.70
	}
	if c.Challenge.Store == "" {
		c.Challenge.Store = StoreMemory
	}

	if c.Identification.MinConfidence == "" {
		c.Identification.MinConfidence = "Normal"
	}
	if c.Identification.ShortAudioBelow == 0 {
		c.Identification.ShortAudioBelow = 5 * time.Second
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}

	if c.Storage.TempDir == "" {
		c.Storage.TempDir = "tmp"
	}
	if c.Storage.SamplesDir == "" {
		c.Storage.SamplesDir = "samples"
	}
	if c.Storage.Database == "" {
		c.Storage.Database = "hillmyna.db"
	}

	if c.Workers.Count == 0 {
		c.Workers.Count = 2
	}

	if c.Cleanup.IntervalMinutes == 0 {
		c.Cleanup.IntervalMinutes = 30
	}
	if c.Cleanup.MaxAgeHours == 0 {
		c.Cleanup.MaxAgeHours = 24
	}

	if c.GoogleDrive.TokenFile == "" {
		c.GoogleDrive.TokenFile = "token.json"
	}
	if c.GoogleDrive.FolderName == "" {
		c.GoogleDrive.FolderName = "HillMyna"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Limits.MaxFileSizeMB == 0 {
		c.Limits.MaxFileSizeMB = 10
	}
	if c.Limits.MaxDurationSeconds == 0 {
		c.Limits.MaxDurationSeconds = 300
	}
}

// Validate reports configuration values the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Challenge.Words < 2 {
		errs = append(errs, fmt.Errorf("challenge.words must be greater than 1, got %d", c.Challenge.Words))
	}
	if c.Challenge.TTL < 0 {
		errs = append(errs, errors.New("challenge.ttl must not be negative"))
	}
	switch c.Challenge.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("challenge.store %q is not one of %q, %q", c.Challenge.Store, StoreMemory, StoreRedis))
	}
	switch c.Identification.MinConfidence {
	case "Low", "Normal", "High":
	default:
		errs = append(errs, fmt.Errorf("identification.min_confidence %q is not one of Low, Normal, High", c.Identification.MinConfidence))
	}
	if c.Azure.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("azure.requests_per_minute must not be negative"))
	}
	if c.Workers.Count < 1 {
		errs = append(errs, errors.New("workers.count must be at least 1"))
	}
	if c.GoogleDrive.Enabled && c.GoogleDrive.CredentialsFile == "" {
		errs = append(errs, errors.New("google_drive.credentials_file is required when google_drive.enabled"))
	}

	return errors.Join(errs...)
}

// MaxDuration is the longest recording sent to Azure
func (c *Config) MaxDuration() time.Duration {
	return time.Duration(c.Limits.MaxDurationSeconds) * time.Second
}

// Path returns the location of a file inside the data directory
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Data.Directory, name)
}
