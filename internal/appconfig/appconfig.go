// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// defaultRunsDir is where per-run result artifacts live.
	defaultRunsDir = "runs"
	// defaultSiteDir is where the published index and metadata artifacts are written.
	defaultSiteDir = "site"
	// defaultPageSize is the table view page size.
	defaultPageSize = 10
	// defaultTrackingTimeout bounds every call to the tracking service.
	defaultTrackingTimeout = 30 * time.Second
	// defaultEngineTimeout bounds a single evaluation engine invocation.
	defaultEngineTimeout = 3600 * time.Second
	// defaultPollInterval is the dashboard refresh interval.
	defaultPollInterval = 15 * time.Second
)

// Config represents the top-level application configuration.
type Config struct {
	RunsDir          string `json:"runsDir,omitempty" mapstructure:"runsDir"`
	SiteDir          string `json:"siteDir,omitempty" mapstructure:"siteDir"`
	EnginesPath      string `json:"engines,omitempty" mapstructure:"engines"`
	PageSize         int    `json:"pageSize,omitempty" mapstructure:"pageSize"`
	TrackingProject  string `json:"trackingProject,omitempty" mapstructure:"trackingProject"`
	TrackingEntity   string `json:"trackingEntity,omitempty" mapstructure:"trackingEntity"`
	TrackingBaseURL  string `json:"trackingBaseUrl,omitempty" mapstructure:"trackingBaseUrl"`
	TrackingTimeout  int    `json:"trackingTimeout,omitempty" mapstructure:"trackingTimeout"`
	EngineTimeout    int    `json:"engineTimeout,omitempty" mapstructure:"engineTimeout"`
	PollIntervalSecs int    `json:"pollInterval,omitempty" mapstructure:"pollInterval"`
	LogFile          string `json:"logFile,omitempty" mapstructure:"logFile"`
	Debug            bool   `json:"debug" mapstructure:"debug"`
	ConfigPath       string `json:"-" mapstructure:"-"`
}

// RunsDirPath returns the directory that holds per-run artifacts.
func (c Config) RunsDirPath() string {
	if strings.TrimSpace(c.RunsDir) != "" {
		return c.RunsDir
	}
	return defaultRunsDir
}

// SiteDirPath returns the directory the index and metadata artifacts are published to.
func (c Config) SiteDirPath() string {
	if strings.TrimSpace(c.SiteDir) != "" {
		return c.SiteDir
	}
	return defaultSiteDir
}

// TablePageSize returns the page size for table views, falling back to the default.
func (c Config) TablePageSize() int {
	if c.PageSize <= 0 {
		return defaultPageSize
	}
	return c.PageSize
}

// TrackingProjectName returns the tracking project, falling back to the default.
func (c Config) TrackingProjectName() string {
	if strings.TrimSpace(c.TrackingProject) != "" {
		return c.TrackingProject
	}
	return "llm-bench"
}

// TrackingBase returns the tracking service base URL.
func (c Config) TrackingBase() string {
	if strings.TrimSpace(c.TrackingBaseURL) != "" {
		return c.TrackingBaseURL
	}
	return "https://api.wandb.ai"
}

// TrackingTimeoutDuration returns the bounded timeout for tracking-service calls.
func (c Config) TrackingTimeoutDuration() time.Duration {
	if c.TrackingTimeout <= 0 {
		return defaultTrackingTimeout
	}
	return time.Duration(c.TrackingTimeout) * time.Second
}

// EngineTimeoutDuration returns the hard timeout for one evaluation engine run.
func (c Config) EngineTimeoutDuration() time.Duration {
	if c.EngineTimeout <= 0 {
		return defaultEngineTimeout
	}
	return time.Duration(c.EngineTimeout) * time.Second
}

// PollInterval returns the dashboard refresh interval.
func (c Config) PollInterval() time.Duration {
	if c.PollIntervalSecs <= 0 {
		return defaultPollInterval
	}
	return time.Duration(c.PollIntervalSecs) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "sndbench.log"
}

// Load reads the application configuration from the specified path. A missing
// file is not an error: every field has a usable default.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{ConfigPath: path}, nil
		}
		return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, fmt.Errorf("could not parse config file %q: %w", path, err)
	}
	config.ConfigPath = path
	return config, nil
}
