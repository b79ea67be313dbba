package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendBrowser   = "browser"
	BackendPortAudio = "portaudio"
	BackendPulse     = "pulse"
	BackendFile      = "file"

	BrowserLaunch = "launch"
	BrowserRemote = "remote"
)

type Config struct {
	Backend   BackendConfig   `yaml:"backend"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Acquire   AcquireConfig   `yaml:"acquire"`
	Browser   BrowserConfig   `yaml:"browser"`
	PortAudio PortAudioConfig `yaml:"portaudio"`
	Pulse     PulseConfig     `yaml:"pulse"`
	File      FileConfig      `yaml:"file"`
	Control   ControlConfig   `yaml:"control"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Pushover  PushoverConfig  `yaml:"pushover"`
	Log       LogConfig       `yaml:"log"`
}

type BackendConfig struct {
	Kind string `yaml:"kind"`
}

type MatcherConfig struct {
	Fragments []string `yaml:"fragments"`
}

type AcquireConfig struct {
	// Timeout bounds media acquisition. "0" or empty disables the bound.
	Timeout string `yaml:"timeout"`
}

type BrowserConfig struct {
	Mode            string `yaml:"mode"`
	DebuggerURL     string `yaml:"debugger_url"`
	ExecPath        string `yaml:"exec_path"`
	UserDataDir     string `yaml:"user_data_dir"`
	Headless        bool   `yaml:"headless"`
	MeetingURL      string `yaml:"meeting_url"`
	ConnectAttempts int    `yaml:"connect_attempts"`
}

type PortAudioConfig struct {
	SampleRate      int `yaml:"sample_rate"`
	FramesPerBuffer int `yaml:"frames_per_buffer"`
}

type PulseConfig struct {
	ClientName string `yaml:"client_name"`
	SampleRate int    `yaml:"sample_rate"`
}

type FileConfig struct {
	Path string `yaml:"path"`
}

type ControlConfig struct {
	HTTPAddr      string `yaml:"http_addr"`
	AuthToken     string `yaml:"auth_token"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

type MetricsConfig struct {
	Enabled *bool `yaml:"enabled"`
}

type PushoverConfig struct {
	Token   string `yaml:"token"`
	UserKey string `yaml:"user_key"`
	Enabled bool   `yaml:"enabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Backend.Kind == "" {
		c.Backend.Kind = BackendBrowser
	}
	if c.Acquire.Timeout == "" {
		c.Acquire.Timeout = "0"
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = BrowserLaunch
	}
	if c.Browser.ConnectAttempts == 0 {
		c.Browser.ConnectAttempts = 3
	}
	if c.PortAudio.SampleRate == 0 {
		c.PortAudio.SampleRate = 16000
	}
	if c.PortAudio.FramesPerBuffer == 0 {
		c.PortAudio.FramesPerBuffer = 1024
	}
	if c.Pulse.ClientName == "" {
		c.Pulse.ClientName = "meetmic"
	}
	if c.Pulse.SampleRate == 0 {
		c.Pulse.SampleRate = 48000
	}
	if c.Control.HTTPAddr == "" {
		c.Control.HTTPAddr = ":8080"
	}
	if c.Control.RatePerMinute == 0 {
		c.Control.RatePerMinute = 30
	}
	if c.Metrics.Enabled == nil {
		enabled := true
		c.Metrics.Enabled = &enabled
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case BackendBrowser, BackendPortAudio, BackendPulse, BackendFile:
	default:
		return fmt.Errorf("unknown backend kind: %q", c.Backend.Kind)
	}

	if c.Backend.Kind == BackendBrowser {
		switch c.Browser.Mode {
		case BrowserLaunch:
		case BrowserRemote:
			if c.Browser.DebuggerURL == "" {
				return fmt.Errorf("browser.debugger_url is required in remote mode")
			}
		default:
			return fmt.Errorf("unknown browser mode: %q", c.Browser.Mode)
		}
	}

	if c.Backend.Kind == BackendFile && c.File.Path == "" {
		return fmt.Errorf("file.path is required for the file backend")
	}

	if _, err := c.AcquireTimeout(); err != nil {
		return err
	}

	return nil
}

// AcquireTimeout parses acquire.timeout. Zero means no timeout.
func (c *Config) AcquireTimeout() (time.Duration, error) {
	if c.Acquire.Timeout == "" || c.Acquire.Timeout == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Acquire.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing acquire.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("acquire.timeout must not be negative: %s", c.Acquire.Timeout)
	}
	return d, nil
}

func (c *Config) MetricsEnabled() bool {
	return c.Metrics.Enabled != nil && *c.Metrics.Enabled
}
