package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	Port int `yaml:"port"`

	Source       string `yaml:"source"`
	Device       int    `yaml:"device"`
	SourceURL    string `yaml:"source_url"`
	SourceWidth  int    `yaml:"source_width"`
	SourceHeight int    `yaml:"source_height"`

	FrameWidth    int           `yaml:"frame_width"`
	JPEGQuality   int           `yaml:"jpeg_quality"`
	Scaler        string        `yaml:"scaler"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	FrameInterval time.Duration `yaml:"frame_interval"`

	AggregationInterval time.Duration `yaml:"aggregation_interval"`
	GoodLatency         time.Duration `yaml:"good_latency"`
	DegradedLatency     time.Duration `yaml:"degraded_latency"`

	UIRate         time.Duration `yaml:"ui_rate"`
	RecordEnabled  bool          `yaml:"record"`
	RecordDir      string        `yaml:"record_dir"`
	MJPEGEnabled   bool          `yaml:"mjpeg"`
	SourceLogEvery int           `yaml:"source_log_every"`
}

// Default returns the compiled-in relay constants.
func Default() AppConfig {
	return AppConfig{
		Port:                5000,
		Source:              "synthetic",
		SourceWidth:         1280,
		SourceHeight:        720,
		FrameWidth:          640,
		JPEGQuality:         60,
		Scaler:              "approx-bilinear",
		RetryInterval:       10 * time.Millisecond,
		FrameInterval:       15 * time.Millisecond,
		AggregationInterval: time.Second,
		GoodLatency:         50 * time.Millisecond,
		DegradedLatency:     150 * time.Millisecond,
		UIRate:              time.Second,
		RecordDir:           "recordings",
		SourceLogEvery:      100,
	}
}

// Load reads a YAML file on top of Default. Keys absent from the file keep
// their default values.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.Source {
	case "synthetic":
		if c.SourceWidth < 1 || c.SourceHeight < 1 {
			return fmt.Errorf("invalid synthetic size %dx%d", c.SourceWidth, c.SourceHeight)
		}
	case "camera":
	case "mjpeg", "zmq":
		if c.SourceURL == "" {
			return fmt.Errorf("source %q requires source_url", c.Source)
		}
	default:
		return fmt.Errorf("unknown source %q", c.Source)
	}
	if c.FrameWidth < 0 {
		return fmt.Errorf("invalid frame width %d", c.FrameWidth)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg quality %d out of range 1-100", c.JPEGQuality)
	}
	if c.RetryInterval <= 0 || c.FrameInterval < 0 {
		return fmt.Errorf("invalid capture intervals retry=%s frame=%s", c.RetryInterval, c.FrameInterval)
	}
	if c.AggregationInterval <= 0 {
		return fmt.Errorf("invalid aggregation interval %s", c.AggregationInterval)
	}
	if c.GoodLatency <= 0 || c.DegradedLatency <= c.GoodLatency {
		return fmt.Errorf("latency thresholds must satisfy 0 < good < degraded (good=%s degraded=%s)", c.GoodLatency, c.DegradedLatency)
	}
	return nil
}
