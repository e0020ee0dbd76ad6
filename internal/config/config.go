// Package config defines process configuration for the game and vision
// nodes and the layered loader that fills it.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config contains process configuration shared by both nodes.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the admin HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Namespace roots every bus topic, e.g. "FalconGrasp".
	Namespace string `koanf:"namespace"`

	MQTT      MQTTConfig      `koanf:"mqtt"`
	API       APIConfig       `koanf:"api"`
	Game      GameConfig      `koanf:"game"`
	Vision    VisionConfig    `koanf:"vision"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// MQTTConfig configures the broker connection.
type MQTTConfig struct {
	// Broker is host:port of the MQTT broker.
	Broker string `koanf:"broker"`
	// ClientID is optional; a random suffix is used when empty.
	ClientID       string        `koanf:"client_id"`
	QoS            int           `koanf:"qos"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
	PublishTimeout time.Duration `koanf:"publish_timeout"`
	// OfflineBuffer bounds telemetry held while disconnected.
	OfflineBuffer int `koanf:"offline_buffer"`
}

// APIConfig configures the remote scoring service client.
type APIConfig struct {
	BaseURL  string `koanf:"base_url"`
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
	GameID   string `koanf:"game_id"`
	GameName string `koanf:"game_name"`

	AuthTimeout        time.Duration `koanf:"auth_timeout"`
	StatusTimeout      time.Duration `koanf:"status_timeout"`
	SubmitTimeout      time.Duration `koanf:"submit_timeout"`
	LeaderboardTimeout time.Duration `koanf:"leaderboard_timeout"`

	// Retries bounds in-client retries of connection and timeout errors.
	Retries       int           `koanf:"retries"`
	RetryInterval time.Duration `koanf:"retry_interval"`
}

// GameConfig configures the orchestrator and the round timer.
type GameConfig struct {
	PlayerCount  int    `koanf:"player_count"`
	PlayerPrefix string `koanf:"player_prefix"`

	AuthRetry              time.Duration `koanf:"auth_retry"`
	PollInitInterval       time.Duration `koanf:"poll_init_interval"`
	PollStatusIdle         time.Duration `koanf:"poll_status_idle"`
	PollStatusErrorBackoff time.Duration `koanf:"poll_status_error_backoff"`
	SubmitRetry            time.Duration `koanf:"submit_retry"`

	// RoundDuration and FinalDuration are defaults; values set over the bus
	// are persisted to SettingsPath and win on the next start.
	RoundDuration time.Duration `koanf:"round_duration"`
	FinalDuration time.Duration `koanf:"final_duration"`
	SettingsPath  string        `koanf:"settings_path"`

	// BackupDir holds pre-submission score records.
	BackupDir string `koanf:"backup_dir"`

	LeaderboardSize int `koanf:"leaderboard_size"`

	// PresenterAutoReady marks the headless presenter ready whenever it
	// shows the idle or leaderboard view. Disable it when an operator
	// confirms readiness through POST /presenter/ready.
	PresenterAutoReady bool `koanf:"presenter_auto_ready"`
}

// VisionConfig configures the camera node.
type VisionConfig struct {
	// CalibrationPath is a YAML color table. Built-in ranges are used when empty.
	CalibrationPath string `koanf:"calibration_path"`
	// RequiredColors must all be present in the color table.
	RequiredColors []string `koanf:"required_colors"`

	// Threshold is the debounce count at which a color is confirmed.
	Threshold int `koanf:"threshold"`
	// KernelSize is the side of the elliptical closing kernel.
	KernelSize int `koanf:"kernel_size"`
	// Smooth enables the edge-preserving bilateral pre-filter.
	Smooth         bool          `koanf:"smooth"`
	ReopenInterval time.Duration `koanf:"reopen_interval"`

	Cameras []CameraConfig `koanf:"cameras"`
}

// CameraConfig describes one camera worker.
type CameraConfig struct {
	// Index is the camera number used in the telemetry topic.
	Index int `koanf:"index"`
	// Source is a device number ("0"), a video file path or an rtsp:// URL.
	Source string `koanf:"source"`
	Crop   Crop   `koanf:"crop"`
}

// Crop is a region of interest in source pixels. A zero width disables it.
type Crop struct {
	X      int `koanf:"x"`
	Y      int `koanf:"y"`
	Width  int `koanf:"width"`
	Height int `koanf:"height"`
}

// TelemetryConfig sizes the aggregator. The game node requires a single
// worker so per-camera order is kept.
type TelemetryConfig struct {
	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
}

// New returns a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Namespace: "FalconGrasp",
		MQTT: MQTTConfig{
			Broker:         "localhost:1883",
			QoS:            1,
			ConnectTimeout: 5 * time.Second,
			PublishTimeout: 2 * time.Second,
			OfflineBuffer:  1024,
		},
		API: APIConfig{
			AuthTimeout:        30 * time.Second,
			StatusTimeout:      8 * time.Second,
			SubmitTimeout:      20 * time.Second,
			LeaderboardTimeout: 12 * time.Second,
			Retries:            2,
			RetryInterval:      500 * time.Millisecond,
		},
		Game: GameConfig{
			PlayerCount:            4,
			PlayerPrefix:           "falcon_player",
			AuthRetry:              5 * time.Second,
			PollInitInterval:       3 * time.Second,
			PollStatusIdle:         500 * time.Millisecond,
			PollStatusErrorBackoff: 3 * time.Second,
			SubmitRetry:            5 * time.Second,
			RoundDuration:          15 * time.Second,
			FinalDuration:          30 * time.Second,
			SettingsPath:           "data/settings.yaml",
			BackupDir:              "data/backup",
			LeaderboardSize:        10,
			PresenterAutoReady:     true,
		},
		Vision: VisionConfig{
			Threshold:      10,
			KernelSize:     9,
			Smooth:         true,
			ReopenInterval: 2 * time.Second,
		},
		Telemetry: TelemetryConfig{
			QueueSize:   4096,
			WorkerCount: 1,
		},
	}
}

// Validate checks settings both nodes depend on.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.Namespace) == "":
		return fmt.Errorf("%w: namespace must not be empty", ErrInvalidConfig)
	case strings.TrimSpace(c.MQTT.Broker) == "":
		return fmt.Errorf("%w: mqtt.broker must not be empty", ErrInvalidConfig)
	case c.MQTT.QoS < 0 || c.MQTT.QoS > 2:
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", ErrInvalidConfig)
	}
	return nil
}

// ValidateGame checks settings the game node cannot run without.
func (c *Config) ValidateGame() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(c.API.BaseURL) == "":
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	case strings.TrimSpace(c.API.Email) == "" || c.API.Password == "":
		return fmt.Errorf("%w: api.email and api.password are required", ErrInvalidConfig)
	case strings.TrimSpace(c.API.GameID) == "":
		return fmt.Errorf("%w: api.game_id is required", ErrInvalidConfig)
	case c.Game.PlayerCount <= 0:
		return fmt.Errorf("%w: game.player_count must be positive", ErrInvalidConfig)
	case c.Game.RoundDuration <= 0 || c.Game.FinalDuration < 0:
		return fmt.Errorf("%w: game durations must be positive", ErrInvalidConfig)
	case c.Telemetry.QueueSize <= 0:
		return fmt.Errorf("%w: telemetry.queue_size must be positive", ErrInvalidConfig)
	case c.Telemetry.WorkerCount != 1:
		// Telemetry is applied by assignment; a second worker could apply
		// an older camera count after a newer one.
		return fmt.Errorf("%w: telemetry.worker_count must be 1", ErrInvalidConfig)
	}
	return nil
}

// ValidateVision checks settings the vision node cannot run without.
func (c *Config) ValidateVision() error {
	if err := c.Validate(); err != nil {
		return err
	}
	switch {
	case len(c.Vision.Cameras) == 0:
		return fmt.Errorf("%w: vision.cameras must list at least one camera", ErrInvalidConfig)
	case c.Vision.Threshold <= 0:
		return fmt.Errorf("%w: vision.threshold must be positive", ErrInvalidConfig)
	case c.Vision.KernelSize <= 0:
		return fmt.Errorf("%w: vision.kernel_size must be positive", ErrInvalidConfig)
	}
	seen := make(map[int]bool, len(c.Vision.Cameras))
	for _, cam := range c.Vision.Cameras {
		if strings.TrimSpace(cam.Source) == "" {
			return fmt.Errorf("%w: camera %d has no source", ErrInvalidConfig, cam.Index)
		}
		if seen[cam.Index] {
			return fmt.Errorf("%w: camera index %d is used twice", ErrInvalidConfig, cam.Index)
		}
		seen[cam.Index] = true
	}
	return nil
}
