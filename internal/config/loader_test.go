package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/falcongrasp/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Namespace, convey.ShouldEqual, "FalconGrasp")
				convey.So(cfg.Telemetry.QueueSize, convey.ShouldEqual, 4096)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("FALCON_ADDR", ":8080")
			_ = os.Setenv("FALCON_NAMESPACE", "CatchTheStick")
			_ = os.Setenv("FALCON_API__GAME_ID", "42")
			_ = os.Setenv("FALCON_GAME__SUBMIT_RETRY", "7s")
			_ = os.Setenv("FALCON_VISION__THRESHOLD", "6")

			cfg, err := config.Load(ctx)

			convey.Convey("Then env vars override defaults, including nested keys", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Namespace, convey.ShouldEqual, "CatchTheStick")
				convey.So(cfg.API.GameID, convey.ShouldEqual, "42")
				convey.So(cfg.Game.SubmitRetry, convey.ShouldEqual, 7*time.Second)
				convey.So(cfg.Vision.Threshold, convey.ShouldEqual, 6)
				convey.So(cfg.Game.PlayerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := writeTempFile(t, "config.yaml", `
addr: ":9090"
mqtt:
  broker: "broker.local:1883"
api:
  base_url: "https://api.example.test"
  game_id: "7"
vision:
  kernel_size: 7
  cameras:
    - index: 0
      source: "videos/cam0.mp4"
      crop: {x: 10, y: 20, width: 300, height: 200}
    - index: 1
      source: "rtsp://10.0.0.2/stream"
`)
			_ = os.Setenv("FALCON_CONFIG", tmpFile)
			_ = os.Setenv("FALCON_ADDR", ":7070")

			cfg, err := config.Load(ctx)

			convey.Convey("Then file values apply and env still wins", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.MQTT.Broker, convey.ShouldEqual, "broker.local:1883")
				convey.So(cfg.API.GameID, convey.ShouldEqual, "7")
				convey.So(cfg.Vision.KernelSize, convey.ShouldEqual, 7)
				convey.So(cfg.Vision.Cameras, convey.ShouldHaveLength, 2)
				convey.So(cfg.Vision.Cameras[0].Crop.Width, convey.ShouldEqual, 300)
				convey.So(cfg.Vision.Cameras[1].Source, convey.ShouldEqual, "rtsp://10.0.0.2/stream")
			})
		})

		convey.Convey("When a .env file provides credentials", func() {
			envFile := writeTempFile(t, "node.env", "FALCON_API__EMAIL=node@example.test\nFALCON_API__PASSWORD=secret\n")
			_ = os.Setenv("FALCON_ENV_FILE", envFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then they reach the config", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.API.Email, convey.ShouldEqual, "node@example.test")
				convey.So(cfg.API.Password, convey.ShouldEqual, "secret")
			})
		})
	})
}

func TestConfigLoaderEdgeCases(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("FALCON_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When an explicit .env file does not exist", func() {
			_ = os.Setenv("FALCON_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
			_, err := config.Load(ctx)

			convey.Convey("Then a load error is returned", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the namespace is blanked", func() {
			_ = os.Setenv("FALCON_NAMESPACE", " ")
			_, err := config.Load(ctx)

			convey.Convey("Then validation fails", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"FALCON_CONFIG",
		"FALCON_ENV_FILE",
		"FALCON_ADDR",
		"FALCON_NAMESPACE",
		"FALCON_API__GAME_ID",
		"FALCON_API__EMAIL",
		"FALCON_API__PASSWORD",
		"FALCON_GAME__SUBMIT_RETRY",
		"FALCON_VISION__THRESHOLD",
	} {
		_ = os.Unsetenv(key)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
