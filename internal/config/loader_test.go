package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/okian/medley/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.TurnSeconds, convey.ShouldEqual, 30)
				convey.So(cfg.AttemptBudget, convey.ShouldEqual, 2)
				convey.So(cfg.RetryAttempts, convey.ShouldEqual, 3)
				convey.So(cfg.RetryDelayMS, convey.ShouldEqual, 300)
				convey.So(cfg.ResultQueueSize, convey.ShouldEqual, 10_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.MaxBoardLimit, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("MEDLEY_ADDR", ":8080")
			_ = os.Setenv("MEDLEY_TURN_SECONDS", "45")
			_ = os.Setenv("MEDLEY_ATTEMPT_BUDGET", "3")
			_ = os.Setenv("MEDLEY_QUEUE_SIZE", "2000")
			_ = os.Setenv("MEDLEY_WORKER_COUNT", "4")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.TurnSeconds, convey.ShouldEqual, 45)
				convey.So(cfg.AttemptBudget, convey.ShouldEqual, 3)
				convey.So(cfg.ResultQueueSize, convey.ShouldEqual, 2000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
turn_seconds: 60
retry_attempts: 5
max_board_limit: 50
popularity_snapshot_path: "/tmp/popularity.json"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MEDLEY_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.TurnSeconds, convey.ShouldEqual, 60)
				convey.So(cfg.RetryAttempts, convey.ShouldEqual, 5)
				convey.So(cfg.MaxBoardLimit, convey.ShouldEqual, 50)
				convey.So(cfg.PopularitySnapshotPath, convey.ShouldEqual, "/tmp/popularity.json")
			})
		})

		convey.Convey("When env vars override a YAML file", func() {
			yamlContent := `
addr: ":9090"
turn_seconds: 60
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("MEDLEY_CONFIG", tmpFile)
			_ = os.Setenv("MEDLEY_TURN_SECONDS", "15")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then env takes precedence", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.TurnSeconds, convey.ShouldEqual, 15)
			})
		})

		convey.Convey("When the config is invalid", func() {
			_ = os.Setenv("MEDLEY_TURN_SECONDS", "0")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrInvalidConfig", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(err, convey.ShouldWrap, config.ErrInvalidConfig)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			_ = os.Setenv("MEDLEY_CONFIG", "/nonexistent/medley.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrLoadConfig", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(err, convey.ShouldWrap, config.ErrLoadConfig)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"MEDLEY_CONFIG",
		"MEDLEY_ADDR",
		"MEDLEY_TURN_SECONDS",
		"MEDLEY_ATTEMPT_BUDGET",
		"MEDLEY_QUEUE_SIZE",
		"MEDLEY_WORKER_COUNT",
		"MEDLEY_RETRY_ATTEMPTS",
		"MEDLEY_MAX_BOARD_LIMIT",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "medley-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	_ = f.Close()
	return f.Name()
}
