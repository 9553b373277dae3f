package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/config"
	"remindbot/internal/notifier"
	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
)

func mapSchedulerConfig(cfg *config.Config) (scheduler.Config, error) {
	sc := cfg.Scheduler

	interval, err := config.ParseDurationOrDefault("scheduler.interval", sc.Interval, time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	retryBase, err := config.ParseDurationOrDefault("scheduler.retry_base", sc.RetryBase, time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationOrDefault("scheduler.retry_max_delay", sc.RetryMaxDelay, 30*time.Minute)
	if err != nil {
		return scheduler.Config{}, err
	}
	commitTimeout, err := config.ParseDurationOrDefault("scheduler.commit_timeout", sc.CommitTimeout, 15*time.Second)
	if err != nil {
		return scheduler.Config{}, err
	}

	ops := ""
	if cfg.Telegram.AdminChatID != 0 {
		ops = strconv.FormatInt(cfg.Telegram.AdminChatID, 10)
	}

	return scheduler.Config{
		Enabled:        sc.Enabled,
		Interval:       interval,
		Timezone:       strings.TrimSpace(sc.Timezone),
		RetryMax:       sc.RetryMax,
		RetryBase:      retryBase,
		RetryMaxDelay:  retryMaxDelay,
		CommitTimeout:  commitTimeout,
		OpsDestination: ops,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	var out notifier.Config
	nc := cfg.Notifier
	if nc == nil {
		return out, nil
	}

	var err error
	if out.RetryBase, err = config.ParseDurationOrDefault("notifier.retry_base", nc.RetryBase, 0); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationOrDefault("notifier.retry_max_delay", nc.RetryMaxDelay, 0); err != nil {
		return notifier.Config{}, err
	}
	if out.SendTimeout, err = config.ParseDurationOrDefault("notifier.send_timeout", nc.SendTimeout, 0); err != nil {
		return notifier.Config{}, err
	}
	if nc.RatePerSec < 0 {
		return notifier.Config{}, fmt.Errorf("notifier.rate_per_sec must be >= 0")
	}
	out.RatePerSec = nc.RatePerSec
	out.RetryMax = nc.RetryMax
	return out, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)

	switch driver {
	case "", "file":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required")
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}
