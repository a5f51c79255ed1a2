package engine

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/props"
)

const (
	DefaultWorkerCount      = 1
	MaxWorkerCount          = 10
	DefaultPollInterval     = 2 * time.Second
	DefaultCleaningSchedule = "@every 5m"
	DefaultHTTPHost         = "127.0.0.1"
)

// Configuration is the compute engine tuning.
type Configuration struct {
	WorkerCount      int
	PollInterval     time.Duration
	CleaningSchedule string
	HTTPHost         string
	HTTPPort         int
}

// ConfigurationFromProps reads and validates the ce.* properties.
func ConfigurationFromProps(p *props.Props) (*Configuration, error) {
	cfg := &Configuration{
		CleaningSchedule: p.ValueOrDefault(props.CECleaningSchedule, DefaultCleaningSchedule),
		HTTPHost:         p.ValueOrDefault(props.CEHTTPHost, DefaultHTTPHost),
	}
	var err error
	if cfg.WorkerCount, err = p.Int(props.CEWorkerCount, DefaultWorkerCount); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if cfg.WorkerCount < 1 || cfg.WorkerCount > MaxWorkerCount {
		return nil, fmt.Errorf("%w: %s must be between 1 and %d, got %d",
			ErrInvalidConfiguration, props.CEWorkerCount, MaxWorkerCount, cfg.WorkerCount)
	}
	if cfg.PollInterval, err = p.Duration(props.CEWorkerPoll, DefaultPollInterval); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidConfiguration, props.CEWorkerPoll)
	}
	if _, err := cron.ParseStandard(cfg.CleaningSchedule); err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", ErrInvalidConfiguration, props.CECleaningSchedule, cfg.CleaningSchedule, err)
	}
	if cfg.HTTPPort, err = p.Int(props.CEHTTPPort, 0); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("%w: %s out of range", ErrInvalidConfiguration, props.CEHTTPPort)
	}
	return cfg, nil
}

func configurationModule() cecontainer.Module {
	return cecontainer.NewModule("configuration", cecontainer.LevelTasks,
		cecontainer.Provide(KeyConfiguration, func(r cecontainer.Resolver) (any, error) {
			p, err := cecontainer.Get[*props.Props](r, KeyProps)
			if err != nil {
				return nil, err
			}
			return ConfigurationFromProps(p)
		}, KeyProps),
	)
}
