package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GoCodeAlone/cecontainer"
	"github.com/GoCodeAlone/cecontainer/engine"
	"github.com/GoCodeAlone/cecontainer/feeders"
	"github.com/GoCodeAlone/cecontainer/props"
)

const stopTimeout = 30 * time.Second

// NewStartCommand creates the start command
func NewStartCommand() *cobra.Command {
	var (
		configFiles []string
		envPrefix   string
		development bool
	)
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the compute engine",
		Long: `Start the compute engine with the properties read from the given files
(.properties, .yaml, .yml or .toml, later files override earlier ones) and from
the environment variables starting with the prefix.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := LoadProps(configFiles, envPrefix)
			if err != nil {
				return err
			}
			zl, err := newZapLogger(development)
			if err != nil {
				return err
			}
			defer zl.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, engine.New(engine.WithLogger(cecontainer.NewZapLogger(zl))), p)
		},
	}
	cmd.Flags().StringArrayVarP(&configFiles, "config", "c", nil, "Property file, may be repeated")
	cmd.Flags().StringVar(&envPrefix, "env-prefix", "CE", "Prefix of the environment variables to read")
	cmd.Flags().BoolVar(&development, "dev", false, "Human readable debug logs")
	return cmd
}

func newZapLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// LoadProps reads the files in order then the environment. An empty prefix
// skips the environment.
func LoadProps(files []string, envPrefix string) (*props.Props, error) {
	var sources []props.Feeder
	for _, file := range files {
		f, err := feeders.ForFile(file)
		if err != nil {
			return nil, err
		}
		sources = append(sources, f)
	}
	if envPrefix != "" {
		sources = append(sources, feeders.NewEnvFeeder(envPrefix, props.Catalog...))
	}
	p, err := props.Load(sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties: %w", err)
	}
	return p, nil
}

// Run starts c and blocks until ctx is done or a stop is requested, then
// stops it.
func Run(ctx context.Context, c *engine.Container, p *props.Props) error {
	if err := c.Start(ctx, p); err != nil {
		return fmt.Errorf("compute engine startup failed: %w", err)
	}
	select {
	case <-ctx.Done():
	case <-c.StopRequested():
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	return c.Stop(stopCtx)
}
