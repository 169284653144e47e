package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"genstudio/internal/app"
	"genstudio/internal/catalog"
	"genstudio/internal/infra"
)

type commandContext struct {
	envFile *string
	verbose *bool

	configOnce sync.Once
	config     *infra.Config
	configErr  error

	runtime *app.Runtime
}

func newCommandContext(envFile *string, verbose *bool) *commandContext {
	return &commandContext{envFile: envFile, verbose: verbose}
}

func (c *commandContext) ensureConfig() (*infra.Config, error) {
	c.configOnce.Do(func() {
		if path := strings.TrimSpace(*c.envFile); path != "" {
			if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.configErr = fmt.Errorf("load %s: %w", path, err)
				return
			}
		}
		c.config, c.configErr = infra.LoadConfig()
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() *infra.Logger {
	if c.verbose == nil || !*c.verbose {
		return infra.DiscardLogger()
	}
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	return &l
}

// open wires the runtime on first use. The store lock is held until the
// command finishes.
func (c *commandContext) open(ctx context.Context) (*app.Runtime, error) {
	if c.runtime != nil {
		return c.runtime, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	rt, err := app.Open(ctx, cfg, c.logger())
	if errors.Is(err, app.ErrStoreLocked) {
		return nil, fmt.Errorf("%s is locked; stop the API server first", cfg.StorePath)
	}
	if err != nil {
		return nil, err
	}
	c.runtime = rt
	return rt, nil
}

// catalog reads the model catalog without touching the store.
func (c *commandContext) catalog() (*catalog.Catalog, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Load(cfg.ModelCatalogPath)
}

func (c *commandContext) close() {
	if c.runtime != nil {
		c.runtime.Close()
		c.runtime = nil
	}
}
