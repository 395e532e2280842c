package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateProvider(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateProvider() error {
	if c.Provider.BaseURL == "" {
		return errors.New("provider.base_url must be set")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.VariantsPerLine < 1 {
		return errors.New("generation.variants_per_line must be at least 1")
	}
	if c.Generation.MinFreeGiB < 0 {
		return errors.New("generation.min_free_gib must not be negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
