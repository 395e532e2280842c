package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProvider()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.LibraryDir, err = expandPath(c.Paths.LibraryDir); err != nil {
		return fmt.Errorf("paths.library_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProvider() {
	c.Provider.BaseURL = strings.TrimRight(strings.TrimSpace(c.Provider.BaseURL), "/")
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = defaultProviderBaseURL
	}
	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	if c.Provider.TimeoutSeconds <= 0 {
		c.Provider.TimeoutSeconds = defaultProviderTimeoutSeconds
	}
	if strings.TrimSpace(c.Provider.OutputFormat) == "" {
		c.Provider.OutputFormat = defaultOutputFormat
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.JobPollInterval <= 0 {
		c.Workflow.JobPollInterval = defaultJobPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.MaxJobAttempts <= 0 {
		c.Workflow.MaxJobAttempts = defaultMaxJobAttempts
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
