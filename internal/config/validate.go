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
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.SourceRoot == "" {
		return errors.New("paths.source_root must be set")
	}
	if c.Paths.OutputRoot == "" {
		return errors.New("paths.output_root must be set")
	}
	return nil
}

func (c *Config) validateEmail() error {
	if !c.Email.Enabled {
		return nil
	}
	if c.Email.SMTPServer == "" {
		return errors.New("email.smtp_server must be set when email.enabled is true")
	}
	if c.Email.To == "" {
		return errors.New("email.to must be set when email.enabled is true")
	}
	if c.Email.From == "" {
		return errors.New("email.from must be set when email.enabled is true")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
