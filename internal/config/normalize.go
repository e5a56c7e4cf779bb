package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizePackaging()
	c.normalizeOpenVDM()
	c.normalizeEmail()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.SourceRoot, err = expandPath(c.Paths.SourceRoot); err != nil {
		return fmt.Errorf("paths.source_root: %w", err)
	}
	if c.Paths.OutputRoot, err = expandPath(c.Paths.OutputRoot); err != nil {
		return fmt.Errorf("paths.output_root: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizePackaging() {
	names := make([]string, 0, len(c.Packaging.LargeDatasets))
	seen := map[string]struct{}{}
	for _, name := range c.Packaging.LargeDatasets {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	c.Packaging.LargeDatasets = names

	c.Packaging.OutputSubdir = strings.TrimSpace(c.Packaging.OutputSubdir)
	if c.Packaging.OutputSubdir == "" {
		c.Packaging.OutputSubdir = defaultOutputSubdir
	}
}

func (c *Config) normalizeOpenVDM() {
	c.OpenVDM.APIURL = strings.TrimSpace(c.OpenVDM.APIURL)
	if c.OpenVDM.RequestTimeout <= 0 {
		c.OpenVDM.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeEmail() {
	c.Email.To = strings.TrimSpace(c.Email.To)
	c.Email.From = strings.TrimSpace(c.Email.From)
	c.Email.SMTPServer = strings.TrimSpace(c.Email.SMTPServer)
	if c.Email.SMTPPort <= 0 {
		c.Email.SMTPPort = defaultSMTPPort
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
