// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package config loads ikin.yml.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Uwikunda17/kinyarwandalibrary/internal/surface"
)

// Defaults
const (
	DefaultAddr    = "127.0.0.1:8080"
	DefaultTimeout = 30 * time.Second
)

// Config is the file configuration shared by the CLI, the REPL and the
// server.
type Config struct {
	Path string `yaml:"-"`

	Variables            map[string]any             `yaml:"variables"`
	StopOnValidationFail *bool                      `yaml:"stop_on_validation_fail"`
	InjectDependencies   bool                       `yaml:"inject_dependencies"`
	Elements             map[string]surface.Element `yaml:"elements"`
	Forms                map[string][]string        `yaml:"forms"`
	Server               Server                     `yaml:"server"`
	Store                Store                      `yaml:"store"`
	Network              Network                    `yaml:"network"`
}

// Server configures `ikin serve`.
type Server struct {
	Addr string `yaml:"addr"`
}

// Store configures the run history database. An empty path disables it.
type Store struct {
	Path string `yaml:"path"`
}

// Network configures the outbound HTTP commands.
type Network struct {
	Timeout   string `yaml:"timeout"`
	UserAgent string `yaml:"user_agent"`
}

// ValidationError aggregates configuration problems.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "config: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("config validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// Default returns the configuration used without a file.
func Default() *Config {
	return &Config{
		Variables: map[string]any{},
		Elements:  map[string]surface.Element{},
		Forms:     map[string][]string{},
		Server:    Server{Addr: DefaultAddr},
	}
}

// Load parses a configuration file. Missing keys keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", absPath, err)
	}
	defer file.Close()

	cfg, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", absPath, err)
	}
	cfg.Path = absPath
	return cfg, nil
}

// Decode reads YAML from r over the defaults and validates the result.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	cfg.Variables = normalizeMap(cfg.Variables)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = DefaultAddr
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StopOnValidation reports the effective stop_on_validation_fail setting,
// true unless disabled.
func (c *Config) StopOnValidation() bool {
	return c.StopOnValidationFail == nil || *c.StopOnValidationFail
}

// Timeout returns the network timeout.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.Network.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Surface builds the environment described by elements and forms.
func (c *Config) Surface() *surface.Memory {
	m := surface.NewMemory(c.Elements)
	for sel, fields := range c.Forms {
		m.AddForm(sel, fields)
	}
	return m
}

func (c *Config) validate() error {
	var errs ValidationError
	if !strings.Contains(c.Server.Addr, ":") {
		errs.Issues = append(errs.Issues, fmt.Sprintf("server.addr %q must be host:port", c.Server.Addr))
	}
	if c.Network.Timeout != "" {
		if d, err := time.ParseDuration(c.Network.Timeout); err != nil || d <= 0 {
			errs.Issues = append(errs.Issues, fmt.Sprintf("network.timeout %q must be a positive duration", c.Network.Timeout))
		}
	}

	forms := make([]string, 0, len(c.Forms))
	for sel := range c.Forms {
		forms = append(forms, sel)
	}
	sort.Strings(forms)
	for _, sel := range forms {
		for i, field := range c.Forms[sel] {
			if _, ok := c.Elements[field]; !ok {
				errs.Issues = append(errs.Issues, fmt.Sprintf("forms.%s[%d] references unknown element %q", sel, i, field))
			}
		}
	}

	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

// normalizeMap converts YAML integers to float64 so that configured
// variables compare equal to script numbers.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	for k, v := range m {
		m[k] = normalize(v)
	}
	return m
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case map[string]any:
		return normalizeMap(x)
	case []any:
		for i := range x {
			x[i] = normalize(x[i])
		}
		return x
	}
	return v
}
