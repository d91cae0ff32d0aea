// Copyright 2025 kettleby
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"os"
	"time"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".savefmt.yaml"

// 🔧 Config is the optional daemon configuration. It concerns only the
// host process — the formatter keeps resolving its own dprint.json; this
// file never influences formatting behavior itself.
type Config struct {
	// Tool overrides the formatter executable name or path.
	Tool string `yaml:"tool,omitempty"`
	// TimeoutSeconds bounds one formatter invocation.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	// Include restricts which files trigger runs (doublestar patterns).
	Include []string `yaml:"include,omitempty"`
	// Exclude skips matching files and directories.
	Exclude []string `yaml:"exclude,omitempty"`
}

// Timeout converts TimeoutSeconds; zero defers to the invoker default.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// loadConfig reads the daemon config at path. A missing file is only an
// error when the user pointed at it explicitly; the default path is
// optional and yields an empty config.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == defaultConfigFile {
			return &Config{}, nil
		}
		return nil, errors.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Errorf("parsing %s: %w", path, err)
	}
	if cfg.TimeoutSeconds < 0 {
		return nil, errors.Errorf("timeout_seconds must not be negative")
	}
	return &cfg, nil
}
