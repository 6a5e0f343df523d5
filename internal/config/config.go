/*
Copyright (c) 2024 Fsas Technologies Inc., or its subsidiaries. All Rights Reserved.

Licensed under the Mozilla Public License Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://mozilla.org/MPL/2.0/


Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package config persists the manager connection established by login
// between command invocations.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// File mirrors the ~/.ilorcli/config.yaml structure.
type File struct {
	Manager Manager `yaml:"manager"`
}

// Manager is the saved connection of the currently logged in BMC.
type Manager struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	SslInsecure bool   `yaml:"ssl_insecure,omitempty"`
}

// Path returns the default config file path.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ilorcli", "config.yaml")
}

// Load reads the config file at path. A missing file yields an empty
// config. A .env file in the working directory is applied to the
// environment first so credentials can be kept out of the shell history.
func Load(path string) (*File, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &File{}, nil
		}
		return nil, err
	}

	var cfg File
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to path, creating the directory when needed.
func Save(cfg *File, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// Clear removes the saved session. A missing file is not an error.
func Clear(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
