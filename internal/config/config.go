/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package config reads and writes the upload collaborator's credentials.
// It is never consulted by the tracing engine itself; polytrace has no
// flag or environment variable that changes core behavior based on its
// contents.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Config holds the settings needed to hand a payload off to an upload
// collaborator.
type Config struct {
	UploadURL           string `json:"uploadUrl"`
	PersonalAccessToken string `json:"personalAccessToken"`
}

// dirName is the subdirectory under XDG_CONFIG_HOME (or $HOME/.config)
// that holds config.json.
const dirName = "polytrace"

// Dir returns the directory config.json lives in, creating it with 0700
// permissions if it doesn't already exist.
func Dir() (string, error) {
	var base string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrap(err, "determining home directory")
		}
		base = filepath.Join(home, ".config")
	}

	dir := filepath.Join(base, dirName)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return "", errors.Wrap(err, "creating config directory")
		}
	} else if err != nil {
		return "", errors.Wrap(err, "checking config directory")
	}
	return dir, nil
}

// FilePath returns the full path to config.json.
func FilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads and parses config.json, returning (nil, nil) if it doesn't
// exist. It refuses to read a file with permissions looser than 0600.
func Load() (*Config, error) {
	path, err := FilePath()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrap(err, "checking config file")
	}

	if info.Mode().Perm()&0077 != 0 {
		return nil, errors.Errorf("config file %s has insecure permissions, expected 0600", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	return &cfg, nil
}

// Save writes cfg to config.json with 0600 permissions.
func Save(cfg Config) error {
	path, err := FilePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "writing config file")
	}
	return os.Chmod(path, 0600)
}
