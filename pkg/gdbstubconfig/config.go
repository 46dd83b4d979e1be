// Package gdbstubconfig loads the optional YAML config file holding
// defaults for the listen address, port, and verbose-trace flag. Adapted
// from config/config.go's LoadConfig/GetConfigFilePath shape: same
// home-directory-derived config directory and tolerant-of-missing-file
// behavior, narrowed from delve's command-alias config to this stub's three
// defaults.
package gdbstubconfig

import (
	"io/ioutil"
	"os"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  = ".config/vmcore-gdbstub"
	configFile = "config.yml"
)

// Config holds CLI defaults a config file may override; zero values mean
// "not set", so the CLI's own defaults win when a field is absent.
type Config struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	Verbose bool   `yaml:"verbose"`
}

// Load reads the config file at ~/.config/vmcore-gdbstub/config.yml. A
// missing file is not an error: Load returns a zero Config, so CLI flag
// defaults apply unchanged. A malformed file that exists IS an error,
// since the user presumably intended it to take effect.
func Load() (*Config, error) {
	p, err := filePath()
	if err != nil {
		return &Config{}, nil
	}
	data, err := ioutil.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func filePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(home, configDir, configFile), nil
}
