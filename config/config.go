// Package config loads the JSON session configuration dctool reads before
// parsing its own flags, grounded on the teacher's HALConfig shape
// (services/hal/config.go, services/config/config.go): a small JSON
// object naming which device, transport path, and cache directory a run
// should use, so a recurring download job doesn't need to repeat the same
// flags on every invocation.
package config

import (
	"encoding/json"
	"os"
)

// Config is the session-level configuration of spec §2's Ambient Stack: it
// names the descriptor, transport path, and cache directory a dctool
// invocation should default to. Any field left zero is simply not applied,
// so a config file may set only the fields a given deployment cares about.
type Config struct {
	Device   string `json:"device"`
	Port     string `json:"port"`
	CacheDir string `json:"cachedir"`
}

// Load decodes a Config from the JSON file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
