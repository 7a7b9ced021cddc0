// Package config loads optional server configuration from an ini file,
// the way the teacher loads EDS-adjacent settings with gopkg.in/ini.v1.
// Nothing in the core packages requires a config file to exist; Default
// returns sane values and Load only overrides what the file specifies.
package config

import "gopkg.in/ini.v1"

const (
	DefaultPort         = 7071
	DefaultBacklog      = 128
	DefaultRootDir      = "."
	DefaultRetryBudget  = 10
	DefaultReadyTimeout = 5 // seconds, matches the reactor's fixed readiness wait
)

// Config is the set of server-tunable values the distilled spec leaves as
// CLI-only; this supplements it with a file-based source.
type Config struct {
	Port         int
	Backlog      int
	RootDir      string
	RetryBudget  int
	ReadyTimeout int
}

// Default returns the hardcoded defaults used when no config file is given.
func Default() *Config {
	return &Config{
		Port:         DefaultPort,
		Backlog:      DefaultBacklog,
		RootDir:      DefaultRootDir,
		RetryBudget:  DefaultRetryBudget,
		ReadyTimeout: DefaultReadyTimeout,
	}
}

// Load reads path and overlays its [server] and [limits] sections onto the
// defaults. An empty path is not an error — Default() is returned as-is;
// a path naming a file that cannot be loaded is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	server := file.Section("server")
	cfg.Port = server.Key("port").MustInt(cfg.Port)
	cfg.Backlog = server.Key("backlog").MustInt(cfg.Backlog)
	cfg.RootDir = server.Key("root_dir").MustString(cfg.RootDir)

	limits := file.Section("limits")
	cfg.RetryBudget = limits.Key("retry_budget").MustInt(cfg.RetryBudget)
	cfg.ReadyTimeout = limits.Key("ready_timeout_seconds").MustInt(cfg.ReadyTimeout)

	return cfg, nil
}
