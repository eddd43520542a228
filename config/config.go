// Package config holds global dnfcore configuration: the installroot, cache
// and repo directories, URL substitution variables, and the download/commit
// policy knobs shared by every repository and transaction (spec.md §1, §4.5,
// §4.8).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	coretypes "github.com/projecteru2/core/types"

	"github.com/dnfcore/dnfcore/utils"
)

// Config holds global dnfcore configuration.
type Config struct {
	// InstallRoot is the root filesystem dnfcore operates against. The
	// installed-package rpmdb is only considered present when
	// <InstallRoot>/usr exists (spec.md §4.6).
	InstallRoot string `json:"installroot"`
	// CacheDir is the base directory for per-repo metadata/package/pubring
	// caches, laid out as <CacheDir>/<id>-<hash8>/... (spec.md §4.4).
	CacheDir string `json:"cachedir"`
	// ReposDir is scanned for *.repo files (spec.md §4.8).
	ReposDir string `json:"reposdir"`
	// LockDir holds the process-mode lock PID files (spec.md §6).
	LockDir string `json:"lockdir"`

	// ReleaseVer substitutes $releasever in repo URLs and is recorded in
	// yumdb on install.
	ReleaseVer string `json:"releasever"`
	// BaseArch and Arch substitute $basearch/$arch in repo URLs.
	BaseArch string `json:"basearch"`
	Arch     string `json:"arch"`

	// MaxParallelDownloads bounds concurrent package downloads across all
	// repositories in a single transaction (spec.md §4.6).
	MaxParallelDownloads int `json:"max_parallel_downloads"`
	// MaxMirrorTries bounds per-target mirror failover attempts.
	MaxMirrorTries int `json:"max_mirror_tries"`
	// FailFast aborts the whole download batch on the first failed target
	// instead of collecting every failure before reporting (spec.md §4.6).
	FailFast bool `json:"fail_fast"`

	// InstalledBy is recorded in yumdb as the acting uid (spec.md §4.6).
	InstalledBy int `json:"installed_by"`

	// PoolSize is the goroutine pool size for concurrent downloads and
	// cache maintenance. Defaults to runtime.NumCPU() if zero.
	PoolSize int `json:"pool_size"`
	// Log configuration, uses eru core's ServerLogConfig.
	Log coretypes.ServerLogConfig `json:"log"`
}

// DefaultConfig returns a Config with sensible defaults, matching dnf's own
// stock /etc/dnf/dnf.conf values where the spec names one.
func DefaultConfig() *Config {
	return &Config{
		InstallRoot:           "/",
		CacheDir:              "/var/cache/dnfcore",
		ReposDir:              "/etc/yum.repos.d",
		LockDir:               "/run/dnfcore",
		BaseArch:              runtime.GOARCH,
		Arch:                  runtime.GOARCH,
		MaxParallelDownloads:  3,
		MaxMirrorTries:        3,
		FailFast:              false,
		PoolSize:              runtime.NumCPU(),
		Log: coretypes.ServerLogConfig{
			Level:      "info",
			MaxSize:    500,
			MaxAge:     28,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from file, falling back to defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // config path from CLI flag
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.PoolSize <= 0 {
		cfg.PoolSize = runtime.NumCPU()
	}
	if cfg.MaxParallelDownloads <= 0 {
		cfg.MaxParallelDownloads = 3
	}
	if cfg.MaxMirrorTries <= 0 {
		cfg.MaxMirrorTries = 3
	}
	return cfg, nil
}

// URLVars builds the $releasever/$basearch/$arch/$uuid substitution set for
// repo URL templates (spec.md §4.3).
func (c *Config) URLVars(uuid string) utils.URLVars {
	return utils.URLVars{
		ReleaseVer: c.ReleaseVer,
		BaseArch:   c.BaseArch,
		Arch:       c.Arch,
		UUID:       uuid,
	}
}

// HasInstalledRPMDB reports whether InstallRoot contains /usr, the signal
// the sack uses to decide whether an installed-package pool exists at all
// (spec.md §4.6: "the installed rpmdb (optional; only present when the
// installroot contains /usr)").
func (c *Config) HasInstalledRPMDB() bool {
	info, err := os.Stat(filepath.Join(c.InstallRoot, "usr"))
	return err == nil && info.IsDir()
}

// YumdbDir returns <installroot>/var/lib/yum/yumdb, the root of the yumdb
// side-effect tree (spec.md §4.6, §6).
func (c *Config) YumdbDir() string {
	return filepath.Join(c.InstallRoot, "var", "lib", "yum", "yumdb")
}
