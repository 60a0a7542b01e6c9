// Package config resolves the CLI's ambient settings (package root,
// cache directory, ignore-file name, transfer poll interval, API version,
// converter fan-out bound, transfer store backend) from, in
// precedence order, flags, MDPACK_-prefixed environment variables, a
// .mdpack.yml project file, and built-in defaults. The spf13/viper
// plumbing lives here so the CLI commands share one precedence chain
// instead of each re-deriving it against package-level state.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Viper keys for every resolved setting.
const (
	KeyPackageRoot  = "package_root"
	KeyCacheDir     = "cache_dir"
	KeyIgnoreFile   = "ignore_file"
	KeyPollInterval = "poll_interval"
	KeyAPIVersion   = "api_version"
	KeyParallelism  = "parallelism"
	KeyBackend      = "backend"
)

// EnvPrefix is the environment variable prefix bound via AutomaticEnv,
// e.g. MDPACK_API_VERSION overrides KeyAPIVersion.
const EnvPrefix = "MDPACK"

// Built-in defaults, used when no flag, env var, or project file sets a
// value.
const (
	DefaultIgnoreFile   = ".mdpackignore"
	DefaultPollInterval = 2 * time.Second
	DefaultAPIVersion   = "59.0"
	DefaultParallelism  = 8
	DefaultBackend      = "local"
)

// Config is the fully resolved set of settings for one CLI invocation.
type Config struct {
	PackageRoot  string
	CacheDir     string
	IgnoreFile   string
	PollInterval time.Duration
	APIVersion   string
	Parallelism  int
	Backend      string
}

// New returns a viper instance with defaults, the MDPACK_ environment
// prefix, and the .mdpack.yml project-file search path bound. Call once
// at CLI startup; subcommands bind their own flags onto the same
// instance before calling Resolve.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyIgnoreFile, DefaultIgnoreFile)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyAPIVersion, DefaultAPIVersion)
	v.SetDefault(KeyParallelism, DefaultParallelism)
	v.SetDefault(KeyBackend, DefaultBackend)

	home, err := os.UserHomeDir()
	if err == nil {
		v.SetDefault(KeyCacheDir, filepath.Join(home, ".mdpack", "cache"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	// Project file (.mdpack.yml in the current directory) takes
	// precedence over the user-level config written by `mdpack config set`.
	v.SetConfigType("yaml")
	if _, err := os.Stat(".mdpack.yml"); err == nil {
		v.SetConfigFile(".mdpack.yml")
	} else if userConfig, err := ConfigFilePath(); err == nil {
		v.SetConfigFile(userConfig)
	}

	// A missing config file is not an error; every setting still has a
	// default or env-var source.
	_ = v.ReadInConfig()

	return v
}

// Resolve builds a Config from v. flagRoot is the package root supplied
// as a CLI argument/flag, if any; it takes precedence over
// KeyPackageRoot sourced from the environment or project file.
func Resolve(v *viper.Viper, flagRoot string) Config {
	root := flagRoot
	if root == "" {
		root = v.GetString(KeyPackageRoot)
	}
	if root == "" {
		root = "."
	}

	return Config{
		PackageRoot:  root,
		CacheDir:     v.GetString(KeyCacheDir),
		IgnoreFile:   v.GetString(KeyIgnoreFile),
		PollInterval: v.GetDuration(KeyPollInterval),
		APIVersion:   v.GetString(KeyAPIVersion),
		Parallelism:  v.GetInt(KeyParallelism),
		Backend:      v.GetString(KeyBackend),
	}
}

// ConfigFilePath returns the path New() writes persisted `config set`
// values to: ~/.mdpack/config.yaml, creating the directory if needed.
func ConfigFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".mdpack")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}
