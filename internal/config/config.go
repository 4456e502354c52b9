// Package config loads dbsync's configuration: a dbsync.yaml file,
// environment variable overrides (DBSYNC_*), and flag values supplied
// by the CLI layer, applied in flag > env > file > default precedence.
// Layering is done with viper, the same library the pack's reference
// CLI uses for this.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/dbascode/dbsync/internal/dsyncerr"
)

// DatabaseTarget is one routing-pool entry: a database name and the
// connection string template used to dial it.
type DatabaseTarget struct {
	Name string `mapstructure:"name"`
	DSN  string `mapstructure:"dsn"`
}

// Config is the fully resolved configuration the CLI hands to the
// orchestrator.
type Config struct {
	DefaultBranch  string           `mapstructure:"default_branch"`
	DefaultSchema  string           `mapstructure:"default_schema"`
	DiffPrefix     string           `mapstructure:"diff_prefix"`
	RepoPath       string           `mapstructure:"repo_path"`
	Remote         string           `mapstructure:"remote"`
	SyncIgnorePath string           `mapstructure:"syncignore_path"`
	Concurrency    int              `mapstructure:"concurrency"`
	Databases      []DatabaseTarget `mapstructure:"databases"`
}

// Defaults returns the baseline configuration applied before file and
// environment overrides.
func Defaults() Config {
	return Config{
		DefaultBranch:  "main",
		DefaultSchema:  "dbo",
		DiffPrefix:     "db",
		RepoPath:       ".",
		Remote:         "origin",
		SyncIgnorePath: ".syncignore",
		Concurrency:    8,
	}
}

// Load reads path (if it exists) over Defaults(), then applies
// DBSYNC_* environment overrides through viper's precedence chain. A
// missing file is not an error: Defaults() alone is a valid
// configuration for a single-database setup driven entirely by flags
// and environment.
func Load(path string) (Config, error) {
	d := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("dbsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("default_branch", d.DefaultBranch)
	v.SetDefault("default_schema", d.DefaultSchema)
	v.SetDefault("diff_prefix", d.DiffPrefix)
	v.SetDefault("repo_path", d.RepoPath)
	v.SetDefault("remote", d.Remote)
	v.SetDefault("syncignore_path", d.SyncIgnorePath)
	v.SetDefault("concurrency", d.Concurrency)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "reading config file %s", path)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, dsyncerr.Wrap(dsyncerr.KindRepoIO, err, "decoding config file %s", path)
	}

	// DBSYNC_DSN is a single shared DSN template with a "%s"
	// database-name placeholder, the common single-target case; viper's
	// AutomaticEnv only binds keys the file/defaults already know
	// about, so it is read explicitly here rather than through Unmarshal.
	if dsn := v.GetString("dsn"); dsn != "" {
		cfg.Databases = append(cfg.Databases, DatabaseTarget{Name: "*", DSN: dsn})
	}

	return cfg, nil
}

// DSNFor resolves the connection string template to use for dbName:
// an exact-name entry wins, then a "*" wildcard entry, else an error.
func (c Config) DSNFor(dbName string) (string, error) {
	var wildcard string
	for _, d := range c.Databases {
		if strings.EqualFold(d.Name, dbName) {
			return d.DSN, nil
		}
		if d.Name == "*" {
			wildcard = d.DSN
		}
	}
	if wildcard != "" {
		return wildcard, nil
	}
	return "", fmt.Errorf("no DSN configured for database %q", dbName)
}
