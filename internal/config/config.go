// Package config loads the TOML configuration described in spec §6:
// the [zac] and [zabbix] tables plus the per-name [source_collectors.*]
// and [host_modifiers.*] sub-tables, each of which may carry arbitrary
// module-specific keys alongside its fixed fields.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully decoded configuration tree.
type Config struct {
	Zac              ZacConfig                          `mapstructure:"zac"`
	Zabbix           ZabbixConfig                        `mapstructure:"zabbix"`
	SourceCollectors map[string]SourceCollectorSettings `mapstructure:"source_collectors"`
	HostModifiers    map[string]HostModifierSettings     `mapstructure:"host_modifiers"`
}

// ZacConfig is the [zac] table: daemon-wide paths and logging.
type ZacConfig struct {
	SourceCollectorDir   string        `mapstructure:"source_collector_dir"`
	HostModifierDir      string        `mapstructure:"host_modifier_dir"`
	DBURI                string        `mapstructure:"db_uri"`
	LogLevel             string        `mapstructure:"log_level"`
	LogFormat            string        `mapstructure:"log_format"`
	HealthFile           string        `mapstructure:"health_file"`
	FailsafeOKFile       string        `mapstructure:"failsafe_ok_file"`
	FailsafeOKFileStrict bool          `mapstructure:"failsafe_ok_file_strict"`
	MergeUpdateInterval  time.Duration `mapstructure:"merge_update_interval"`
	StatusInterval       time.Duration `mapstructure:"status_interval"`
}

// ZabbixConfig is the [zabbix] table: connection and reconciler tuning.
type ZabbixConfig struct {
	MapDir             string        `mapstructure:"map_dir"`
	URL                string        `mapstructure:"url"`
	Username           string        `mapstructure:"username"`
	Password           string        `mapstructure:"password"`
	Dryrun             bool          `mapstructure:"dryrun"`
	TagsPrefix         string        `mapstructure:"tags_prefix"`
	ManagedInventory   []string      `mapstructure:"managed_inventory"`
	Failsafe           int           `mapstructure:"failsafe"`
	ReconcileInterval  time.Duration `mapstructure:"reconcile_interval"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// SourceCollectorSettings is one [source_collectors.<name>] sub-table.
// Extra holds every key besides module_name/update_interval, passed to
// the collector verbatim (spec §4.1: collectors own their settings bag).
type SourceCollectorSettings struct {
	ModuleName     string         `mapstructure:"module_name"`
	UpdateInterval time.Duration  `mapstructure:"update_interval"`
	Extra          map[string]any `mapstructure:",remain"`
}

// HostModifierSettings is one [host_modifiers.<name>] sub-table.
type HostModifierSettings struct {
	ModuleName string         `mapstructure:"module_name"`
	Extra      map[string]any `mapstructure:",remain"`
}

// Load reads configPath (TOML), applies environment overrides (a key
// like zabbix.dryrun is read from ZABBIX_DRYRUN), and validates the
// result. An empty configPath skips file reading entirely, relying on
// defaults and environment alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("zac.log_level", "info")
	v.SetDefault("zac.log_format", "json")
	v.SetDefault("zac.failsafe_ok_file_strict", false)
	v.SetDefault("zac.merge_update_interval", "60s")
	v.SetDefault("zac.status_interval", "60s")

	v.SetDefault("zabbix.tags_prefix", "zac_")
	v.SetDefault("zabbix.failsafe", 20)
	v.SetDefault("zabbix.dryrun", false)
	v.SetDefault("zabbix.reconcile_interval", "60s")
	v.SetDefault("zabbix.insecure_skip_verify", false)
}

// Validate checks the fields every worker depends on for a non-empty,
// well-formed value. It does not attempt to reach the database or
// Zabbix — that is the configured workers' job at startup.
func (c *Config) Validate() error {
	if c.Zac.SourceCollectorDir == "" {
		return fmt.Errorf("zac.source_collector_dir is required")
	}
	if c.Zac.HostModifierDir == "" {
		return fmt.Errorf("zac.host_modifier_dir is required")
	}
	if c.Zac.DBURI == "" {
		return fmt.Errorf("zac.db_uri is required")
	}

	if c.Zabbix.MapDir == "" {
		return fmt.Errorf("zabbix.map_dir is required")
	}
	if c.Zabbix.URL == "" {
		return fmt.Errorf("zabbix.url is required")
	}
	if c.Zabbix.Username == "" {
		return fmt.Errorf("zabbix.username is required")
	}
	if c.Zabbix.Password == "" {
		return fmt.Errorf("zabbix.password is required")
	}
	if c.Zabbix.Failsafe <= 0 {
		return fmt.Errorf("zabbix.failsafe must be positive, got %d", c.Zabbix.Failsafe)
	}

	for name, sc := range c.SourceCollectors {
		if sc.ModuleName == "" {
			return fmt.Errorf("source_collectors.%s.module_name is required", name)
		}
		if sc.UpdateInterval <= 0 {
			return fmt.Errorf("source_collectors.%s.update_interval must be positive", name)
		}
	}
	for name, hm := range c.HostModifiers {
		if hm.ModuleName == "" {
			return fmt.Errorf("host_modifiers.%s.module_name is required", name)
		}
	}

	return nil
}
