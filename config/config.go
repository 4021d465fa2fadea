// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// Config aggregates configuration for the application. It is loaded once
// at process start, validated, and treated as read-only afterwards.
type Config struct {
	Distribution DistributionConfig `mapstructure:"distribution"`
	Work         WorkConfig         `mapstructure:"work"`
	Science      ScienceConfig      `mapstructure:"science"`
}

// DistributionConfig controls how packaged products are delivered.
type DistributionConfig struct {
	// Method selects the delivery strategy: "local" or "remote".
	Method string `mapstructure:"method"`

	// LocalDir is the cache directory packages are written into when
	// Method is "local".
	LocalDir string `mapstructure:"local_dir"`

	// CacheHosts is the candidate list of remote cache hosts. Loaded from
	// a comma-separated environment value.
	CacheHosts []string `mapstructure:"cache_hosts"`

	// CacheUser is the account used for remote transfers.
	CacheUser string `mapstructure:"cache_user"`

	// CacheDir is the destination directory on the remote cache hosts.
	CacheDir string `mapstructure:"cache_dir"`

	SSHPort        int           `mapstructure:"ssh_port"`
	PingTimeout    time.Duration `mapstructure:"ping_timeout"`
	HostRecheckTTL time.Duration `mapstructure:"host_recheck_ttl"`

	// Retry ceilings. Packaging and delivery are retried independently
	// with a fixed delay; the outer attempt covering both is retried with
	// the delay growing by BackoffFactor after each failure.
	PackagingAttempts int           `mapstructure:"packaging_attempts"`
	PackagingDelay    time.Duration `mapstructure:"packaging_delay"`
	DeliveryAttempts  int           `mapstructure:"delivery_attempts"`
	DeliveryDelay     time.Duration `mapstructure:"delivery_delay"`
	Attempts          int           `mapstructure:"attempts"`
	Delay             time.Duration `mapstructure:"delay"`
	BackoffFactor     float64       `mapstructure:"backoff_factor"`
}

// WorkConfig controls the per-order working directory tree.
type WorkConfig struct {
	// BaseDir is the directory under which per-order directories are
	// created as <base>/<orderID>-<productID>/{stage,work,output}.
	BaseDir string `mapstructure:"base_dir"`

	// KeepWorkDir disables the removal of the order directory at pipeline
	// exit. Intended for debugging failed orders.
	KeepWorkDir bool `mapstructure:"keep_work_dir"`
}

// ScienceConfig controls invocation of the external science executables.
type ScienceConfig struct {
	// CommandTable optionally points at a YAML file overriding the
	// executable name used for each science stage.
	CommandTable string `mapstructure:"command_table"`
}

// Load reads configuration from files and environment variables.
// Environment variables use the prefix "SCENERUNNER" and the dot character
// in keys is replaced by an underscore. For example, "distribution.method"
// becomes "SCENERUNNER_DISTRIBUTION_METHOD".
func Load() (*Config, error) {
	cfg := &Config{
		Distribution: DefaultDistributionConfig(),
		Work:         DefaultWorkConfig(),
	}

	v := viper.New()
	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.SetEnvPrefix("SCENERUNNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, cfg)
	_ = v.ReadInConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if h := v.GetString("distribution.cache_hosts"); h != "" {
		cfg.Distribution.CacheHosts = splitHosts(h)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitHosts(s string) []string {
	var hosts []string
	for _, h := range strings.Split(s, ",") {
		h = strings.TrimSpace(h)
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Validate checks the configuration for values that would only fail once
// an order is in flight. Any problem here is a fatal startup error.
func (c *Config) Validate() error {
	var errs *multierror.Error

	switch c.Distribution.Method {
	case DistributionLocal:
		if c.Distribution.LocalDir == "" {
			errs = multierror.Append(errs, fmt.Errorf("distribution.local_dir is required when distribution.method is %q", DistributionLocal))
		}
	case DistributionRemote:
		if len(c.Distribution.CacheHosts) == 0 {
			errs = multierror.Append(errs, fmt.Errorf("distribution.cache_hosts is required when distribution.method is %q", DistributionRemote))
		}
		if c.Distribution.CacheUser == "" {
			errs = multierror.Append(errs, fmt.Errorf("distribution.cache_user is required when distribution.method is %q", DistributionRemote))
		}
		if c.Distribution.CacheDir == "" {
			errs = multierror.Append(errs, fmt.Errorf("distribution.cache_dir is required when distribution.method is %q", DistributionRemote))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("distribution.method must be %q or %q, got %q", DistributionLocal, DistributionRemote, c.Distribution.Method))
	}

	if c.Work.BaseDir == "" {
		errs = multierror.Append(errs, fmt.Errorf("work.base_dir must not be empty"))
	}
	if c.Distribution.PackagingAttempts < 1 {
		errs = multierror.Append(errs, fmt.Errorf("distribution.packaging_attempts must be at least 1"))
	}
	if c.Distribution.DeliveryAttempts < 1 {
		errs = multierror.Append(errs, fmt.Errorf("distribution.delivery_attempts must be at least 1"))
	}
	if c.Distribution.Attempts < 1 {
		errs = multierror.Append(errs, fmt.Errorf("distribution.attempts must be at least 1"))
	}
	if c.Distribution.BackoffFactor < 1.0 {
		errs = multierror.Append(errs, fmt.Errorf("distribution.backoff_factor must be at least 1.0"))
	}

	return errs.ErrorOrNil()
}

// bindEnvs registers all keys within cfg so that viper will look up
// corresponding environment variables when unmarshalling.
func bindEnvs(v *viper.Viper, cfg any, parts ...string) {
	val := reflect.ValueOf(cfg)
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		val = val.Elem()
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		tag := f.Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(f.Name)
		}
		key := append(parts, tag)
		if f.Type.Kind() == reflect.Struct {
			bindEnvs(v, val.Field(i).Interface(), key...)
			continue
		}
		_ = v.BindEnv(strings.Join(key, "."))
	}
}
