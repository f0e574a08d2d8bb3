// Package config loads connection settings for the outer CLIs and services
// that embed this module. The lease and kv packages never depend on it
// directly; they take an already-constructed conn.Conn and store.Store, the
// way the teacher's library code never reaches for global config either.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConnectOptions holds the dial settings for an etcd connection, kept
// separate so it can be parsed from a config file section on its own.
// DialTimeout matches conn.Options.DialTimeout; conn.Options has no
// counterpart for Username and Password.
type ConnectOptions struct {
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
}

// Config is the top-level configuration for a process embedding this
// module. AttachLease toggles whether the process requests a lease for
// itself at startup; most libraries using this module as a dependency
// leave it false and manage leases explicitly through the lease package.
type Config struct {
	EtcdURL            []string       `mapstructure:"etcd_url"`
	EtcdConnectOptions ConnectOptions `mapstructure:"etcd_connect_options"`
	AttachLease        bool           `mapstructure:"attach_lease"`
}

// FromEnv builds a Config from environment variables, following viper's
// env-binding idiom rather than hand-rolled os.Getenv calls. ETCD_ENDPOINTS
// is a comma-separated endpoint list; ETCD_DIAL_TIMEOUT accepts anything
// time.ParseDuration understands.
func FromEnv() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEASELOOP")
	v.AutomaticEnv()

	// ETCD_ENDPOINTS is bound without the LEASELOOP_ prefix too, since it is
	// the one variable outer CLIs (per spec.md Sec.6) already set without
	// namespacing it to this module.
	v.BindEnv("etcd_endpoints", "LEASELOOP_ETCD_ENDPOINTS", "ETCD_ENDPOINTS")
	v.BindEnv("etcd_connect_options.dial_timeout", "ETCD_DIAL_TIMEOUT")
	v.SetDefault("etcd_connect_options.dial_timeout", 5*time.Second)

	var cfg Config
	if endpoints := v.GetString("etcd_endpoints"); endpoints != "" {
		cfg.EtcdURL = splitEndpoints(endpoints)
	}
	cfg.EtcdConnectOptions.DialTimeout = v.GetDuration("etcd_connect_options.dial_timeout")
	cfg.EtcdConnectOptions.Username = v.GetString("etcd_username")
	cfg.EtcdConnectOptions.Password = v.GetString("etcd_password")
	cfg.AttachLease = v.GetBool("attach_lease")

	if len(cfg.EtcdURL) == 0 {
		return Config{}, fmt.Errorf("config: ETCD_ENDPOINTS is required and was empty")
	}
	return cfg, nil
}

// FromFile reads a config file (any format viper supports: yaml, toml,
// json). Environment variables reach it only through viper's automatic
// LEASELOOP_-prefixed lookup; it does not read ETCD_ENDPOINTS or
// ETCD_DIAL_TIMEOUT the way FromEnv does.
func FromFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("LEASELOOP")
	v.AutomaticEnv()
	v.SetDefault("etcd_connect_options.dial_timeout", 5*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal %q: %w", path, err)
	}
	if len(cfg.EtcdURL) == 0 {
		return Config{}, fmt.Errorf("config: %q declares no etcd_url entries", path)
	}
	return cfg, nil
}

func splitEndpoints(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
