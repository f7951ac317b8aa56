// Package config reads settings for the svcpool command from flags,
// environment variables (SVCPOOL_<FLAG>, e.g. SVCPOOL_LOG_LEVEL=debug) and
// the .env / .env.local files of the working directory.
package config

import (
	"fmt"
	"strings"
	"time"

	"svcpool/codec"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "svcpool"

// Client modes, i.e. how a pool finds its host.
const (
	ModeLocal     = "local"
	ModeDial      = "dial"
	ModeDiscovery = "discovery"
)

type Config struct {
	LogLevel  string
	LogFormat string // "console" or "json"
	Codec     codec.CodecType
	Key       byte // shared SecurityCenter key
	Etcd      []string
	HostName  string // discovery name of the host
	Host      HostConfig
	Client    ClientConfig
}

type HostConfig struct {
	Listen         string
	Advertise      string
	TTL            int64
	Weight         int
	RateLimit      float64 // requests per second, 0 disables limiting
	Burst          int
	RequestTimeout time.Duration
}

type ClientConfig struct {
	Mode           string
	Address        string
	Balancer       string
	Heartbeat      time.Duration
	ConnectTimeout time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	Retries        int
	CallTimeout    time.Duration
}

// LoadEnvFiles loads .env and then .env.local. Missing files are ignored.
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// NewViper returns a viper instance reading SVCPOOL_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// SetupCommonFlags adds the flags shared by every command.
func SetupCommonFlags(cmd *cobra.Command) {
	key := "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("Level at which logs are written (debug, info, warn, error)"))

	key = "log-format"
	cmd.PersistentFlags().String(key, "console", WrapString("Log encoding (console, json)"))

	key = "codec"
	cmd.PersistentFlags().String(key, "json", WrapString("Codec used on the wire (json, binary). Host and pool pick it per frame, so both sides may differ"))

	key = "key"
	cmd.PersistentFlags().String(key, "w", WrapString("Single-character key of the SecurityCenter service"))

	key = "etcd"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated etcd endpoints used for host discovery. Empty disables discovery"))

	key = "host-name"
	cmd.PersistentFlags().String(key, "svcpool", WrapString("Name under which hosts announce themselves for discovery"))
}

// SetupHostFlags adds the flags of the serve command.
func SetupHostFlags(cmd *cobra.Command) {
	key := "listen"
	cmd.Flags().String(key, "127.0.0.1:7070", WrapString("Address the host listens on"))

	key = "advertise"
	cmd.Flags().String(key, "", WrapString("Address announced for discovery. Defaults to the listening address"))

	key = "ttl"
	cmd.Flags().Int64(key, 10, WrapString("Lease TTL in seconds of the discovery entry"))

	key = "weight"
	cmd.Flags().Int(key, 10, WrapString("Weight of this host for weighted balancing"))

	key = "rate-limit"
	cmd.Flags().Float64(key, 0, WrapString("Requests per second the host accepts. 0 disables limiting"))

	key = "burst"
	cmd.Flags().Int(key, 100, WrapString("Burst size of the rate limiter"))

	key = "request-timeout"
	cmd.Flags().Duration(key, 5*time.Second, WrapString("Upper bound of a single request on the host"))
}

// SetupClientFlags adds the flags of the commands acting as callers.
func SetupClientFlags(cmd *cobra.Command) {
	key := "mode"
	cmd.PersistentFlags().String(key, ModeLocal, WrapString("How to reach the host: local (start one in-process), dial (fixed address), discovery (etcd)"))

	key = "address"
	cmd.PersistentFlags().String(key, "127.0.0.1:7070", WrapString("Host address for mode dial"))

	key = "balancer"
	cmd.PersistentFlags().String(key, "round-robin", WrapString("Host selection for mode discovery (round-robin, weighted-random, consistent-hash)"))

	key = "heartbeat"
	cmd.PersistentFlags().Duration(key, 5*time.Second, WrapString("Heartbeat interval of the connection. 0 disables heartbeats"))

	key = "connect-timeout"
	cmd.PersistentFlags().Duration(key, 3*time.Second, WrapString("Upper bound of a single bind attempt"))

	key = "backoff-initial"
	cmd.PersistentFlags().Duration(key, 50*time.Millisecond, WrapString("Delay before retrying a failed bind"))

	key = "backoff-max"
	cmd.PersistentFlags().Duration(key, 5*time.Second, WrapString("Cap of the doubling bind retry delay"))

	key = "retries"
	cmd.PersistentFlags().Int(key, 2, WrapString("Retries of calls that timed out or were rate limited"))

	key = "timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("Overall timeout of the command"))
}

// Load reads the configuration from v. Flags must already be bound.
func Load(v *viper.Viper) (*Config, error) {
	ct, err := codec.ParseCodecType(v.GetString("codec"))
	if err != nil {
		return nil, err
	}

	key := v.GetString("key")
	if len(key) != 1 {
		return nil, fmt.Errorf("key must be a single byte, got %q", key)
	}

	conf := &Config{
		LogLevel:  v.GetString("log-level"),
		LogFormat: v.GetString("log-format"),
		Codec:     ct,
		Key:       key[0],
		Etcd:      splitList(v.GetString("etcd")),
		HostName:  v.GetString("host-name"),
		Host: HostConfig{
			Listen:         v.GetString("listen"),
			Advertise:      v.GetString("advertise"),
			TTL:            v.GetInt64("ttl"),
			Weight:         v.GetInt("weight"),
			RateLimit:      v.GetFloat64("rate-limit"),
			Burst:          v.GetInt("burst"),
			RequestTimeout: v.GetDuration("request-timeout"),
		},
		Client: ClientConfig{
			Mode:           v.GetString("mode"),
			Address:        v.GetString("address"),
			Balancer:       v.GetString("balancer"),
			Heartbeat:      v.GetDuration("heartbeat"),
			ConnectTimeout: v.GetDuration("connect-timeout"),
			BackoffInitial: v.GetDuration("backoff-initial"),
			BackoffMax:     v.GetDuration("backoff-max"),
			Retries:        v.GetInt("retries"),
			CallTimeout:    v.GetDuration("timeout"),
		},
	}

	switch conf.Client.Mode {
	case "", ModeLocal:
		conf.Client.Mode = ModeLocal
	case ModeDial:
		if conf.Client.Address == "" {
			return nil, fmt.Errorf("mode %s needs an address", ModeDial)
		}
	case ModeDiscovery:
		if len(conf.Etcd) == 0 {
			return nil, fmt.Errorf("mode %s needs etcd endpoints", ModeDiscovery)
		}
	default:
		return nil, fmt.Errorf("invalid mode %q (expected %s, %s or %s)", conf.Client.Mode, ModeLocal, ModeDial, ModeDiscovery)
	}
	return conf, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
