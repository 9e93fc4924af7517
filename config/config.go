package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the SSO server. Tags use mapstructure
// for Viper unmarshalling; every key can be overridden by environment
// variable of the same name.
type Config struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`
	// RedisAddr switches the bearer-token validation cache from the in-memory
	// store to Redis when set.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// Issuer is the iss claim of generic bearer tokens.
	Issuer string `mapstructure:"ISSUER"`
	// BearerTokenSecret signs generic bearer tokens. Distinct from any
	// assertion-profile secret.
	BearerTokenSecret string `mapstructure:"BEARER_TOKEN_SECRET"`
	AccessTokenTTLMin int    `mapstructure:"ACCESS_TOKEN_TTL_MIN"`

	// Session sweep cadence. The sweep is housekeeping; expiry is also
	// enforced when a session is consumed.
	SessionSweepIntervalMin int `mapstructure:"SESSION_SWEEP_INTERVAL_MIN"`

	// Meeting access oracle.
	OracleURL        string `mapstructure:"MEET_ACCESS_API_URL"`
	OracleTimeoutSec int    `mapstructure:"MEET_ACCESS_TIMEOUT_SEC"`

	// MeetClientID names the registration used when a meeting entry request
	// does not specify a client.
	MeetClientID string `mapstructure:"MEET_CLIENT_ID"`

	// Meeting assertion profile. Attached identically to every assertion the
	// deployment issues for meeting-profile clients.
	MeetJWTSecret      string `mapstructure:"MEET_JWT_SECRET"`
	MeetGroup          string `mapstructure:"MEET_GROUP"`
	MeetDefaultRegion  string `mapstructure:"MEET_DEFAULT_REGION"`
	MeetTheme          string `mapstructure:"MEET_THEME"`
	MeetAllowKnocking  bool   `mapstructure:"MEET_ALLOW_KNOCKING"`
	MeetEnablePolls    bool   `mapstructure:"MEET_ENABLE_POLLS"`
	MeetLivestreaming  bool   `mapstructure:"MEET_FEATURE_LIVESTREAMING"`
	MeetRecording      bool   `mapstructure:"MEET_FEATURE_RECORDING"`
	MeetScreenSharing  bool   `mapstructure:"MEET_FEATURE_SCREEN_SHARING"`
	MeetSIP            bool   `mapstructure:"MEET_FEATURE_SIP"`
	MeetEtherpad       bool   `mapstructure:"MEET_FEATURE_ETHERPAD"`
	MeetTranscription  bool   `mapstructure:"MEET_FEATURE_TRANSCRIPTION"`
	MeetBreakoutRooms  bool   `mapstructure:"MEET_FEATURE_BREAKOUT_ROOMS"`
}

// AccessTokenTTL returns the bearer-token lifetime as a duration.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMin) * time.Minute
}

// OracleTimeout returns the bound on a single oracle request.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.OracleTimeoutSec) * time.Second
}

// SessionSweepInterval returns the cadence of the expired-session sweep.
func (c *Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.SessionSweepIntervalMin) * time.Minute
}

// MeetFeatures returns the deployment-fixed feature flag object attached to
// every meeting assertion.
func (c *Config) MeetFeatures() map[string]bool {
	return map[string]bool{
		"livestreaming":  c.MeetLivestreaming,
		"recording":      c.MeetRecording,
		"screen-sharing": c.MeetScreenSharing,
		"sip":            c.MeetSIP,
		"etherpad":       c.MeetEtherpad,
		"transcription":  c.MeetTranscription,
		"breakout-rooms": c.MeetBreakoutRooms,
	}
}

// Load reads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/avinoo-sso/")
	v.AddConfigPath("$HOME/.avinoo-sso")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017/avinoo_sso")
	v.SetDefault("MONGO_DB_NAME", "avinoo_sso")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("ISSUER", "https://auth.avinoo.ir")
	v.SetDefault("BEARER_TOKEN_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_TTL_MIN", 60)
	v.SetDefault("SESSION_SWEEP_INTERVAL_MIN", 5)
	v.SetDefault("MEET_ACCESS_API_URL", "https://avinoo.ir/api/meets/access/")
	v.SetDefault("MEET_ACCESS_TIMEOUT_SEC", 10)
	v.SetDefault("MEET_CLIENT_ID", "meet_avinoo")
	v.SetDefault("MEET_JWT_SECRET", "")
	v.SetDefault("MEET_GROUP", "dev-team")
	v.SetDefault("MEET_DEFAULT_REGION", "us-east")
	v.SetDefault("MEET_THEME", "green")
	v.SetDefault("MEET_ALLOW_KNOCKING", true)
	v.SetDefault("MEET_ENABLE_POLLS", true)
	v.SetDefault("MEET_FEATURE_LIVESTREAMING", true)
	v.SetDefault("MEET_FEATURE_RECORDING", true)
	v.SetDefault("MEET_FEATURE_SCREEN_SHARING", true)
	v.SetDefault("MEET_FEATURE_SIP", false)
	v.SetDefault("MEET_FEATURE_ETHERPAD", false)
	v.SetDefault("MEET_FEATURE_TRANSCRIPTION", true)
	v.SetDefault("MEET_FEATURE_BREAKOUT_ROOMS", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Missing config file is fine: defaults and env vars apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
