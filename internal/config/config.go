package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Bidding  BiddingConfig  `mapstructure:"bidding"`
	Realtime RealtimeConfig `mapstructure:"realtime"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Leader   LeaderConfig   `mapstructure:"leader"`
	Instance InstanceConfig `mapstructure:"instance"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the auction store backing: "json" or "mysql".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type BiddingConfig struct {
	LockTimeout time.Duration `mapstructure:"lock_timeout"`
	LockTTL     time.Duration `mapstructure:"lock_ttl"`
}

type RealtimeConfig struct {
	AllowAnonymous bool `mapstructure:"allow_anonymous"`
	SendBuffer     int  `mapstructure:"send_buffer"`
}

type SweeperConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
	Key string        `mapstructure:"key"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

const (
	DriverJSON  = "json"
	DriverMySQL = "mysql"
)

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("store.driver", DriverJSON)
	v.SetDefault("store.path", "data/auctions.json")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/pigeon_auction?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("bidding.lock_timeout", 5*time.Second)
	v.SetDefault("bidding.lock_ttl", 10*time.Second)
	v.SetDefault("realtime.allow_anonymous", true)
	v.SetDefault("realtime.send_buffer", 64)
	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "@every 1m")
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("leader.key", "auction_leader")
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("log.level", "info")

	v.AutomaticEnv()

	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("store.path", "STORE_PATH")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("bidding.lock_timeout", "BID_LOCK_TIMEOUT")
	v.BindEnv("bidding.lock_ttl", "BID_LOCK_TTL")
	v.BindEnv("realtime.allow_anonymous", "REALTIME_ALLOW_ANONYMOUS")
	v.BindEnv("realtime.send_buffer", "REALTIME_SEND_BUFFER")
	v.BindEnv("sweeper.enabled", "SWEEPER_ENABLED")
	v.BindEnv("sweeper.schedule", "SWEEPER_SCHEDULE")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("leader.key", "LEADER_KEY")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("log.level", "LOG_LEVEL")

	return v
}

func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pigeon-auction/")

	// the file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path on top of the
// defaults and environment.
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.Store.Driver = strings.ToLower(strings.TrimSpace(config.Store.Driver))
	return &config, nil
}

// Validate rejects combinations the services cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverJSON:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the json driver"))
		}
	case DriverMySQL:
		if c.MySQL.DSN == "" {
			errs = append(errs, errors.New("mysql.dsn is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Bidding.LockTimeout <= 0 {
		errs = append(errs, errors.New("bidding.lock_timeout must be positive"))
	}
	if c.Redis.Enabled && c.Redis.Address == "" {
		errs = append(errs, errors.New("redis.address is required when redis is enabled"))
	}
	if c.Redis.Enabled && c.Store.Driver == DriverJSON {
		errs = append(errs, errors.New("store.driver json is single-instance; use mysql when redis is enabled"))
	}
	if c.Redis.Enabled && c.Bidding.LockTTL <= c.Bidding.LockTimeout {
		errs = append(errs, errors.New("bidding.lock_ttl must exceed bidding.lock_timeout"))
	}

	return errors.Join(errs...)
}

// Address is the host:port the HTTP server listens on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s, Store: %s, Redis: %t (%s), Instance: %s",
		c.Address(),
		c.Store.Driver,
		c.Redis.Enabled,
		c.Redis.Address,
		c.Instance.ID,
	)
}
