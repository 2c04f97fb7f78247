package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Game      GameConfig      `mapstructure:"game"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Media     MediaConfig     `mapstructure:"media"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
}

type ServerConfig struct {
	HTTPAddress string `mapstructure:"http_address"`
	RPCAddress  string `mapstructure:"rpc_address"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type GameConfig struct {
	TurnSeconds      int           `mapstructure:"turn_seconds"`
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
}

// TurnBudget 每回合时长
func (g GameConfig) TurnBudget() time.Duration {
	return time.Duration(g.TurnSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type MediaConfig struct {
	BaseURL string   `mapstructure:"base_url"`
	S3      S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

type BroadcastConfig struct {
	// Relay 开启后通过 Postgres LISTEN/NOTIFY 跨实例广播
	Relay bool `mapstructure:"relay"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "triad")

	v.SetDefault("game.turn_seconds", 45)
	v.SetDefault("game.watchdog_interval", time.Second)
	v.SetDefault("game.sweep_interval", 5*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("media.base_url", "/media/")
	v.SetDefault("media.s3.bucket", "")
	v.SetDefault("media.s3.region", "us-east-1")
	v.SetDefault("media.s3.endpoint", "")
	v.SetDefault("media.s3.access_key_id", "")
	v.SetDefault("media.s3.secret_access_key", "")
	v.SetDefault("media.s3.presign_ttl", 15*time.Minute)

	v.SetDefault("broadcast.relay", false)
}

// LoadConfig reads path/config.yaml, overridden by environment variables
// (DATABASE_POSTGRES_HOST for database.postgres.host). A .env file in path
// is loaded into the environment first. Missing files fall back to defaults.
func LoadConfig(path string) (config *Config, err error) {
	if err = godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
