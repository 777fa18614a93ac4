package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process configuration, read from a yaml file and/or
// environment variables (e.g. DATABASE_HOST overrides database.host).
type Config struct {
	ServerHost      string
	ServerPort      string
	ShutdownTimeout time.Duration

	DatabaseDSN string
	RedisURL    string

	LogLevel  string
	LogFormat string

	WorkerConcurrency int
	UploadDir         string
}

// Load reads configuration with viper. A missing config file is not an
// error; defaults and environment variables are enough to run.
func Load() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app/config")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		ServerHost:        viper.GetString("server.host"),
		ServerPort:        viper.GetString("server.port"),
		ShutdownTimeout:   viper.GetDuration("server.shutdown_timeout"),
		RedisURL:          viper.GetString("redis.url"),
		LogLevel:          viper.GetString("logging.level"),
		LogFormat:         viper.GetString("logging.format"),
		WorkerConcurrency: viper.GetInt("worker.concurrency"),
		UploadDir:         viper.GetString("uploads.dir"),
	}

	if cfg.ServerHost == "" {
		cfg.ServerHost = "0.0.0.0"
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RedisURL == "" {
		cfg.RedisURL = "redis://localhost:6379/0"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}

	cfg.DatabaseDSN = databaseDSN()

	return cfg, nil
}

func databaseDSN() string {
	host := viper.GetString("database.host")
	port := viper.GetInt("database.port")
	user := viper.GetString("database.user")
	password := viper.GetString("database.password")
	name := viper.GetString("database.dbname")
	sslmode := viper.GetString("database.sslmode")

	if host == "" {
		host = "localhost"
	}
	if port == 0 {
		port = 5432
	}
	if user == "" {
		user = "postgres"
	}
	if password == "" {
		password = "postgres"
	}
	if name == "" {
		name = "marketplace"
	}
	if sslmode == "" {
		sslmode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", user, password, host, port, name, sslmode)
}
