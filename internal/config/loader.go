package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/wastetrack/bulk-movements/internal/db"
)

// Config is the full service configuration.
type Config struct {
	DB             db.Config
	ListenAddr     string
	AllowedOrigins []string
	MigrationsPath string
	Upload         UploadConfig
	PageSize       int
}

// UploadConfig bounds accepted uploads. The row limit is deliberately
// configuration rather than a hard-coded constant.
type UploadConfig struct {
	MaxRows  int
	MaxBytes int64
}

// DefaultConfig returns the configuration used when no config file or
// environment overrides are present.
func DefaultConfig() Config {
	return Config{
		DB:             db.DefaultConfig(),
		ListenAddr:     ":8080",
		AllowedOrigins: []string{"http://localhost:3000"},
		MigrationsPath: "./migrations",
		Upload: UploadConfig{
			MaxRows:  10_000,
			MaxBytes: 32 << 20,
		},
		PageSize: 15,
	}
}

// Load reads config.yaml from configPath with environment overrides.
func Load(configPath string) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()      // allow environment overrides
	v.SetEnvPrefix("APP") // map env vars like APP_DATABASE.HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.listen")
	v.BindEnv("upload.maxrows")
	v.BindEnv("upload.maxbytes")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Use defaults + env.
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.DB.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.DB.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.DB.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.DB.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DB.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.DB.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.listen") {
		cfg.ListenAddr = v.GetString("server.listen")
	}
	if v.IsSet("server.allowedorigins") {
		cfg.AllowedOrigins = v.GetStringSlice("server.allowedorigins")
	}
	if v.IsSet("server.migrationspath") {
		cfg.MigrationsPath = v.GetString("server.migrationspath")
	}
	if v.IsSet("server.pagesize") {
		cfg.PageSize = v.GetInt("server.pagesize")
	}
	if v.IsSet("upload.maxrows") {
		cfg.Upload.MaxRows = v.GetInt("upload.maxrows")
	}
	if v.IsSet("upload.maxbytes") {
		cfg.Upload.MaxBytes = v.GetInt64("upload.maxbytes")
	}

	return cfg, nil
}
