package core

import (
	"log"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	serverConfig struct {
		Host                      string
		Address                   string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		CORSOrigins               []string
		BodyLimit                 string
	}

	databaseConfig struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	redisConfig struct {
		URL            string
		ChangeChannel  string
		SearchCacheTTL time.Duration
	}

	genaiConfig struct {
		APIKey string
		Model  string
	}

	storageConfig struct {
		Driver                string // fs | azblob
		Dir                   string
		BaseURL               string
		AzureConnectionString string
		Container             string
	}

	uploadConfig struct {
		MaxPDFSize   int64
		MaxImageSize int64
		MaxImages    int
	}

	Config struct {
		Env              string
		Debug            bool
		TestMode         bool
		AppName          string
		Build            string
		WorkDir          string
		SecretKey        string
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridAPIKey   string
		RollbarToken     string

		Server   serverConfig
		Database databaseConfig
		Redis    redisConfig
		GenAI    genaiConfig
		Storage  storageConfig
		Uploads  uploadConfig
	}
)

// Address returns the host:port of the database server.
func (dbc databaseConfig) Address() string {
	if dbc.Port == "" {
		return dbc.Host
	}
	return dbc.Host + ":" + dbc.Port
}

// NewConfig loads the configuration of the current environment (ENV = DEV | TEST | QA | PROD).
// Values come from the environment, prefixed with the environment name (eg. PROD_SECRET_KEY),
// optionally seeded from config/.env.<env>.
func NewConfig() *Config {
	v := viper.New()

	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", env == "DEV" || env == "TEST")
	v.SetDefault("test_mode", env == "TEST")
	v.SetDefault("app_name", "etudier")
	v.SetDefault("build", "dev")
	v.SetDefault("secret_key", "etudier-dev-secret-0c0f6a3e1d6b4f0b9a8c")
	v.SetDefault("frontend_base_url", "http://localhost:3000")
	v.SetDefault("default_from_email", "etudier <noreply@localhost>")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("rollbar_token", "")

	v.SetDefault("server_host", "localhost")
	v.SetDefault("server_address", ":8000")
	v.SetDefault("server_debug_host", ":4000")
	v.SetDefault("server_shutdown_timeout", 5*time.Second)
	v.SetDefault("jwt_expiration_delta", 7*24*time.Hour)
	v.SetDefault("jwt_refresh_expiration_delta", 30*24*time.Hour)
	v.SetDefault("password_reset_timeout_delta", 3*24*time.Hour)
	v.SetDefault("cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("body_limit", "12M")

	v.SetDefault("db_engine", "postgres")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_name", "etudier")
	v.SetDefault("db_user", "etudier")
	v.SetDefault("db_password", "etudier")
	v.SetDefault("db_admin_user", "postgres")
	v.SetDefault("db_admin_password", "postgres")
	v.SetDefault("db_disable_tls", true)

	v.SetDefault("redis_url", "")
	v.SetDefault("redis_change_channel", "etudier:changes")
	v.SetDefault("redis_search_cache_ttl", 6*time.Hour)

	v.SetDefault("genai_api_key", "")
	v.SetDefault("genai_model", "gemini-2.0-flash")

	v.SetDefault("storage_driver", "fs")
	v.SetDefault("storage_dir", filepath.Join(wd, "media"))
	v.SetDefault("storage_base_url", "http://localhost:8000/media")
	v.SetDefault("storage_azure_connection_string", "")
	v.SetDefault("storage_container", "media")

	v.SetDefault("upload_max_pdf_size", 10<<20)
	v.SetDefault("upload_max_image_size", 5<<20)
	v.SetDefault("upload_max_images", 4)

	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	from, err := mail.ParseAddress(v.GetString("default_from_email"))
	if err != nil {
		log.Fatalf("config.default_from_email: %v", err)
	}

	return &Config{
		Env:              env,
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("test_mode"),
		AppName:          v.GetString("app_name"),
		Build:            v.GetString("build"),
		WorkDir:          wd,
		SecretKey:        v.GetString("secret_key"),
		FrontendBaseURL:  strings.TrimRight(v.GetString("frontend_base_url"), "/"),
		DefaultFromEmail: *from,
		SendgridAPIKey:   v.GetString("sendgrid_api_key"),
		RollbarToken:     v.GetString("rollbar_token"),
		Server: serverConfig{
			Host:                      v.GetString("server_host"),
			Address:                   v.GetString("server_address"),
			DebugHost:                 v.GetString("server_debug_host"),
			ShutdownTimeout:           v.GetDuration("server_shutdown_timeout"),
			JWTExpirationDelta:        v.GetDuration("jwt_expiration_delta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwt_refresh_expiration_delta"),
			PasswordResetTimeoutDelta: v.GetDuration("password_reset_timeout_delta"),
			CORSOrigins:               v.GetStringSlice("cors_origins"),
			BodyLimit:                 v.GetString("body_limit"),
		},
		Database: databaseConfig{
			Engine:        v.GetString("db_engine"),
			Host:          v.GetString("db_host"),
			Port:          v.GetString("db_port"),
			Name:          v.GetString("db_name"),
			User:          v.GetString("db_user"),
			Password:      v.GetString("db_password"),
			AdminUser:     v.GetString("db_admin_user"),
			AdminPassword: v.GetString("db_admin_password"),
			DisableTLS:    v.GetBool("db_disable_tls"),
		},
		Redis: redisConfig{
			URL:            v.GetString("redis_url"),
			ChangeChannel:  v.GetString("redis_change_channel"),
			SearchCacheTTL: v.GetDuration("redis_search_cache_ttl"),
		},
		GenAI: genaiConfig{
			APIKey: v.GetString("genai_api_key"),
			Model:  v.GetString("genai_model"),
		},
		Storage: storageConfig{
			Driver:                v.GetString("storage_driver"),
			Dir:                   v.GetString("storage_dir"),
			BaseURL:               strings.TrimRight(v.GetString("storage_base_url"), "/"),
			AzureConnectionString: v.GetString("storage_azure_connection_string"),
			Container:             v.GetString("storage_container"),
		},
		Uploads: uploadConfig{
			MaxPDFSize:   v.GetInt64("upload_max_pdf_size"),
			MaxImageSize: v.GetInt64("upload_max_image_size"),
			MaxImages:    v.GetInt("upload_max_images"),
		},
	}
}
