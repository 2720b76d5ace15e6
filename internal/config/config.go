package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
		AllowedOrigins  []string      `yaml:"allowedOrigins"`
		RateLimitRPS    float64       `yaml:"rateLimitRPS"`
		RateLimitBurst  int           `yaml:"rateLimitBurst"`
		MaxUploadMB     int64         `yaml:"maxUploadMB"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
		Migrate  bool   `yaml:"migrate"`
	} `yaml:"database"`

	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey  string `yaml:"apiKey"`
		Model   string `yaml:"model"`
		BaseURL string `yaml:"baseURL"`
	} `yaml:"openai"`

	Redis struct {
		Enabled  bool          `yaml:"enabled"`
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		PlanTTL  time.Duration `yaml:"planTTL"`
		Channel  string        `yaml:"channel"`
	} `yaml:"redis"`

	Transferegov struct {
		Enabled    bool          `yaml:"enabled"`
		BaseURL    string        `yaml:"baseURL"`
		Timeout    time.Duration `yaml:"timeout"`
		RatePerSec float64       `yaml:"ratePerSec"`
		Burst      int           `yaml:"burst"`
		RetryCount int           `yaml:"retryCount"`
		RetryDelay time.Duration `yaml:"retryDelay"`
	} `yaml:"transferegov"`

	News struct {
		Enabled  bool          `yaml:"enabled"`
		BaseURL  string        `yaml:"baseURL"`
		Timeout  time.Duration `yaml:"timeout"`
		Limit    int           `yaml:"limit"`
		DaysBack int           `yaml:"daysBack"`
	} `yaml:"news"`

	Ceis struct {
		Enabled    bool          `yaml:"enabled"`
		BaseURL    string        `yaml:"baseURL"`
		APIKey     string        `yaml:"apiKey"`
		Timeout    time.Duration `yaml:"timeout"`
		RatePerSec float64       `yaml:"ratePerSec"`
	} `yaml:"ceis"`

	Analysis struct {
		ToleranceKM       float64       `yaml:"toleranceKM"`
		CapitalFallback   bool          `yaml:"capitalFallback"`
		EnrichmentTimeout time.Duration `yaml:"enrichmentTimeout"`
		BatchConcurrency  int           `yaml:"batchConcurrency"`
		BatchItemTimeout  time.Duration `yaml:"batchItemTimeout"`
	} `yaml:"analysis"`
}

// Default returns a config usable for local development.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RateLimitRPS = 20
	c.Server.RateLimitBurst = 40
	c.Server.MaxUploadMB = 20
	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Database.Driver = "postgres"
	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.Name = "vigia"
	c.Database.SSLMode = "disable"
	c.Ledger.Path = "data/ledger.db"
	c.Minio.BucketName = "vigia-evidence"
	c.Minio.Region = "us-east-1"
	c.OpenAI.Model = "gpt-4o-mini"
	c.Redis.Addr = "localhost:6379"
	c.Redis.PlanTTL = time.Hour
	c.Transferegov.Timeout = 10 * time.Second
	c.Transferegov.RatePerSec = 2
	c.Transferegov.Burst = 4
	c.Transferegov.RetryCount = 3
	c.Transferegov.RetryDelay = time.Second
	c.News.Timeout = 10 * time.Second
	c.News.Limit = 10
	c.News.DaysBack = 365
	c.Ceis.BaseURL = "https://api.portaldatransparencia.gov.br/api-de-dados"
	c.Ceis.Timeout = 10 * time.Second
	c.Ceis.RatePerSec = 1
	c.Analysis.ToleranceKM = 10
	c.Analysis.CapitalFallback = true
	c.Analysis.EnrichmentTimeout = 8 * time.Second
	c.Analysis.BatchConcurrency = 5
	c.Analysis.BatchItemTimeout = 10 * time.Second
	return &c
}

// Load baca file config.yaml di atas defaults, lalu override secrets dari env
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("DATABASE_PASSWORD", &c.Database.Password)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("MINIO_SECRET_KEY", &c.Minio.SecretKey)
	str("LEDGER_PATH", &c.Ledger.Path)
	str("CEIS_API_KEY", &c.Ceis.APIKey)
	if v, ok := lookup("PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or mysql, got %q", c.Database.Driver))
	}
	if c.Database.Host == "" || c.Database.Name == "" {
		errs = append(errs, errors.New("database.host and database.name are required"))
	}
	if c.Ledger.Path == "" {
		errs = append(errs, errors.New("ledger.path is required"))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required when minio is enabled"))
	}
	if c.News.Enabled {
		if _, err := url.ParseRequestURI(c.News.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("news.baseURL: %w", err))
		}
	}
	if c.Ceis.Enabled && c.Ceis.APIKey == "" {
		errs = append(errs, errors.New("ceis.apiKey is required when ceis is enabled"))
	}
	if c.Analysis.ToleranceKM < 0 {
		errs = append(errs, errors.New("analysis.toleranceKM must not be negative"))
	}
	if c.Analysis.BatchConcurrency < 0 {
		errs = append(errs, errors.New("analysis.batchConcurrency must not be negative"))
	}
	return errors.Join(errs...)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// Helper untuk build DSN Postgres
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     "/" + c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
