package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig
	DB      DBConfig
	JWT     JWTConfig
	S3      S3Config
	Log     LogConfig
	CORS    CORSConfig
	Flags   FlagsConfig
	Tiers   TierConfig
	Routing RoutingConfig
	Engines EnginesConfig
	QA      QAConfig
}

// FlagsConfig holds the process-wide guardrail flags for the expensive engine.
type FlagsConfig struct {
	AdobeEnabled          bool    `mapstructure:"adobe_enabled" json:"adobe_enabled"`
	PremiumOnly           bool    `mapstructure:"premium_only" json:"premium_only"`
	ConfidenceThreshold   float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	MaxPagesPerDoc        int     `mapstructure:"max_pages_per_doc" json:"max_pages_per_doc"`
	MaxDocsPerUserPerDay  int     `mapstructure:"max_docs_per_user_per_day" json:"max_docs_per_user_per_day"`
	MaxPagesPerUserPerDay int     `mapstructure:"max_pages_per_user_per_day" json:"max_pages_per_user_per_day"`
	QAStrictMode          bool    `mapstructure:"qa_strict_mode" json:"qa_strict_mode"`
	AutoFallbackOnFailure bool    `mapstructure:"auto_fallback_on_failure" json:"auto_fallback_on_failure"`
	RetryOnFailure        bool    `mapstructure:"retry_on_failure" json:"retry_on_failure"`
}

// TierConfig holds free and premium admission limits.
type TierConfig struct {
	FreeMaxPages      int     `mapstructure:"free_max_pages"`
	FreeMaxBytes      int64   `mapstructure:"free_max_bytes"`
	PremiumMinCredits float64 `mapstructure:"premium_min_credits"`
	PremiumMaxPages   int     `mapstructure:"premium_max_pages"`
	PremiumMaxBytes   int64   `mapstructure:"premium_max_bytes"`
}

// RoutingConfig holds document classification settings.
type RoutingConfig struct {
	FormKeywords     []string `mapstructure:"form_keywords"`
	FormMaxPages     int      `mapstructure:"form_max_pages"`
	FormMaxTables    int      `mapstructure:"form_max_tables"`
	ProbeTimeoutSecs int      `mapstructure:"probe_timeout_secs"`
}

// EngineConfig holds settings for a single external conversion engine.
type EngineConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	APIKey           string `mapstructure:"api_key"`
	ClientID         string `mapstructure:"client_id"`
	Binary           string `mapstructure:"binary"`
	TimeoutSecs      int    `mapstructure:"timeout_secs"`
	PollIntervalSecs int    `mapstructure:"poll_interval_secs"`

	// RequestsPerSecond caps outbound calls to the engine. Zero means unlimited.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Timeout returns the configured bound on one engine call.
func (e *EngineConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// PollInterval returns the configured job polling interval.
func (e *EngineConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSecs) * time.Second
}

// EnginesConfig groups the conversion engine settings.
type EnginesConfig struct {
	LibreOffice EngineConfig `mapstructure:"libreoffice"`
	DocAI       EngineConfig `mapstructure:"docai"`
	Adobe       EngineConfig `mapstructure:"adobe"`
}

// QAConfig holds QA validator settings.
type QAConfig struct {
	HistorySize int `mapstructure:"history_size"`
	MaxRows     int `mapstructure:"max_rows"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              string        `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ConversionTimeout time.Duration `mapstructure:"conversion_timeout"`
	Environment       string        `mapstructure:"environment"`
	MaxUploadMB       int64         `mapstructure:"max_upload_mb"`
}

// deliveryHeadroom is kept between the conversion deadline and the write
// deadline for storing, charging and writing the response.
const deliveryHeadroom = 30 * time.Second

// ConversionDeadline is the time a conversion request may spend before it
// must stop. It always ends before the write deadline so a charged result
// can still be written. Zero means no deadline.
func (s ServerConfig) ConversionDeadline() time.Duration {
	d := s.ConversionTimeout
	if s.WriteTimeout <= 0 {
		return d
	}
	limit := s.WriteTimeout - deliveryHeadroom
	if s.WriteTimeout <= 2*deliveryHeadroom {
		limit = s.WriteTimeout / 2
	}
	if d <= 0 || d > limit {
		return limit
	}
	return d
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// JWTConfig holds the settings used to verify tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// S3Config holds AWS S3 settings for conversion artifacts.
type S3Config struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the CONVERTFLOW_ prefix.
// Guardrail flags additionally honor their bare names (ADOBE_ENABLED, QA_STRICT_MODE, ...).
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CONVERTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "360s")
	v.SetDefault("server.conversion_timeout", "300s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 100)

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "convertflow")
	v.SetDefault("db.password", "convertflow_secret")
	v.SetDefault("db.name", "convertflow_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// JWT defaults
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.issuer", "convertflow-auth")

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket", "convertflow-artifacts")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Guardrail flags. The expensive engine is off unless explicitly enabled.
	v.SetDefault("flags.adobe_enabled", false)
	v.SetDefault("flags.premium_only", true)
	v.SetDefault("flags.confidence_threshold", 0.85)
	v.SetDefault("flags.max_pages_per_doc", 50)
	v.SetDefault("flags.max_docs_per_user_per_day", 20)
	v.SetDefault("flags.max_pages_per_user_per_day", 200)
	v.SetDefault("flags.qa_strict_mode", false)
	v.SetDefault("flags.auto_fallback_on_failure", true)
	v.SetDefault("flags.retry_on_failure", false)

	// Tier limits
	v.SetDefault("tiers.free_max_pages", 1)
	v.SetDefault("tiers.free_max_bytes", 2*1024*1024)
	v.SetDefault("tiers.premium_min_credits", 30)
	v.SetDefault("tiers.premium_max_pages", 100)
	v.SetDefault("tiers.premium_max_bytes", 100*1024*1024)

	// Routing
	v.SetDefault("routing.form_keywords", "invoice,form,application,receipt,statement,register,schedule,order")
	v.SetDefault("routing.form_max_pages", 2)
	v.SetDefault("routing.form_max_tables", 3)
	v.SetDefault("routing.probe_timeout_secs", 60)

	// Engines
	v.SetDefault("engines.libreoffice.binary", "soffice")
	v.SetDefault("engines.libreoffice.timeout_secs", 120)
	v.SetDefault("engines.docai.endpoint", "")
	v.SetDefault("engines.docai.api_key", "")
	v.SetDefault("engines.docai.timeout_secs", 120)
	v.SetDefault("engines.docai.requests_per_second", 10)
	v.SetDefault("engines.docai.burst", 10)
	v.SetDefault("engines.adobe.endpoint", "https://pdf-services.adobe.io")
	v.SetDefault("engines.adobe.api_key", "")
	v.SetDefault("engines.adobe.client_id", "")
	v.SetDefault("engines.adobe.timeout_secs", 300)
	v.SetDefault("engines.adobe.poll_interval_secs", 5)
	v.SetDefault("engines.adobe.requests_per_second", 2)
	v.SetDefault("engines.adobe.burst", 2)

	// QA
	v.SetDefault("qa.history_size", 1000)
	v.SetDefault("qa.max_rows", 500)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string][]string{
		"server.port":                       {"CONVERTFLOW_SERVER_PORT"},
		"server.read_timeout":               {"CONVERTFLOW_SERVER_READ_TIMEOUT"},
		"server.write_timeout":              {"CONVERTFLOW_SERVER_WRITE_TIMEOUT"},
		"server.conversion_timeout":         {"CONVERTFLOW_SERVER_CONVERSION_TIMEOUT"},
		"server.environment":                {"CONVERTFLOW_SERVER_ENVIRONMENT"},
		"server.max_upload_mb":              {"CONVERTFLOW_SERVER_MAX_UPLOAD_MB"},
		"db.host":                           {"CONVERTFLOW_DB_HOST"},
		"db.port":                           {"CONVERTFLOW_DB_PORT"},
		"db.user":                           {"CONVERTFLOW_DB_USER"},
		"db.password":                       {"CONVERTFLOW_DB_PASSWORD"},
		"db.name":                           {"CONVERTFLOW_DB_NAME"},
		"db.sslmode":                        {"CONVERTFLOW_DB_SSLMODE"},
		"db.max_open":                       {"CONVERTFLOW_DB_MAX_OPEN"},
		"db.max_idle":                       {"CONVERTFLOW_DB_MAX_IDLE"},
		"jwt.secret":                        {"CONVERTFLOW_JWT_SECRET"},
		"jwt.issuer":                        {"CONVERTFLOW_JWT_ISSUER"},
		"s3.region":                         {"CONVERTFLOW_S3_REGION"},
		"s3.bucket":                         {"CONVERTFLOW_S3_BUCKET"},
		"s3.endpoint":                       {"CONVERTFLOW_S3_ENDPOINT"},
		"s3.access_key":                     {"CONVERTFLOW_S3_ACCESS_KEY"},
		"s3.secret_key":                     {"CONVERTFLOW_S3_SECRET_KEY"},
		"s3.presign_expiry":                 {"CONVERTFLOW_S3_PRESIGN_EXPIRY"},
		"log.level":                         {"CONVERTFLOW_LOG_LEVEL"},
		"log.format":                        {"CONVERTFLOW_LOG_FORMAT"},
		"cors.allowed_origins":              {"CONVERTFLOW_CORS_ALLOWED_ORIGINS"},
		"flags.adobe_enabled":               {"CONVERTFLOW_FLAGS_ADOBE_ENABLED", "ADOBE_ENABLED"},
		"flags.premium_only":                {"CONVERTFLOW_FLAGS_PREMIUM_ONLY", "ADOBE_PREMIUM_ONLY"},
		"flags.confidence_threshold":        {"CONVERTFLOW_FLAGS_CONFIDENCE_THRESHOLD", "ADOBE_CONFIDENCE_THRESHOLD"},
		"flags.max_pages_per_doc":           {"CONVERTFLOW_FLAGS_MAX_PAGES_PER_DOC", "ADOBE_MAX_PAGES_PER_DOC"},
		"flags.max_docs_per_user_per_day":   {"CONVERTFLOW_FLAGS_MAX_DOCS_PER_USER_PER_DAY", "ADOBE_MAX_DOCS_PER_USER_PER_DAY"},
		"flags.max_pages_per_user_per_day":  {"CONVERTFLOW_FLAGS_MAX_PAGES_PER_USER_PER_DAY", "ADOBE_MAX_PAGES_PER_USER_PER_DAY"},
		"flags.qa_strict_mode":              {"CONVERTFLOW_FLAGS_QA_STRICT_MODE", "QA_STRICT_MODE"},
		"flags.auto_fallback_on_failure":    {"CONVERTFLOW_FLAGS_AUTO_FALLBACK_ON_FAILURE", "AUTO_FALLBACK_ON_FAILURE"},
		"flags.retry_on_failure":            {"CONVERTFLOW_FLAGS_RETRY_ON_FAILURE", "RETRY_ON_FAILURE"},
		"tiers.free_max_pages":              {"CONVERTFLOW_TIERS_FREE_MAX_PAGES"},
		"tiers.free_max_bytes":              {"CONVERTFLOW_TIERS_FREE_MAX_BYTES"},
		"tiers.premium_min_credits":         {"CONVERTFLOW_TIERS_PREMIUM_MIN_CREDITS"},
		"tiers.premium_max_pages":           {"CONVERTFLOW_TIERS_PREMIUM_MAX_PAGES"},
		"tiers.premium_max_bytes":           {"CONVERTFLOW_TIERS_PREMIUM_MAX_BYTES"},
		"routing.form_keywords":             {"CONVERTFLOW_ROUTING_FORM_KEYWORDS"},
		"routing.form_max_pages":            {"CONVERTFLOW_ROUTING_FORM_MAX_PAGES"},
		"routing.form_max_tables":           {"CONVERTFLOW_ROUTING_FORM_MAX_TABLES"},
		"routing.probe_timeout_secs":        {"CONVERTFLOW_ROUTING_PROBE_TIMEOUT_SECS"},
		"engines.libreoffice.binary":        {"CONVERTFLOW_ENGINES_LIBREOFFICE_BINARY"},
		"engines.libreoffice.timeout_secs":  {"CONVERTFLOW_ENGINES_LIBREOFFICE_TIMEOUT_SECS"},
		"engines.docai.endpoint":            {"CONVERTFLOW_ENGINES_DOCAI_ENDPOINT"},
		"engines.docai.api_key":             {"CONVERTFLOW_ENGINES_DOCAI_API_KEY"},
		"engines.docai.timeout_secs":        {"CONVERTFLOW_ENGINES_DOCAI_TIMEOUT_SECS"},
		"engines.docai.requests_per_second": {"CONVERTFLOW_ENGINES_DOCAI_REQUESTS_PER_SECOND"},
		"engines.docai.burst":               {"CONVERTFLOW_ENGINES_DOCAI_BURST"},
		"engines.adobe.endpoint":            {"CONVERTFLOW_ENGINES_ADOBE_ENDPOINT"},
		"engines.adobe.api_key":             {"CONVERTFLOW_ENGINES_ADOBE_API_KEY"},
		"engines.adobe.client_id":           {"CONVERTFLOW_ENGINES_ADOBE_CLIENT_ID"},
		"engines.adobe.timeout_secs":        {"CONVERTFLOW_ENGINES_ADOBE_TIMEOUT_SECS"},
		"engines.adobe.poll_interval_secs":  {"CONVERTFLOW_ENGINES_ADOBE_POLL_INTERVAL_SECS"},
		"engines.adobe.requests_per_second": {"CONVERTFLOW_ENGINES_ADOBE_REQUESTS_PER_SECOND"},
		"engines.adobe.burst":               {"CONVERTFLOW_ENGINES_ADOBE_BURST"},
		"qa.history_size":                   {"CONVERTFLOW_QA_HISTORY_SIZE"},
		"qa.max_rows":                       {"CONVERTFLOW_QA_MAX_ROWS"},
	}
	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	cfg := &Config{}

	// Railway/Heroku/Render set a PORT env var. Use it if CONVERTFLOW_SERVER_PORT is not explicitly set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("CONVERTFLOW_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:              serverPort,
		ReadTimeout:       v.GetDuration("server.read_timeout"),
		WriteTimeout:      v.GetDuration("server.write_timeout"),
		ConversionTimeout: v.GetDuration("server.conversion_timeout"),
		Environment:       v.GetString("server.environment"),
		MaxUploadMB:       v.GetInt64("server.max_upload_mb"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.JWT = JWTConfig{
		Secret: v.GetString("jwt.secret"),
		Issuer: v.GetString("jwt.issuer"),
	}
	cfg.S3 = S3Config{
		Region:        v.GetString("s3.region"),
		Bucket:        v.GetString("s3.bucket"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{
		AllowedOrigins: splitCSV(v.GetString("cors.allowed_origins")),
	}

	cfg.Flags = FlagsConfig{
		AdobeEnabled:          v.GetBool("flags.adobe_enabled"),
		PremiumOnly:           v.GetBool("flags.premium_only"),
		ConfidenceThreshold:   v.GetFloat64("flags.confidence_threshold"),
		MaxPagesPerDoc:        v.GetInt("flags.max_pages_per_doc"),
		MaxDocsPerUserPerDay:  v.GetInt("flags.max_docs_per_user_per_day"),
		MaxPagesPerUserPerDay: v.GetInt("flags.max_pages_per_user_per_day"),
		QAStrictMode:          v.GetBool("flags.qa_strict_mode"),
		AutoFallbackOnFailure: v.GetBool("flags.auto_fallback_on_failure"),
		RetryOnFailure:        v.GetBool("flags.retry_on_failure"),
	}

	cfg.Tiers = TierConfig{
		FreeMaxPages:      v.GetInt("tiers.free_max_pages"),
		FreeMaxBytes:      v.GetInt64("tiers.free_max_bytes"),
		PremiumMinCredits: v.GetFloat64("tiers.premium_min_credits"),
		PremiumMaxPages:   v.GetInt("tiers.premium_max_pages"),
		PremiumMaxBytes:   v.GetInt64("tiers.premium_max_bytes"),
	}

	cfg.Routing = RoutingConfig{
		FormKeywords:     splitCSV(v.GetString("routing.form_keywords")),
		FormMaxPages:     v.GetInt("routing.form_max_pages"),
		FormMaxTables:    v.GetInt("routing.form_max_tables"),
		ProbeTimeoutSecs: v.GetInt("routing.probe_timeout_secs"),
	}

	cfg.Engines = EnginesConfig{
		LibreOffice: EngineConfig{
			Binary:      v.GetString("engines.libreoffice.binary"),
			TimeoutSecs: v.GetInt("engines.libreoffice.timeout_secs"),
		},
		DocAI: EngineConfig{
			Endpoint:          v.GetString("engines.docai.endpoint"),
			APIKey:            v.GetString("engines.docai.api_key"),
			TimeoutSecs:       v.GetInt("engines.docai.timeout_secs"),
			RequestsPerSecond: v.GetFloat64("engines.docai.requests_per_second"),
			Burst:             v.GetInt("engines.docai.burst"),
		},
		Adobe: EngineConfig{
			Endpoint:          v.GetString("engines.adobe.endpoint"),
			APIKey:            v.GetString("engines.adobe.api_key"),
			ClientID:          v.GetString("engines.adobe.client_id"),
			TimeoutSecs:       v.GetInt("engines.adobe.timeout_secs"),
			PollIntervalSecs:  v.GetInt("engines.adobe.poll_interval_secs"),
			RequestsPerSecond: v.GetFloat64("engines.adobe.requests_per_second"),
			Burst:             v.GetInt("engines.adobe.burst"),
		},
	}

	cfg.QA = QAConfig{
		HistorySize: v.GetInt("qa.history_size"),
		MaxRows:     v.GetInt("qa.max_rows"),
	}

	return cfg, nil
}

// DefaultFlags returns the flag values used when no environment override is present.
func DefaultFlags() FlagsConfig {
	return FlagsConfig{
		AdobeEnabled:          false,
		PremiumOnly:           true,
		ConfidenceThreshold:   0.85,
		MaxPagesPerDoc:        50,
		MaxDocsPerUserPerDay:  20,
		MaxPagesPerUserPerDay: 200,
		QAStrictMode:          false,
		AutoFallbackOnFailure: true,
		RetryOnFailure:        false,
	}
}

// DefaultTiers returns the built-in free and premium limits.
func DefaultTiers() TierConfig {
	return TierConfig{
		FreeMaxPages:      1,
		FreeMaxBytes:      2 * 1024 * 1024,
		PremiumMinCredits: 30,
		PremiumMaxPages:   100,
		PremiumMaxBytes:   100 * 1024 * 1024,
	}
}

// InitLogger builds the process logger from cfg.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("config: parse log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("config: build logger: %w", err)
	}
	return logger, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
