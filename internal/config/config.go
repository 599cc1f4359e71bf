// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the SQL and key-value stores, channel credentials, upstream
// providers, pipeline limits and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-voice-relay")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the SQL store.
type DBConfig struct {
	Driver      string // sqlite|postgres
	Path        string // SQLite file
	DatabaseURL string // postgres DSN
}

// WhatsAppConfig holds the Twilio credentials used by the WhatsApp channel.
type WhatsAppConfig struct {
	Enabled           bool
	AccountSID        string
	AuthToken         string
	From              string // e.g. "whatsapp:+14155238886"
	APIBase           string
	ValidateSignature bool
	PublicBaseURL     string // externally visible origin used for signature checks
}

// TelegramConfig holds the Bot API settings used by the Telegram channel.
type TelegramConfig struct {
	Enabled       bool
	BotToken      string
	APIBase       string
	WebhookSecret string
}

// ProviderConfig selects and configures the transcription and completion upstreams.
type ProviderConfig struct {
	STT           string // openai|google
	LLM           string // openai|vertex
	OpenAIKey     string
	OpenAIBaseURL string
	WhisperModel  string
	STTLanguage   string
	LLMModel      string
	MaxTokens     int
	Temperature   float64
	GCPProject    string
	GCPLocation   string
	VertexModel   string
	OutboundProxy string // SOCKS5 host:port
}

// RateWindow is a per-channel fixed-window limit.
type RateWindow struct {
	Max    int
	Window time.Duration
}

// PipelineConfig bounds the voice pipeline.
type PipelineConfig struct {
	AgentName         string
	AgentLocale       string
	CacheTTL          time.Duration
	MaxAudioBytes     int64
	MaxVoiceSeconds   int
	TranscribeTimeout time.Duration
	CompleteTimeout   time.Duration
	DeliverTimeout    time.Duration
	DownloadTimeout   time.Duration
	StoreTimeout      time.Duration
	Concurrency       int
	ShutdownGrace     time.Duration
	WhatsAppRate      RateWindow
	TelegramRate      RateWindow
	Dedup             bool
	DedupTTL          time.Duration
	JanitorInterval   time.Duration
}

// ArchiveConfig enables the optional audio and session sinks.
type ArchiveConfig struct {
	AudioBucket   string
	MongoURI      string
	MongoDatabase string
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for admin routes

	// Stores
	DB           DBConfig
	StoreBackend string // sql|redis
	RedisURL     string

	// Channels
	WhatsApp WhatsAppConfig
	Telegram TelegramConfig

	// Upstreams
	Providers ProviderConfig

	// Pipeline
	Pipeline PipelineConfig
	Archive  ArchiveConfig

	// Rate limiting (edge, per client IP)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDB reads only the SQL store settings. Operator tooling uses it so that
// channel secrets are not needed to run migrations or purges.
func LoadDB() (DBConfig, error) {
	db := DBConfig{
		Driver:      strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		Path:        getenv("DB_PATH", "app.db"),
		DatabaseURL: getenv("DATABASE_URL", ""),
	}
	return db, validateDB(db)
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	db, _ := LoadDB()
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Stores
		DB:           db,
		StoreBackend: strings.ToLower(getenv("STORE_BACKEND", "sql")),
		RedisURL:     getenv("REDIS_URL", ""),

		// Channels
		WhatsApp: WhatsAppConfig{
			Enabled:           getbool("WHATSAPP_ENABLED", true),
			AccountSID:        getenv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getenv("TWILIO_AUTH_TOKEN", ""),
			From:              getenv("TWILIO_WHATSAPP_FROM", ""),
			APIBase:           strings.TrimRight(getenv("TWILIO_API_BASE", "https://api.twilio.com"), "/"),
			ValidateSignature: getbool("TWILIO_VALIDATE_SIGNATURE", false),
			PublicBaseURL:     strings.TrimRight(getenv("PUBLIC_BASE_URL", ""), "/"),
		},
		Telegram: TelegramConfig{
			Enabled:       getbool("TELEGRAM_ENABLED", true),
			BotToken:      getenv("TELEGRAM_BOT_TOKEN", ""),
			APIBase:       strings.TrimRight(getenv("TELEGRAM_API_BASE", "https://api.telegram.org"), "/"),
			WebhookSecret: getenv("TELEGRAM_WEBHOOK_SECRET", ""),
		},

		// Upstreams
		Providers: ProviderConfig{
			STT:           strings.ToLower(getenv("STT_PROVIDER", "openai")),
			LLM:           strings.ToLower(getenv("LLM_PROVIDER", "openai")),
			OpenAIKey:     getenv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getenv("OPENAI_BASE_URL", ""),
			WhisperModel:  getenv("WHISPER_MODEL", "whisper-1"),
			STTLanguage:   getenv("STT_LANGUAGE", "en"),
			LLMModel:      getenv("LLM_MODEL", "gpt-4o-mini"),
			MaxTokens:     getint("LLM_MAX_TOKENS", 300),
			Temperature:   getfloat("LLM_TEMPERATURE", 0.7),
			GCPProject:    getenv("GCP_PROJECT", ""),
			GCPLocation:   getenv("GCP_LOCATION", "us-central1"),
			VertexModel:   getenv("VERTEX_MODEL", "gemini-1.5-flash"),
			OutboundProxy: getenv("OUTBOUND_PROXY", ""),
		},

		// Pipeline
		Pipeline: PipelineConfig{
			AgentName:         getenv("AGENT_NAME", "ODIA Agent"),
			AgentLocale:       getenv("AGENT_LOCALE", "Nigerian"),
			CacheTTL:          getdur("CACHE_TTL", 24*time.Hour),
			MaxAudioBytes:     int64(getint("MAX_AUDIO_BYTES", 5*1024*1024)),
			MaxVoiceSeconds:   getint("MAX_VOICE_SECONDS", 120),
			TranscribeTimeout: getdur("TRANSCRIBE_TIMEOUT", 30*time.Second),
			CompleteTimeout:   getdur("COMPLETE_TIMEOUT", 15*time.Second),
			DeliverTimeout:    getdur("DELIVER_TIMEOUT", 10*time.Second),
			DownloadTimeout:   getdur("DOWNLOAD_TIMEOUT", 15*time.Second),
			StoreTimeout:      getdur("STORE_TIMEOUT", 5*time.Second),
			Concurrency:       getint("PIPELINE_CONCURRENCY", 32),
			ShutdownGrace:     getdur("SHUTDOWN_GRACE", 30*time.Second),
			WhatsAppRate: RateWindow{
				Max:    getint("WA_RATE_MAX", 20),
				Window: getdur("WA_RATE_WINDOW", time.Hour),
			},
			TelegramRate: RateWindow{
				Max:    getint("TG_RATE_MAX", 30),
				Window: getdur("TG_RATE_WINDOW", time.Hour),
			},
			Dedup:           getbool("WEBHOOK_DEDUP", false),
			DedupTTL:        getdur("WEBHOOK_DEDUP_TTL", 24*time.Hour),
			JanitorInterval: getdur("JANITOR_INTERVAL", time.Hour),
		},
		Archive: ArchiveConfig{
			AudioBucket:   getenv("AUDIO_ARCHIVE_BUCKET", ""),
			MongoURI:      getenv("MONGO_URI", ""),
			MongoDatabase: getenv("MONGO_DATABASE", "voice_relay"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-voice-relay"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if err := validateDB(cfg.DB); err != nil {
		return cfg, err
	}
	switch cfg.StoreBackend {
	case "sql":
	case "redis":
		if strings.TrimSpace(cfg.RedisURL) == "" {
			return cfg, errors.New("REDIS_URL is required when STORE_BACKEND=redis")
		}
	default:
		return cfg, errors.New("STORE_BACKEND must be one of: sql, redis")
	}
	if err := validateChannels(cfg); err != nil {
		return cfg, err
	}
	if err := validateProviders(cfg.Providers); err != nil {
		return cfg, err
	}
	if err := validatePipeline(cfg.Pipeline); err != nil {
		return cfg, err
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

func validateDB(db DBConfig) error {
	switch db.Driver {
	case "sqlite":
		if strings.TrimSpace(db.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(db.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	return nil
}

func validateChannels(cfg Config) error {
	wa, tg := cfg.WhatsApp, cfg.Telegram
	if !wa.Enabled && !tg.Enabled {
		return errors.New("at least one of WHATSAPP_ENABLED or TELEGRAM_ENABLED must be true")
	}
	if wa.Enabled {
		for k, v := range map[string]string{
			"TWILIO_ACCOUNT_SID":   wa.AccountSID,
			"TWILIO_AUTH_TOKEN":    wa.AuthToken,
			"TWILIO_WHATSAPP_FROM": wa.From,
		} {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s is required when WHATSAPP_ENABLED=true", k)
			}
		}
		if wa.ValidateSignature && wa.PublicBaseURL == "" {
			return errors.New("PUBLIC_BASE_URL is required when TWILIO_VALIDATE_SIGNATURE=true")
		}
	}
	if tg.Enabled && strings.TrimSpace(tg.BotToken) == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required when TELEGRAM_ENABLED=true")
	}
	return nil
}

func validateProviders(p ProviderConfig) error {
	switch p.STT {
	case "openai", "google":
	default:
		return errors.New("STT_PROVIDER must be one of: openai, google")
	}
	switch p.LLM {
	case "openai", "vertex":
	default:
		return errors.New("LLM_PROVIDER must be one of: openai, vertex")
	}
	if (p.STT == "openai" || p.LLM == "openai") && strings.TrimSpace(p.OpenAIKey) == "" {
		return errors.New("OPENAI_API_KEY is required for the openai provider")
	}
	if (p.STT == "google" || p.LLM == "vertex") && strings.TrimSpace(p.GCPProject) == "" {
		return errors.New("GCP_PROJECT is required for the google and vertex providers")
	}
	if p.MaxTokens < 1 {
		return errors.New("LLM_MAX_TOKENS must be >= 1")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return errors.New("LLM_TEMPERATURE must be in [0,2]")
	}
	return nil
}

func validatePipeline(p PipelineConfig) error {
	if p.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be > 0")
	}
	if p.MaxAudioBytes <= 0 {
		return errors.New("MAX_AUDIO_BYTES must be > 0")
	}
	if p.MaxVoiceSeconds < 0 {
		return errors.New("MAX_VOICE_SECONDS must be >= 0")
	}
	if p.TranscribeTimeout <= 0 || p.CompleteTimeout <= 0 || p.DeliverTimeout <= 0 ||
		p.DownloadTimeout <= 0 || p.StoreTimeout <= 0 {
		return errors.New("upstream timeouts must be positive durations")
	}
	if p.Concurrency < 1 {
		return errors.New("PIPELINE_CONCURRENCY must be >= 1")
	}
	if p.ShutdownGrace < 0 {
		return errors.New("SHUTDOWN_GRACE must be >= 0")
	}
	if p.WhatsAppRate.Max < 1 || p.TelegramRate.Max < 1 {
		return errors.New("WA_RATE_MAX and TG_RATE_MAX must be >= 1")
	}
	if p.WhatsAppRate.Window <= 0 || p.TelegramRate.Window <= 0 {
		return errors.New("WA_RATE_WINDOW and TG_RATE_WINDOW must be > 0")
	}
	if p.Dedup && p.DedupTTL <= 0 {
		return errors.New("WEBHOOK_DEDUP_TTL must be > 0")
	}
	if p.JanitorInterval < 0 {
		return errors.New("JANITOR_INTERVAL must be >= 0")
	}
	return nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
