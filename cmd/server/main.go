// Command server runs the voice relay: provider webhooks, the background
// pipeline and the admin API.
//
// @title       Voice Relay API
// @version     2.1.0
// @description Webhooks for WhatsApp (Twilio) and Telegram voice notes, plus the read-only admin API.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	_ "github.com/tbourn/go-voice-relay/docs"
	"github.com/tbourn/go-voice-relay/internal/archive"
	"github.com/tbourn/go-voice-relay/internal/channels"
	"github.com/tbourn/go-voice-relay/internal/config"
	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/events"
	httpapi "github.com/tbourn/go-voice-relay/internal/http"
	"github.com/tbourn/go-voice-relay/internal/http/handlers"
	"github.com/tbourn/go-voice-relay/internal/observability"
	"github.com/tbourn/go-voice-relay/internal/providers"
	"github.com/tbourn/go-voice-relay/internal/providers/llm"
	"github.com/tbourn/go-voice-relay/internal/providers/stt"
	"github.com/tbourn/go-voice-relay/internal/redisstore"
	"github.com/tbourn/go-voice-relay/internal/repo"
	"github.com/tbourn/go-voice-relay/internal/services"
	"github.com/tbourn/go-voice-relay/internal/sysutil"
)

func main() {
	envFile := pflag.StringP("env-file", "e", ".env", "env file to load before reading configuration")
	migrateOnly := pflag.Bool("migrate-only", false, "run database migrations and exit")
	pflag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "env file %s: %v\n", *envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	setupLogging(cfg)

	if err := run(cfg, *migrateOnly); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func setupLogging(cfg config.Config) {
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var out io.Writer = os.Stdout
	if cfg.LogPretty && !sysutil.IsTruthy(os.Getenv("NO_COLOR")) {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().
		Str("service", sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "go-voice-relay")).
		Logger()
}

func run(cfg config.Config, migrateOnly bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, handlers.Version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		if err := observability.ShutdownWithin(shutdownOTel, 5*time.Second); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.Path, cfg.DB.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if migrateOnly {
		log.Info().Str("driver", cfg.DB.Driver).Msg("migrations applied")
		return nil
	}
	sqlStore := repo.NewSQLStore(db)

	// Cache entries and rate counters move to Redis when configured; sessions,
	// system logs and delivery claims always stay in SQL.
	var cacheStore services.CacheStore = sqlStore
	var counterStore services.CounterStore = sqlStore
	if cfg.StoreBackend == "redis" {
		rdb, err := redisstore.Open(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		rs := redisstore.New(rdb, "")
		cacheStore, counterStore = rs, rs
	}

	httpClient, err := providers.NewHTTPClient(cfg.Providers.OutboundProxy, 2*time.Minute)
	if err != nil {
		return err
	}

	transcriber, closeSTT, err := newTranscriber(ctx, cfg.Providers, httpClient)
	if err != nil {
		return fmt.Errorf("transcription provider: %w", err)
	}
	defer closeSTT()
	completer, closeLLM, err := newCompleter(ctx, cfg.Providers, httpClient)
	if err != nil {
		return fmt.Errorf("completion provider: %w", err)
	}
	defer closeLLM()

	pcfg := cfg.Pipeline
	chans := map[domain.Platform]services.Channel{}
	var wa *channels.WhatsApp
	var tg *channels.Telegram
	if cfg.WhatsApp.Enabled {
		wa = &channels.WhatsApp{
			AccountSID: cfg.WhatsApp.AccountSID,
			AuthToken:  cfg.WhatsApp.AuthToken,
			From:       cfg.WhatsApp.From,
			APIBase:    cfg.WhatsApp.APIBase,
			MaxBytes:   pcfg.MaxAudioBytes,
			HTTP:       httpClient,
		}
		chans[domain.PlatformWhatsApp] = wa
	}
	if cfg.Telegram.Enabled {
		tg = &channels.Telegram{
			Token:       cfg.Telegram.BotToken,
			APIBase:     cfg.Telegram.APIBase,
			MaxBytes:    pcfg.MaxAudioBytes,
			MaxDuration: pcfg.MaxVoiceSeconds,
			HTTP:        httpClient,
		}
		chans[domain.PlatformTelegram] = tg
	}

	hub := events.NewHub(originChecker(cfg.CORS.AllowedOrigins))
	pipeline := &services.Pipeline{
		Channels: chans,
		Limiter: &services.RateLimiter{
			Counters: counterStore,
			Policies: map[domain.Platform]services.Policy{
				domain.PlatformWhatsApp: {Max: pcfg.WhatsAppRate.Max, Window: pcfg.WhatsAppRate.Window},
				domain.PlatformTelegram: {Max: pcfg.TelegramRate.Max, Window: pcfg.TelegramRate.Window},
			},
			Timeout: pcfg.StoreTimeout,
		},
		Cache:       &services.ResponseCache{Backend: cacheStore, TTL: pcfg.CacheTTL, Timeout: pcfg.StoreTimeout},
		Transcriber: transcriber,
		Completer:   completer,
		Sessions:    sqlStore,
		Reporter:    &services.StoreReporter{Logs: sqlStore, Timeout: pcfg.StoreTimeout},
		Prompter:    services.Prompter{AgentName: pcfg.AgentName, Locale: pcfg.AgentLocale},
		Costs:       services.DefaultCostModel,
		Timeouts: services.Timeouts{
			Download:   pcfg.DownloadTimeout,
			Transcribe: pcfg.TranscribeTimeout,
			Complete:   pcfg.CompleteTimeout,
			Deliver:    pcfg.DeliverTimeout,
			Store:      pcfg.StoreTimeout,
		},
		MaxAudioBytes: pcfg.MaxAudioBytes,
		Publisher:     hub,
	}

	if bucket := cfg.Archive.AudioBucket; bucket != "" {
		a, err := archive.NewGCSArchiver(ctx, bucket)
		if err != nil {
			return fmt.Errorf("audio archive: %w", err)
		}
		defer a.Close()
		pipeline.Archiver = a
	}
	if uri := cfg.Archive.MongoURI; uri != "" {
		mc, err := archive.ConnectMongo(ctx, uri)
		if err != nil {
			return fmt.Errorf("session mirror: %w", err)
		}
		defer func() { _ = mc.Disconnect(context.Background()) }()
		pipeline.Mirror = archive.NewMongoMirror(mc.Database(cfg.Archive.MongoDatabase))
	}

	dispatcher := services.NewDispatcher(ctx, pipeline, pcfg.Concurrency)

	webhooks := &handlers.WebhookHandler{Dispatch: dispatcher, ReplyTimeout: pcfg.DeliverTimeout}
	if wa != nil {
		webhooks.WhatsApp = wa
	}
	if tg != nil {
		webhooks.Telegram = tg
	}
	deps := httpapi.Deps{
		Webhooks: webhooks,
		Admin:    &handlers.AdminHandler{Svc: &services.AdminService{Store: sqlStore}},
		Events:   hub,
	}
	if pcfg.Dedup {
		dedup := &services.Deduper{Store: sqlStore, TTL: pcfg.DedupTTL, Timeout: pcfg.StoreTimeout}
		webhooks.Dedup = dedup
		deps.Idempotency = func(ctx context.Context, key string) (bool, error) {
			return dedup.Duplicate(ctx, domain.PlatformWhatsApp, "idem:"+key), nil
		}
	}

	keep := pcfg.WhatsAppRate.Window
	if pcfg.TelegramRate.Window > keep {
		keep = pcfg.TelegramRate.Window
	}
	janitor := &services.Janitor{Store: sqlStore, Interval: pcfg.JanitorInterval, Keep: keep}
	go janitor.Run(ctx)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, deps)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Bool("whatsapp", cfg.WhatsApp.Enabled).
			Bool("telegram", cfg.Telegram.Enabled).
			Str("stt", cfg.Providers.STT).
			Str("llm", cfg.Providers.LLM).
			Str("store", cfg.StoreBackend).
			Str("twilio_sid", sysutil.MaskSecret(cfg.WhatsApp.AccountSID)).
			Str("telegram_token", sysutil.MaskSecret(cfg.Telegram.BotToken)).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), pcfg.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	// In-flight runs get the rest of the grace period to deliver.
	if err := dispatcher.Wait(shCtx); err != nil {
		log.Warn().Err(err).Msg("pipeline runs still in flight at shutdown")
	}
	return nil
}

// originChecker restricts the live feed to the CORS allowlist when one is set.
func originChecker(origins []string) func(*http.Request) bool {
	if len(origins) == 0 {
		return nil
	}
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := allowed[r.Header.Get("Origin")]
		return ok
	}
}

func newTranscriber(ctx context.Context, p config.ProviderConfig, hc *http.Client) (services.Transcriber, func(), error) {
	switch p.STT {
	case "google":
		g, err := stt.NewGoogleSpeech(ctx, p.STTLanguage)
		if err != nil {
			return nil, nil, err
		}
		return g, func() { _ = g.Close() }, nil
	default:
		w, err := stt.NewWhisper(stt.WhisperConfig{
			APIKey:   p.OpenAIKey,
			BaseURL:  p.OpenAIBaseURL,
			Model:    p.WhisperModel,
			Language: p.STTLanguage,
		}, hc)
		if err != nil {
			return nil, nil, err
		}
		return w, func() {}, nil
	}
}

func newCompleter(ctx context.Context, p config.ProviderConfig, hc *http.Client) (services.Completer, func(), error) {
	switch p.LLM {
	case "vertex":
		v, err := llm.NewVertex(ctx, llm.VertexConfig{
			Project:     p.GCPProject,
			Location:    p.GCPLocation,
			Model:       p.VertexModel,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		})
		if err != nil {
			return nil, nil, err
		}
		return v, func() { _ = v.Close() }, nil
	default:
		c, err := llm.NewChat(llm.ChatConfig{
			APIKey:      p.OpenAIKey,
			BaseURL:     p.OpenAIBaseURL,
			Model:       p.LLMModel,
			MaxTokens:   p.MaxTokens,
			Temperature: p.Temperature,
		}, hc)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}
}
