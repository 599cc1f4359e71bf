// Package services – Pipeline
//
// Pipeline is the single orchestrator behind every channel: it admits a
// voice event, acknowledges it, fetches and transcribes the audio, answers
// from the response cache or the completion upstream, delivers the formatted
// reply and appends a session record. Channel differences live behind the
// Channel interface and its optional MessageEditor capability.
//
// Failure policy: expected stops (rate limit, oversize or overlong audio,
// empty transcription) produce a specific notice; anything else produces the
// generic notice plus a system log entry. Handle never returns an error to
// the caller and never panics.

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// DefaultMaxAudioBytes applies to channels that declare no cap of their own.
const DefaultMaxAudioBytes int64 = 5 * 1024 * 1024

// ChannelProfile carries the per-channel variations of the pipeline.
type ChannelProfile struct {
	Name               string // human name used in the system prompt
	Footer             string
	MaxAudioBytes      int64 // 0 = pipeline default
	MaxDurationSeconds int   // 0 = unchecked
	ProgressUpdates    bool  // edit the placeholder between stages
}

// Channel is a messaging provider adapter.
type Channel interface {
	Platform() domain.Platform
	Profile() ChannelProfile
	// Download resolves ref to audio bytes. Implementations must stop reading
	// past maxBytes and return ErrAudioTooLarge.
	Download(ctx context.Context, ref string, maxBytes int64) ([]byte, error)
	// Send posts text to chatID and returns a handle usable with Edit.
	Send(ctx context.Context, chatID, text string) (string, error)
}

// MessageEditor is implemented by channels that can replace a sent message.
type MessageEditor interface {
	Edit(ctx context.Context, chatID, handle, text string) error
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, contentType string) (string, error)
}

// Completer produces a reply for userText under systemPrompt.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Admitter decides rate-limit admission.
type Admitter interface {
	Admit(ctx context.Context, user string, platform domain.Platform) bool
}

// ReplyCache is the response cache seen by the pipeline.
type ReplyCache interface {
	Lookup(ctx context.Context, normalized string) (string, bool)
	Store(ctx context.Context, normalized, reply string) error
}

// AudioArchiver stores raw audio and returns its location.
type AudioArchiver interface {
	Archive(ctx context.Context, platform domain.Platform, audio []byte, contentType string) (string, error)
}

// SessionMirror receives a copy of each persisted session.
type SessionMirror interface {
	Mirror(ctx context.Context, rec *domain.VoiceSession) error
}

// EventPublisher fans finished-run events out to live observers.
type EventPublisher interface {
	Publish(ev domain.PipelineEvent)
}

// Timeouts bound each upstream call. Zero means no bound.
type Timeouts struct {
	Download   time.Duration
	Transcribe time.Duration
	Complete   time.Duration
	Deliver    time.Duration
	Store      time.Duration
}

// DefaultTimeouts are the recommended per-upstream bounds.
var DefaultTimeouts = Timeouts{
	Download:   15 * time.Second,
	Transcribe: 30 * time.Second,
	Complete:   15 * time.Second,
	Deliver:    10 * time.Second,
	Store:      5 * time.Second,
}

// Result is the terminal state of one run.
type Result struct {
	Outcome   domain.Outcome
	CacheHit  bool
	SessionID string
	Err       error
}

// Pipeline orchestrates one voice event end to end.
type Pipeline struct {
	Channels    map[domain.Platform]Channel
	Limiter     Admitter
	Cache       ReplyCache
	Transcriber Transcriber
	Completer   Completer
	Sessions    SessionStore
	Reporter    ErrorReporter
	Prompter    Prompter
	Costs       CostModel
	Timeouts    Timeouts

	// MaxAudioBytes is the ceiling for channels without their own cap.
	MaxAudioBytes int64

	// Optional sinks
	Archiver  AudioArchiver
	Mirror    SessionMirror
	Publisher EventPublisher

	Now func() time.Time
}

type runState struct {
	audioSize         int64
	archiveURL        string
	transcription     domain.TranscriptionResult
	reply             string
	cacheHit          bool
	transcriptionCost float64
	completionCost    float64
	sessionID         string
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Handle runs ev through the pipeline and reports the outcome.
func (p *Pipeline) Handle(ctx context.Context, ev domain.VoiceEvent) (res Result) {
	tr := otel.Tracer("services/Pipeline")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("platform", string(ev.Platform)),
			attribute.String("message.id", ev.ProviderMessageID),
		),
	)
	defer span.End()

	start := p.now()
	logger := log.With().
		Str("platform", string(ev.Platform)).
		Str("user", maskID(ev.UserIdentifier)).
		Str("message_id", ev.ProviderMessageID).
		Logger()

	ch, ok := p.Channels[ev.Platform]
	if !ok {
		res = Result{Outcome: domain.OutcomeFailed, Err: ErrUnknownPlatform}
		p.report(ctx, ev, res.Err)
		p.finish(ev, start, res, logger)
		return res
	}

	placeholder := ""
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("pipeline panic: %v", r)
			p.notify(ctx, ch, ev.ChatIdentifier, placeholder, MsgGenericTrouble, logger)
			p.report(ctx, ev, err)
			res = Result{Outcome: domain.OutcomeFailed, Err: err}
		}
		span.SetAttributes(attribute.String("outcome", string(res.Outcome)))
		if res.Outcome == domain.OutcomeFailed {
			span.SetStatus(codes.Error, "pipeline failed")
		}
		p.finish(ev, start, res, logger)
	}()

	// 1. Admission
	if p.Limiter != nil && !p.Limiter.Admit(ctx, ev.UserIdentifier, ev.Platform) {
		if _, err := p.send(ctx, ch, ev.ChatIdentifier, MsgRateLimited); err != nil {
			logger.Warn().Err(err).Msg("rate limit notice not delivered")
		}
		return Result{Outcome: domain.OutcomeRateLimited, Err: ErrRateLimited}
	}

	// 2. Acknowledge
	if h, err := p.send(ctx, ch, ev.ChatIdentifier, MsgProcessing); err != nil {
		logger.Warn().Err(err).Msg("placeholder not delivered")
	} else {
		placeholder = h
	}

	st, err := p.run(ctx, ch, ev, placeholder, start, logger)
	if err != nil {
		return p.fail(ctx, ch, ev, placeholder, err, logger)
	}
	return Result{Outcome: domain.OutcomeSuccess, CacheHit: st.cacheHit, SessionID: st.sessionID}
}

// run executes steps 3 to 8.
func (p *Pipeline) run(ctx context.Context, ch Channel, ev domain.VoiceEvent, placeholder string, start time.Time, logger zerolog.Logger) (runState, error) {
	var st runState
	prof := ch.Profile()

	if prof.MaxDurationSeconds > 0 && ev.DurationSeconds > prof.MaxDurationSeconds {
		return st, ErrAudioTooLong
	}

	// 3. Fetch audio
	limit := prof.MaxAudioBytes
	if limit <= 0 {
		limit = p.MaxAudioBytes
	}
	if limit <= 0 {
		limit = DefaultMaxAudioBytes
	}
	dctx, cancel := withTimeout(ctx, p.Timeouts.Download)
	audio, err := ch.Download(dctx, ev.AudioReference, limit)
	cancel()
	if err != nil {
		if errors.Is(err, ErrAudioTooLarge) {
			return st, err
		}
		return st, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if int64(len(audio)) > limit {
		return st, ErrAudioTooLarge
	}
	st.audioSize = int64(len(audio))

	if p.Archiver != nil {
		actx, cancel := withTimeout(ctx, p.Timeouts.Store)
		url, err := p.Archiver.Archive(actx, ev.Platform, audio, ev.ContentType)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("audio archive failed")
		} else {
			st.archiveURL = url
		}
	}

	p.progress(ctx, ch, prof, ev.ChatIdentifier, placeholder, MsgTranscribing, logger)

	// 4. Transcribe
	tctx, cancel := withTimeout(ctx, p.Timeouts.Transcribe)
	text, err := p.Transcriber.Transcribe(tctx, audio, ev.ContentType)
	cancel()
	if err != nil {
		return st, asServiceError("transcription", err)
	}
	text = strings.TrimSpace(text)
	normalized := NormalizeQuery(text)
	st.transcription = domain.TranscriptionResult{Text: text, Succeeded: normalized != ""}
	if !st.transcription.Succeeded {
		return st, ErrTranscriptionEmpty
	}

	p.progress(ctx, ch, prof, ev.ChatIdentifier, placeholder, MsgThinking, logger)

	// 5. Cache lookup
	var reply string
	if p.Cache != nil {
		reply, st.cacheHit = p.Cache.Lookup(ctx, normalized)
	}

	// 6. Complete
	if !st.cacheHit {
		prompt := p.Prompter.SystemPrompt(prof.Name, ev.DisplayName, text)
		cctx, cancel := withTimeout(ctx, p.Timeouts.Complete)
		reply, err = p.Completer.Complete(cctx, prompt, normalized)
		cancel()
		if err != nil {
			return st, asServiceError("completion", err)
		}
		reply = strings.TrimSpace(reply)
		if reply == "" {
			return st, &ServiceError{Service: "completion", Message: "empty completion"}
		}
		st.completionCost = p.Costs.Completion(prompt, reply)
		if p.Cache != nil {
			_ = p.Cache.Store(ctx, normalized, reply) // soft; logged by the cache
		}
	}
	st.reply = reply
	st.transcriptionCost = p.Costs.Transcription(st.audioSize, ev.DurationSeconds)

	// 7. Deliver
	if err := p.deliver(ctx, ch, ev.ChatIdentifier, placeholder, FormatReply(text, reply, prof.Footer), logger); err != nil {
		return st, asServiceError("delivery", err)
	}

	// 8. Persist
	st.sessionID = p.persist(ctx, ev, st, start, logger)
	return st, nil
}

// fail maps err to a user notice and an outcome.
func (p *Pipeline) fail(ctx context.Context, ch Channel, ev domain.VoiceEvent, placeholder string, err error, logger zerolog.Logger) Result {
	switch {
	case errors.Is(err, ErrAudioTooLarge):
		p.notify(ctx, ch, ev.ChatIdentifier, placeholder, MsgAudioTooLarge, logger)
		return Result{Outcome: domain.OutcomeAudioTooLarge, Err: err}
	case errors.Is(err, ErrAudioTooLong):
		p.notify(ctx, ch, ev.ChatIdentifier, placeholder, MsgAudioTooLong, logger)
		return Result{Outcome: domain.OutcomeAudioTooLarge, Err: err}
	case errors.Is(err, ErrTranscriptionEmpty):
		p.notify(ctx, ch, ev.ChatIdentifier, placeholder, MsgNotUnderstood, logger)
		return Result{Outcome: domain.OutcomeTranscriptionFailed, Err: err}
	default:
		p.notify(ctx, ch, ev.ChatIdentifier, placeholder, MsgGenericTrouble, logger)
		p.report(ctx, ev, err)
		return Result{Outcome: domain.OutcomeFailed, Err: err}
	}
}

func (p *Pipeline) send(ctx context.Context, ch Channel, chatID, text string) (string, error) {
	ctx, cancel := withTimeout(ctx, p.Timeouts.Deliver)
	defer cancel()
	return ch.Send(ctx, chatID, text)
}

// deliver replaces the placeholder when the channel can edit, otherwise (or
// when the edit fails) it sends a new message.
func (p *Pipeline) deliver(ctx context.Context, ch Channel, chatID, placeholder, text string, logger zerolog.Logger) error {
	if ed, ok := ch.(MessageEditor); ok && placeholder != "" {
		ectx, cancel := withTimeout(ctx, p.Timeouts.Deliver)
		err := ed.Edit(ectx, chatID, placeholder, text)
		cancel()
		if err == nil {
			return nil
		}
		logger.Warn().Err(err).Msg("placeholder edit failed; sending new message")
	}
	_, err := p.send(ctx, ch, chatID, text)
	return err
}

// notify delivers a terminal notice; failures are only logged.
func (p *Pipeline) notify(ctx context.Context, ch Channel, chatID, placeholder, text string, logger zerolog.Logger) {
	if err := p.deliver(context.WithoutCancel(ctx), ch, chatID, placeholder, text, logger); err != nil {
		logger.Warn().Err(err).Msg("notice not delivered")
	}
}

func (p *Pipeline) progress(ctx context.Context, ch Channel, prof ChannelProfile, chatID, placeholder, text string, logger zerolog.Logger) {
	if !prof.ProgressUpdates || placeholder == "" {
		return
	}
	ed, ok := ch.(MessageEditor)
	if !ok {
		return
	}
	ctx, cancel := withTimeout(ctx, p.Timeouts.Deliver)
	defer cancel()
	if err := ed.Edit(ctx, chatID, placeholder, text); err != nil {
		logger.Debug().Err(err).Msg("progress edit failed")
	}
}

// persist writes the session record. Store failures never reach the user.
func (p *Pipeline) persist(ctx context.Context, ev domain.VoiceEvent, st runState, start time.Time, logger zerolog.Logger) string {
	if p.Sessions == nil {
		return ""
	}
	rec := &domain.VoiceSession{
		Platform:          string(ev.Platform),
		UserIdentifier:    ev.UserIdentifier,
		DisplayName:       ev.DisplayName,
		ChatIdentifier:    ev.ChatIdentifier,
		ProviderMessageID: ev.ProviderMessageID,
		AudioReference:    ev.AudioReference,
		ArchiveURL:        st.archiveURL,
		TranscribedText:   st.transcription.Text,
		ReplyText:         st.reply,
		CacheHit:          st.cacheHit,
		ProcessingTimeMs:  p.now().Sub(start).Milliseconds(),
		AudioSizeBytes:    st.audioSize,
		DurationSeconds:   ev.DurationSeconds,
		TranscriptionCost: st.transcriptionCost,
		CompletionCost:    st.completionCost,
		EstimatedCostUSD:  round6(st.transcriptionCost + st.completionCost),
	}

	sctx, cancel := withTimeout(context.WithoutCancel(ctx), p.Timeouts.Store)
	defer cancel()
	if err := p.Sessions.CreateSession(sctx, rec); err != nil {
		logger.Error().Err(&StoreError{Op: "session create", Err: err}).Msg("session record not written")
		return ""
	}
	if p.Mirror != nil {
		if err := p.Mirror.Mirror(sctx, rec); err != nil {
			logger.Warn().Err(err).Msg("session mirror failed")
		}
	}
	return rec.ID
}

func (p *Pipeline) report(ctx context.Context, ev domain.VoiceEvent, err error) {
	if p.Reporter == nil {
		return
	}
	service := "voice-pipeline"
	var se *ServiceError
	if errors.As(err, &se) {
		service = se.Service
	} else if errors.Is(err, ErrDownloadFailed) {
		service = "audio-download"
	}
	p.Reporter.Report(ctx, service, err.Error(), map[string]any{
		"platform":            string(ev.Platform),
		"provider_message_id": ev.ProviderMessageID,
		"user":                maskID(ev.UserIdentifier),
	})
}

func (p *Pipeline) finish(ev domain.VoiceEvent, start time.Time, res Result, logger zerolog.Logger) {
	elapsed := p.now().Sub(start)
	pipelineRuns.WithLabelValues(string(ev.Platform), string(res.Outcome)).Inc()
	pipelineLat.WithLabelValues(string(ev.Platform)).Observe(elapsed.Seconds())

	e := logger.Info()
	if res.Outcome == domain.OutcomeFailed {
		e = logger.Warn().Err(res.Err)
	}
	e.Str("outcome", string(res.Outcome)).
		Bool("cache_hit", res.CacheHit).
		Int64("processing_ms", elapsed.Milliseconds()).
		Msg("voice pipeline finished")

	if p.Publisher != nil {
		p.Publisher.Publish(domain.PipelineEvent{
			Platform:     ev.Platform,
			Outcome:      res.Outcome,
			CacheHit:     res.CacheHit,
			ProcessingMs: elapsed.Milliseconds(),
			SessionID:    res.SessionID,
			At:           p.now().UTC(),
		})
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func asServiceError(service string, err error) error {
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	return &ServiceError{Service: service, Err: err}
}

// maskID keeps the last four characters of an identifier for logs.
func maskID(id string) string {
	r := []rune(id)
	if len(r) <= 4 {
		return "****"
	}
	return "****" + string(r[len(r)-4:])
}
