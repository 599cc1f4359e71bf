package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// ---------- helpers ----------

var fixedNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func waChannel() *fakeChannel {
	return &fakeChannel{
		platform: domain.PlatformWhatsApp,
		profile:  ChannelProfile{Name: "WhatsApp", Footer: FooterWhatsApp, MaxAudioBytes: 5 * 1024 * 1024},
		audio:    []byte("ogg-bytes"),
	}
}

func tgChannel() *editingChannel {
	return &editingChannel{fakeChannel: &fakeChannel{
		platform: domain.PlatformTelegram,
		profile:  ChannelProfile{Name: "Telegram", Footer: FooterTelegram, MaxDurationSeconds: 120, ProgressUpdates: true},
		audio:    []byte("oga-bytes"),
	}}
}

type rig struct {
	p        *Pipeline
	tx       *fakeTranscriber
	llm      *fakeCompleter
	sessions *memSessions
	cache    *memCache
	counter  *memCounter
	reporter *fakeReporter
	pub      *fakePublisher
}

func newRig(channels ...Channel) *rig {
	r := &rig{
		tx:       &fakeTranscriber{text: "how can you help my business"},
		llm:      &fakeCompleter{reply: "I can answer your customers 24/7."},
		sessions: &memSessions{},
		cache:    newMemCache(),
		counter:  &memCounter{},
		reporter: &fakeReporter{},
		pub:      &fakePublisher{},
	}
	chs := map[domain.Platform]Channel{}
	for _, c := range channels {
		chs[c.Platform()] = c
	}
	now := func() time.Time { return fixedNow }
	r.p = &Pipeline{
		Channels: chs,
		Limiter: &RateLimiter{
			Counters: r.counter,
			Policies: map[domain.Platform]Policy{
				domain.PlatformWhatsApp: {Max: 20, Window: time.Hour},
				domain.PlatformTelegram: {Max: 30, Window: time.Hour},
			},
			Now: now,
		},
		Cache:       &ResponseCache{Backend: r.cache, TTL: 24 * time.Hour, Now: now},
		Transcriber: r.tx,
		Completer:   r.llm,
		Sessions:    r.sessions,
		Reporter:    r.reporter,
		Prompter:    Prompter{AgentName: "ODIA Agent", Locale: "Nigerian"},
		Costs:       DefaultCostModel,
		Timeouts:    DefaultTimeouts,
		Publisher:   r.pub,
		Now:         now,
	}
	return r
}

func waEvent() domain.VoiceEvent {
	return domain.VoiceEvent{
		Platform:          domain.PlatformWhatsApp,
		UserIdentifier:    "+2348000000001",
		ChatIdentifier:    "+2348000000001",
		AudioReference:    "https://api.twilio.com/media/ME1",
		ContentType:       "audio/ogg",
		DisplayName:       "Ada",
		ProviderMessageID: "SM1",
	}
}

func tgEvent() domain.VoiceEvent {
	return domain.VoiceEvent{
		Platform:          domain.PlatformTelegram,
		UserIdentifier:    "42",
		ChatIdentifier:    "42",
		AudioReference:    "file-1",
		ContentType:       "audio/ogg",
		DurationSeconds:   7,
		DisplayName:       "Bayo",
		ProviderMessageID: "1001",
	}
}

// ---------- happy paths ----------

func TestPipeline_WhatsApp_Success_SQLStore(t *testing.T) {
	store := newSQLStore(t)
	ch := waChannel()
	r := newRig(ch)
	r.p.Cache = &ResponseCache{Backend: store, TTL: 24 * time.Hour}
	r.p.Sessions = store
	r.p.Limiter = &RateLimiter{Counters: store, Policies: map[domain.Platform]Policy{domain.PlatformWhatsApp: {Max: 20, Window: time.Hour}}}

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeSuccess || res.CacheHit || res.SessionID == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if r.tx.calls != 1 || r.llm.calls != 1 {
		t.Fatalf("calls: transcribe=%d complete=%d; want 1/1", r.tx.calls, r.llm.calls)
	}

	rec, err := store.GetCached(context.Background(), QueryHash("how can you help my business"), time.Now().UTC())
	if err != nil || rec == nil || rec.ResponseText != "I can answer your customers 24/7." {
		t.Fatalf("cache entry = (%+v, %v)", rec, err)
	}

	items, total, err := store.ListSessionsPage(context.Background(), "", 0, 10)
	if err != nil || total != 1 || items[0].ReplyText == "" {
		t.Fatalf("sessions = (%+v, %d, %v)", items, total, err)
	}
	if items[0].EstimatedCostUSD <= 0 {
		t.Fatalf("expected a positive cost estimate, got %v", items[0].EstimatedCostUSD)
	}

	got := ch.texts()
	want := FormatReply("how can you help my business", "I can answer your customers 24/7.", FooterWhatsApp)
	if len(got) != 2 || got[0] != MsgProcessing || got[1] != want {
		t.Fatalf("sent = %q", got)
	}
}

func TestPipeline_CrossChannelVariant_IsCacheHit(t *testing.T) {
	store := newSQLStore(t)
	wa, tg := waChannel(), tgChannel()
	r := newRig(wa, tg)
	r.p.Cache = &ResponseCache{Backend: store, TTL: 24 * time.Hour}
	r.p.Sessions = store

	if res := r.p.Handle(context.Background(), waEvent()); res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("first run: %+v", res)
	}

	r.tx.text = "  How Can You   Help My Business?  "
	res := r.p.Handle(context.Background(), tgEvent())
	if res.Outcome != domain.OutcomeSuccess || !res.CacheHit {
		t.Fatalf("second run: %+v", res)
	}
	if r.llm.calls != 1 {
		t.Fatalf("completion must not be called on a hit; calls=%d", r.llm.calls)
	}
	rec, err := store.GetCached(context.Background(), QueryHash("how can you help my business"), time.Now().UTC())
	if err != nil || rec == nil || rec.HitCount != 1 {
		t.Fatalf("expected hitCount 1, got (%+v, %v)", rec, err)
	}
}

func TestPipeline_DuplicateEvent_TwoSessions_OneCompletion(t *testing.T) {
	ch := waChannel()
	r := newRig(ch)

	first := r.p.Handle(context.Background(), waEvent())
	second := r.p.Handle(context.Background(), waEvent())
	if first.CacheHit || !second.CacheHit {
		t.Fatalf("cache hits = %v/%v; want false/true", first.CacheHit, second.CacheHit)
	}
	if r.llm.calls != 1 || r.sessions.count() != 2 {
		t.Fatalf("completion calls=%d sessions=%d; want 1/2", r.llm.calls, r.sessions.count())
	}
	if r.sessions.recs[1].CompletionCost != 0 || !r.sessions.recs[1].CacheHit {
		t.Fatalf("cached run must carry no completion cost: %+v", r.sessions.recs[1])
	}
}

func TestPipeline_Telegram_EditsPlaceholder(t *testing.T) {
	ch := tgChannel()
	r := newRig(ch)

	res := r.p.Handle(context.Background(), tgEvent())
	if res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := ch.texts(); len(got) != 1 || got[0] != MsgProcessing {
		t.Fatalf("only the placeholder should be sent, got %q", got)
	}
	if len(ch.edits) != 3 {
		t.Fatalf("expected 3 edits (2 progress + reply), got %+v", ch.edits)
	}
	if ch.edits[0].Text != MsgTranscribing || ch.edits[1].Text != MsgThinking {
		t.Fatalf("progress edits out of order: %+v", ch.edits)
	}
	last := ch.edits[2]
	if last.Chat != "m1" || !strings.Contains(last.Text, FooterTelegram) || !strings.HasPrefix(last.Text, "🎯 *I heard:*") {
		t.Fatalf("unexpected final edit: %+v", last)
	}
}

func TestPipeline_EditFailure_FallsBackToSend(t *testing.T) {
	ch := tgChannel()
	ch.editErr = errors.New("message to edit not found")
	r := newRig(ch)

	if res := r.p.Handle(context.Background(), tgEvent()); res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := ch.texts()
	if len(got) != 2 || !strings.HasPrefix(got[1], "🎯 *I heard:*") {
		t.Fatalf("expected placeholder + new reply message, got %q", got)
	}
}

func TestPipeline_SystemPromptCarriesTranscriptVerbatim(t *testing.T) {
	r := newRig(waChannel())
	r.tx.text = `Wetin you fit do for me? "abeg"`
	r.p.Handle(context.Background(), waEvent())

	for _, want := range []string{`Wetin you fit do for me? "abeg"`, "text only", "Pidgin", "under 250 words", "WhatsApp", "Ada"} {
		if !strings.Contains(r.llm.lastPrompt, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, r.llm.lastPrompt)
		}
	}
	if r.llm.lastUser != `wetin you fit do for me? "abeg` {
		t.Fatalf("completion should receive normalized text, got %q", r.llm.lastUser)
	}
}

func TestPipeline_OptionalSinks(t *testing.T) {
	r := newRig(waChannel())
	arch := &fakeArchiver{url: "gs://bucket/whatsapp/a.ogg"}
	mir := &fakeMirror{}
	r.p.Archiver, r.p.Mirror = arch, mir

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	if arch.got != len("ogg-bytes") || r.sessions.recs[0].ArchiveURL != arch.url {
		t.Fatalf("archive not recorded: %+v", r.sessions.recs[0])
	}
	if len(mir.recs) != 1 || mir.recs[0].ID != res.SessionID {
		t.Fatalf("mirror not called with the stored record: %+v", mir.recs)
	}
	if len(r.pub.events) != 1 || r.pub.events[0].SessionID != res.SessionID || r.pub.events[0].Outcome != domain.OutcomeSuccess {
		t.Fatalf("publish mismatch: %+v", r.pub.events)
	}
}

func TestPipeline_ArchiveFailure_IsNotFatal(t *testing.T) {
	r := newRig(waChannel())
	r.p.Archiver = &fakeArchiver{err: errors.New("bucket gone")}
	if res := r.p.Handle(context.Background(), waEvent()); res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// ---------- expected stops ----------

func TestPipeline_RateLimited_On21stRequest(t *testing.T) {
	ch := waChannel()
	r := newRig(ch)
	for i := 1; i <= 20; i++ {
		if res := r.p.Handle(context.Background(), waEvent()); res.Outcome != domain.OutcomeSuccess {
			t.Fatalf("request %d: %+v", i, res)
		}
	}
	before := len(ch.texts())

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeRateLimited || !errors.Is(res.Err, ErrRateLimited) {
		t.Fatalf("21st request: %+v", res)
	}
	got := ch.texts()[before:]
	if len(got) != 1 || got[0] != MsgRateLimited {
		t.Fatalf("expected a single rate-limit notice, got %q", got)
	}
	if ch.downloads != 20 || r.sessions.count() != 20 {
		t.Fatalf("downloads=%d sessions=%d; want 20/20", ch.downloads, r.sessions.count())
	}
}

func TestPipeline_Oversize_NeverTranscribed(t *testing.T) {
	ch := waChannel()
	ch.audio = make([]byte, 6*1024*1024)
	r := newRig(ch)

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeAudioTooLarge {
		t.Fatalf("unexpected result: %+v", res)
	}
	if r.tx.calls != 0 || r.sessions.count() != 0 || len(r.reporter.reports) != 0 {
		t.Fatalf("transcribe=%d sessions=%d reports=%d; want 0/0/0", r.tx.calls, r.sessions.count(), len(r.reporter.reports))
	}
	got := ch.texts()
	if got[len(got)-1] != MsgAudioTooLarge {
		t.Fatalf("expected size notice, got %q", got)
	}
}

func TestPipeline_OversizeGuard_WhenChannelIgnoresCap(t *testing.T) {
	ch := &leakyChannel{fakeChannel: waChannel()}
	ch.audio = make([]byte, 64)
	ch.profile.MaxAudioBytes = 32
	r := newRig(ch)

	if res := r.p.Handle(context.Background(), waEvent()); res.Outcome != domain.OutcomeAudioTooLarge {
		t.Fatalf("unexpected result: %+v", res)
	}
	if r.tx.calls != 0 {
		t.Fatalf("oversize audio reached the transcriber")
	}
}

// leakyChannel returns the full payload regardless of maxBytes.
type leakyChannel struct{ *fakeChannel }

func (c *leakyChannel) Download(context.Context, string, int64) ([]byte, error) {
	return c.audio, nil
}

func TestPipeline_TooLong_CheckedBeforeDownload(t *testing.T) {
	ch := tgChannel()
	r := newRig(ch)
	ev := tgEvent()
	ev.DurationSeconds = 150

	res := r.p.Handle(context.Background(), ev)
	if res.Outcome != domain.OutcomeAudioTooLarge || !errors.Is(res.Err, ErrAudioTooLong) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if ch.downloads != 0 {
		t.Fatalf("download attempted for overlong audio")
	}
	if last := ch.edits[len(ch.edits)-1]; last.Text != MsgAudioTooLong {
		t.Fatalf("expected too-long notice, got %+v", last)
	}
}

func TestPipeline_EmptyTranscription(t *testing.T) {
	for _, text := range []string{"", "   ", " ... "} {
		ch := waChannel()
		r := newRig(ch)
		r.tx.text = text

		res := r.p.Handle(context.Background(), waEvent())
		if res.Outcome != domain.OutcomeTranscriptionFailed {
			t.Fatalf("%q: unexpected result: %+v", text, res)
		}
		if r.llm.calls != 0 || r.sessions.count() != 0 {
			t.Fatalf("%q: completion=%d sessions=%d; want 0/0", text, r.llm.calls, r.sessions.count())
		}
		got := ch.texts()
		if got[len(got)-1] != MsgNotUnderstood {
			t.Fatalf("%q: expected couldn't-understand notice, got %q", text, got)
		}
	}
}

// ---------- unexpected failures ----------

func TestPipeline_CompletionFailure_GenericNoticeAndReport(t *testing.T) {
	ch := waChannel()
	r := newRig(ch)
	r.llm.err = &ServiceError{Service: "completion", Status: 529, Message: "overloaded"}

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
	var se *ServiceError
	if !errors.As(res.Err, &se) || se.Status != 529 {
		t.Fatalf("expected ServiceError with status, got %v", res.Err)
	}
	got := ch.texts()
	if got[len(got)-1] != MsgGenericTrouble {
		t.Fatalf("expected generic notice, got %q", got)
	}
	for _, s := range got {
		if strings.Contains(s, "overloaded") {
			t.Fatalf("upstream error leaked to user: %q", s)
		}
	}
	if len(r.reporter.reports) != 1 || r.reporter.reports[0].Service != "completion" {
		t.Fatalf("reports = %+v", r.reporter.reports)
	}
	if r.sessions.count() != 0 || len(r.cache.entries) != 0 {
		t.Fatalf("failed run must not persist a session or cache entry")
	}
}

func TestPipeline_DownloadFailure(t *testing.T) {
	ch := waChannel()
	ch.downloadErr = &ServiceError{Service: "twilio-media", Status: 404}
	r := newRig(ch)

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeFailed || !errors.Is(res.Err, ErrDownloadFailed) {
		t.Fatalf("unexpected result: %+v", res)
	}
	if r.tx.calls != 0 {
		t.Fatalf("transcriber called after failed download")
	}
	if len(r.reporter.reports) != 1 {
		t.Fatalf("expected one report, got %+v", r.reporter.reports)
	}
}

func TestPipeline_TranscriptionError_IsUpstreamFailure(t *testing.T) {
	r := newRig(waChannel())
	r.tx.err = errors.New("connection reset")

	res := r.p.Handle(context.Background(), waEvent())
	var se *ServiceError
	if res.Outcome != domain.OutcomeFailed || !errors.As(res.Err, &se) || se.Service != "transcription" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestPipeline_PanicIsContained(t *testing.T) {
	ch := waChannel()
	r := newRig(ch)
	r.p.Completer = panickingCompleter{}

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeFailed {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := ch.texts()
	if got[len(got)-1] != MsgGenericTrouble {
		t.Fatalf("expected generic notice after panic, got %q", got)
	}
	if len(r.pub.events) != 1 || r.pub.events[0].Outcome != domain.OutcomeFailed {
		t.Fatalf("panic run not published: %+v", r.pub.events)
	}
}

func TestPipeline_UnknownPlatform(t *testing.T) {
	r := newRig(waChannel())
	res := r.p.Handle(context.Background(), tgEvent())
	if res.Outcome != domain.OutcomeFailed || !errors.Is(res.Err, ErrUnknownPlatform) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

// ---------- soft store failures ----------

func TestPipeline_StoreFailures_AreSoft(t *testing.T) {
	ch := waChannel()
	r := newRig(ch)
	r.counter.err = errors.New("db down")
	r.cache.getErr = errors.New("db down")
	r.cache.putErr = errors.New("db down")
	r.sessions.err = errors.New("db down")

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeSuccess || res.SessionID != "" {
		t.Fatalf("store failures must not affect the reply: %+v", res)
	}
	if got := ch.texts(); !strings.HasPrefix(got[len(got)-1], "🎯 *I heard:*") {
		t.Fatalf("reply not delivered: %q", got)
	}
	if len(r.reporter.reports) != 0 {
		t.Fatalf("soft failures must not be reported: %+v", r.reporter.reports)
	}
}

func TestPipeline_PlaceholderFailure_DoesNotAbort(t *testing.T) {
	ch := &flakyFirstSend{fakeChannel: waChannel()}
	r := newRig(ch)

	res := r.p.Handle(context.Background(), waEvent())
	if res.Outcome != domain.OutcomeSuccess {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := ch.texts(); len(got) != 1 || !strings.HasPrefix(got[0], "🎯 *I heard:*") {
		t.Fatalf("expected only the final reply, got %q", got)
	}
}

// flakyFirstSend fails the first Send only.
type flakyFirstSend struct {
	*fakeChannel
	failed bool
}

func (c *flakyFirstSend) Send(ctx context.Context, chatID, text string) (string, error) {
	if !c.failed {
		c.failed = true
		return "", errors.New("twilio 503")
	}
	return c.fakeChannel.Send(ctx, chatID, text)
}
