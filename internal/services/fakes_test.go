package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-voice-relay/internal/domain"
	"github.com/tbourn/go-voice-relay/internal/repo"
)

// ---------- sqlite-backed store ----------

func newSQLStore(t *testing.T) *repo.SQLStore {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return repo.NewSQLStore(db)
}

// ---------- channel ----------

type sentMsg struct {
	Chat, Text string
}

type fakeChannel struct {
	mu       sync.Mutex
	platform domain.Platform
	profile  ChannelProfile

	audio       []byte
	downloadErr error
	downloads   int
	sendErr     error
	sent        []sentMsg
}

func (c *fakeChannel) Platform() domain.Platform { return c.platform }
func (c *fakeChannel) Profile() ChannelProfile   { return c.profile }

func (c *fakeChannel) Download(_ context.Context, _ string, maxBytes int64) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloads++
	if c.downloadErr != nil {
		return nil, c.downloadErr
	}
	if int64(len(c.audio)) > maxBytes {
		return nil, ErrAudioTooLarge
	}
	return c.audio, nil
}

func (c *fakeChannel) Send(_ context.Context, chatID, text string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return "", c.sendErr
	}
	c.sent = append(c.sent, sentMsg{Chat: chatID, Text: text})
	return fmt.Sprintf("m%d", len(c.sent)), nil
}

func (c *fakeChannel) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, m := range c.sent {
		out[i] = m.Text
	}
	return out
}

// editingChannel adds in-place edits, like Telegram.
type editingChannel struct {
	*fakeChannel
	editErr error
	edits   []sentMsg // Chat holds the edited handle
}

func (c *editingChannel) Edit(_ context.Context, _ string, handle, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editErr != nil {
		return c.editErr
	}
	c.edits = append(c.edits, sentMsg{Chat: handle, Text: text})
	return nil
}

// ---------- upstreams ----------

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

type fakeCompleter struct {
	mu         sync.Mutex
	reply      string
	err        error
	calls      int
	lastPrompt string
	lastUser   string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userText string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastPrompt, f.lastUser = systemPrompt, userText
	return f.reply, f.err
}

type panickingCompleter struct{}

func (panickingCompleter) Complete(context.Context, string, string) (string, error) {
	panic("boom")
}

// ---------- stores ----------

type memCache struct {
	mu      sync.Mutex
	entries map[string]*domain.CachedResponse
	getErr  error
	putErr  error
}

func newMemCache() *memCache { return &memCache{entries: map[string]*domain.CachedResponse{}} }

func (m *memCache) GetCached(_ context.Context, hash string, now time.Time) (*domain.CachedResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	e, ok := m.entries[hash]
	if !ok || !now.Before(e.ExpiresAt) {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (m *memCache) TouchCached(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[hash]; ok {
		e.HitCount++
		return nil
	}
	return errors.New("missing")
}

func (m *memCache) PutCached(_ context.Context, hash, query, reply string, ttl time.Duration, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[hash] = &domain.CachedResponse{QueryHash: hash, OriginalQuery: query, ResponseText: reply, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	return nil
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (m *memCounter) CompareAndIncrement(_ context.Context, user string, platform domain.Platform, max int, window time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int{}
	}
	k := fmt.Sprintf("%s|%s|%d", user, platform, now.Truncate(window).Unix())
	if m.counts[k] >= max {
		return false, nil
	}
	m.counts[k]++
	return true, nil
}

type memSessions struct {
	mu   sync.Mutex
	recs []domain.VoiceSession
	err  error
}

func (m *memSessions) CreateSession(_ context.Context, rec *domain.VoiceSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec.ID = uuid.NewString()
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

type report struct {
	Service, Message string
	Metadata         map[string]any
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []report
}

func (f *fakeReporter) Report(_ context.Context, service, message string, metadata map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, report{service, message, metadata})
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.PipelineEvent
}

func (f *fakePublisher) Publish(ev domain.PipelineEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

type fakeArchiver struct {
	url string
	err error
	got int
}

func (f *fakeArchiver) Archive(_ context.Context, _ domain.Platform, audio []byte, _ string) (string, error) {
	f.got = len(audio)
	return f.url, f.err
}

type fakeMirror struct {
	recs []domain.VoiceSession
}

func (f *fakeMirror) Mirror(_ context.Context, rec *domain.VoiceSession) error {
	f.recs = append(f.recs, *rec)
	return nil
}
