package domain

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	cases := map[string]string{
		(CachedResponse{}).TableName():   "cached_responses",
		(RateLimitCounter{}).TableName(): "rate_limits",
		(VoiceSession{}).TableName():     "voice_sessions",
		(SystemLog{}).TableName():        "system_logs",
		(WebhookDelivery{}).TableName():  "webhook_deliveries",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("TableName() = %q; want %q", got, want)
		}
	}
}

func TestMigrations_Indexes_AndUniqueness(t *testing.T) {
	db := newDomainDB(t)

	if err := db.AutoMigrate(&CachedResponse{}, &RateLimitCounter{}, &VoiceSession{}, &SystemLog{}, &WebhookDelivery{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()

	if !m.HasIndex(&CachedResponse{}, "ux_cached_query_hash") {
		t.Fatalf("expected index ux_cached_query_hash on cached_responses")
	}
	if !m.HasIndex(&RateLimitCounter{}, "ux_rate_window") {
		t.Fatalf("expected index ux_rate_window on rate_limits")
	}
	if !m.HasIndex(&WebhookDelivery{}, "ux_delivery_platform_key") {
		t.Fatalf("expected index ux_delivery_platform_key on webhook_deliveries")
	}

	now := time.Now().UTC()
	a := &CachedResponse{ID: "a", QueryHash: "h1", OriginalQuery: "q", ResponseText: "r", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("insert first cache row: %v", err)
	}
	b := &CachedResponse{ID: "b", QueryHash: "h1", OriginalQuery: "q", ResponseText: "r2", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	if err := db.Create(b).Error; err == nil {
		t.Fatalf("expected unique violation on duplicate query_hash")
	}

	ws := now.Truncate(time.Hour)
	c1 := &RateLimitCounter{UserIdentifier: "u", Platform: "whatsapp", WindowStart: ws, Count: 1}
	if err := db.Create(c1).Error; err != nil {
		t.Fatalf("insert counter: %v", err)
	}
	c2 := &RateLimitCounter{UserIdentifier: "u", Platform: "telegram", WindowStart: ws, Count: 1}
	if err := db.Create(c2).Error; err != nil {
		t.Fatalf("same user on another platform must be allowed: %v", err)
	}
}

func TestSystemLog_MetadataRoundTrip(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&SystemLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	rec := &SystemLog{
		ID:       "l1",
		Level:    "error",
		Service:  "pipeline",
		Message:  "boom",
		Metadata: datatypes.JSONMap{"platform": "telegram", "status": float64(502)},
	}
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got SystemLog
	if err := db.First(&got, "id = ?", "l1").Error; err != nil {
		t.Fatalf("read: %v", err)
	}
	// JSONMap decodes numbers as json.Number
	if got.Metadata["platform"] != "telegram" || fmt.Sprint(got.Metadata["status"]) != "502" {
		t.Fatalf("metadata not preserved: %+v", got.Metadata)
	}
}

func TestParsePlatform(t *testing.T) {
	if p, err := ParsePlatform(" WhatsApp "); err != nil || p != PlatformWhatsApp {
		t.Fatalf("ParsePlatform(WhatsApp) = %q, %v", p, err)
	}
	if p, err := ParsePlatform("telegram"); err != nil || p != PlatformTelegram {
		t.Fatalf("ParsePlatform(telegram) = %q, %v", p, err)
	}
	if _, err := ParsePlatform("sms"); err == nil {
		t.Fatalf("expected error for unknown platform")
	}
}
