package archive

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// CollectionSessions receives one document per session record.
const CollectionSessions = "voice_sessions"

// inserter is the part of *mongo.Collection the mirror uses.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoMirror copies session records into MongoDB.
type MongoMirror struct {
	col inserter
}

// ConnectMongo dials uri and pings the primary.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is empty")
	}
	opts := options.Client().ApplyURI(uri).
		SetServerSelectionTimeout(20 * time.Second).
		SetConnectTimeout(15 * time.Second).
		SetMaxPoolSize(10)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return client, nil
}

// NewMongoMirror writes into db.voice_sessions.
func NewMongoMirror(db *mongo.Database) *MongoMirror {
	return &MongoMirror{col: db.Collection(CollectionSessions)}
}

// Mirror implements services.SessionMirror. Duplicate ids are ignored.
func (m *MongoMirror) Mirror(ctx context.Context, rec *domain.VoiceSession) error {
	if rec == nil {
		return nil
	}
	_, err := m.col.InsertOne(ctx, sessionDocument(rec))
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func sessionDocument(rec *domain.VoiceSession) bson.M {
	return bson.M{
		"_id":                    rec.ID,
		"platform":               rec.Platform,
		"user_identifier":        rec.UserIdentifier,
		"display_name":           rec.DisplayName,
		"chat_identifier":        rec.ChatIdentifier,
		"provider_message_id":    rec.ProviderMessageID,
		"audio_reference":        rec.AudioReference,
		"archive_url":            rec.ArchiveURL,
		"transcribed_text":       rec.TranscribedText,
		"reply_text":             rec.ReplyText,
		"cache_hit":              rec.CacheHit,
		"processing_time_ms":     rec.ProcessingTimeMs,
		"audio_size_bytes":       rec.AudioSizeBytes,
		"duration_seconds":       rec.DurationSeconds,
		"transcription_cost_usd": rec.TranscriptionCost,
		"completion_cost_usd":    rec.CompletionCost,
		"estimated_cost_usd":     rec.EstimatedCostUSD,
		"created_at":             rec.CreatedAt.UTC(),
	}
}
