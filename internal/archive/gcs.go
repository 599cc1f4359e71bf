// Package archive holds the optional sinks for raw audio (Cloud Storage) and
// session copies (MongoDB).
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"

	"github.com/tbourn/go-voice-relay/internal/domain"
)

// GCSArchiver writes voice notes to a bucket.
type GCSArchiver struct {
	client *gcs.Client
	bucket string
	now    func() time.Time
}

// NewGCSArchiver uses application default credentials.
func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSArchiver{client: c, bucket: bucket, now: time.Now}, nil
}

// Close releases the client.
func (a *GCSArchiver) Close() error { return a.client.Close() }

// Archive implements services.AudioArchiver and returns a gs:// URL.
func (a *GCSArchiver) Archive(ctx context.Context, platform domain.Platform, audio []byte, contentType string) (string, error) {
	name := ObjectName(platform, a.now(), uuid.NewString(), contentType)
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, bytes.NewReader(audio)); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, name), nil
}

// ObjectName lays audio out as <platform>/<yyyy>/<mm>/<dd>/<id>.<ext>.
func ObjectName(platform domain.Platform, at time.Time, id, contentType string) string {
	return fmt.Sprintf("%s/%s/%s%s", platform, at.UTC().Format("2006/01/02"), id, extension(contentType))
}

func extension(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "mpeg"), strings.Contains(ct, "mp3"):
		return ".mp3"
	case strings.Contains(ct, "mp4"), strings.Contains(ct, "m4a"), strings.Contains(ct, "aac"):
		return ".m4a"
	case strings.Contains(ct, "wav"):
		return ".wav"
	case strings.Contains(ct, "amr"):
		return ".amr"
	case strings.Contains(ct, "ogg"), strings.Contains(ct, "opus"), ct == "":
		return ".ogg"
	default:
		return ".bin"
	}
}
