// Package watermark persists the last processed timestamp of each stream.
//
// Values are stored as plain integer text. A missing or unparsable value reads
// as 0, meaning the stream has never been polled. A backend failure is returned
// as an error, never as 0. Writes of values <= 0 are rejected and leave the
// stored value untouched.
package watermark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"tower_bot/internal/logging"
	"tower_bot/internal/models"
)

var ErrInvalidWatermark = errors.New("invalid watermark")

// Backend is the storage medium. Load reports ok=false when nothing is stored.
type Backend interface {
	Load(ctx context.Context, stream models.Stream) (string, bool, error)
	Save(ctx context.Context, stream models.Stream, value string) error
	Close() error
}

type Store struct {
	backend Backend
	logger  logging.Logger
}

func NewStore(backend Backend, logger logging.Logger) *Store {
	return &Store{backend: backend, logger: logger}
}

// Get returns the stored watermark, or 0 when none is stored or the stored
// value is invalid. Backend failures are returned as errors.
func (s *Store) Get(ctx context.Context, stream models.Stream) (int64, error) {
	log := s.logger.WithField("stream", stream)

	raw, ok, err := s.backend.Load(ctx, stream)
	if err != nil {
		return 0, fmt.Errorf("load %s watermark: %w", stream, err)
	}
	if !ok {
		log.Warn("No watermark stored, starting from 0")
		return 0, nil
	}
	ts, valid := Parse(raw)
	if !valid {
		log.WithField("raw", raw).Warn("Invalid watermark stored, starting from 0")
		return 0, nil
	}
	log.WithFields(logging.Fields{
		"watermark": ts,
		"time":      time.Unix(ts, 0).UTC().Format(time.DateTime),
	}).Debug("Read watermark")
	return ts, nil
}

// Set stores ts for stream. Values <= 0 are rejected with ErrInvalidWatermark.
func (s *Store) Set(ctx context.Context, stream models.Stream, ts int64) error {
	if ts <= 0 {
		s.logger.WithFields(logging.Fields{"stream": stream, "watermark": ts}).Warn("Refusing to store invalid watermark")
		return fmt.Errorf("%w: %d", ErrInvalidWatermark, ts)
	}
	if err := s.backend.Save(ctx, stream, strconv.FormatInt(ts, 10)); err != nil {
		return fmt.Errorf("save %s watermark: %w", stream, err)
	}
	s.logger.WithFields(logging.Fields{
		"stream":    stream,
		"watermark": ts,
		"time":      time.Unix(ts, 0).UTC().Format(time.DateTime),
	}).Info("Updated watermark")
	return nil
}

// SetString validates operator-supplied text before storing it.
func (s *Store) SetString(ctx context.Context, stream models.Stream, raw string) error {
	ts, ok := Parse(raw)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidWatermark, raw)
	}
	return s.Set(ctx, stream, ts)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Parse accepts integer or decimal text (Reddit reports created_utc as a float)
// and truncates to whole seconds. Non-numeric or non-positive input is invalid.
func Parse(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ts, ts > 0
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 {
		return 0, false
	}
	ts := int64(f)
	return ts, ts > 0
}
