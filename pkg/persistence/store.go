// Package persistence saves and reloads transaction records.
//
// Every record is written twice: the full record under <recordType>_<id> with the
// configured TTL, and a redacted display copy under <recordType>UI_<id> that never
// expires.
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/persistence/middleware"
	"github.com/aretw0/switchlink/pkg/ports"
)

// DefaultRedactor drops bulky protocol blobs and masks personal data.
func DefaultRedactor() *middleware.Redactor {
	return middleware.NewRedactor(
		[]string{"^ilpPacket$", "^requests$", "^ack$", "^extensionList$"},
		[]string{"^dateOfBirth$", "^fulfilment$"},
	)
}

type options struct {
	ttl      time.Duration
	redactor *middleware.Redactor
	noUI     bool
}

// Option configures a Store.
type Option func(*options)

// WithTTL sets the expiry of primary records. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithRedactor replaces DefaultRedactor for the display copy.
func WithRedactor(r *middleware.Redactor) Option {
	return func(o *options) { o.redactor = r }
}

// WithoutUICopy disables the display copy.
func WithoutUICopy() Option {
	return func(o *options) { o.noUI = true }
}

// Store persists records of type T.
type Store[T any] struct {
	cache      ports.Cache
	recordType string
	opts       options
}

// NewStore creates a store for one record type.
func NewStore[T any](cache ports.Cache, recordType string, opts ...Option) *Store[T] {
	o := options{redactor: DefaultRedactor()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{cache: cache, recordType: recordType, opts: o}
}

// RecordType returns the key prefix of this store.
func (s *Store[T]) RecordType() string {
	return s.recordType
}

// Save writes the record and its display copy.
func (s *Store[T]) Save(ctx context.Context, id string, rec *T) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", s.recordType, id, err)
	}
	if err := s.cache.Set(ctx, domain.RecordKey(s.recordType, id), raw, s.opts.ttl); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", s.recordType, id, err)
	}
	if s.opts.noUI {
		return nil
	}

	ui, err := s.Redact(raw)
	if err != nil {
		return err
	}
	uiRaw, err := json.Marshal(ui)
	if err != nil {
		return fmt.Errorf("failed to marshal display copy: %w", err)
	}
	if err := s.cache.Set(ctx, domain.UIRecordKey(s.recordType, id), uiRaw, s.opts.ttl); err != nil {
		return fmt.Errorf("failed to save display copy of %s %s: %w", s.recordType, id, err)
	}
	return nil
}

// Load reads the primary record. It returns domain.ErrNoCachedData when absent.
func (s *Store[T]) Load(ctx context.Context, id string) (*T, error) {
	raw, err := s.cache.Get(ctx, domain.RecordKey(s.recordType, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%s %s: %w", s.recordType, id, domain.ErrNoCachedData)
		}
		return nil, fmt.Errorf("failed to load %s %s: %w", s.recordType, id, err)
	}

	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s %s: %w", s.recordType, id, err)
	}
	return &rec, nil
}

// LoadUI reads the display copy.
func (s *Store[T]) LoadUI(ctx context.Context, id string) (map[string]any, error) {
	raw, err := s.cache.Get(ctx, domain.UIRecordKey(s.recordType, id))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%s %s: %w", s.recordType, id, domain.ErrNoCachedData)
		}
		return nil, fmt.Errorf("failed to load display copy of %s %s: %w", s.recordType, id, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal display copy: %w", err)
	}
	return out, nil
}

// Redact produces the display-safe projection of a serialised record.
func (s *Store[T]) Redact(raw []byte) (map[string]any, error) {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("failed to decode record for redaction: %w", err)
	}
	return s.opts.redactor.Apply(generic), nil
}

// Snapshot is Redact for an in-memory record.
func (s *Store[T]) Snapshot(rec *T) map[string]any {
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil
	}
	out, err := s.Redact(raw)
	if err != nil {
		return nil
	}
	return out
}
