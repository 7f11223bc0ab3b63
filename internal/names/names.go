// Package names is an in-process name service: typed records published
// under a zone and label, plus a caching resolver in front of any record
// source.
package names

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
)

// Record types understood by the service.
const (
	TypeIdentity = "IDENTITY"
	TypeSocial   = "SOCIAL"
	TypeText     = "TEXT"
	TypePKey     = "PKEY"
)

// NeverExpires marks a record without an expiry.
const NeverExpires uint64 = math.MaxUint64

// DefaultZone is the directory zone user identities are published into.
const DefaultZone = "social"

var (
	// ErrNotFound indicates no live record matches the lookup.
	ErrNotFound = errors.New("name record not found")
	// ErrInvalidRecord indicates a record that cannot be stored or parsed.
	ErrInvalidRecord = errors.New("invalid name record")
)

// Record is one typed value under a name. Expiration is a unix timestamp
// in seconds.
type Record struct {
	Type       string `json:"record_type"`
	Data       string `json:"data"`
	Expiration uint64 `json:"expiration"`
	Flags      uint32 `json:"flags"`
}

// Expired reports whether the record is past its expiration at now.
func (r Record) Expired(now time.Time) bool {
	if r.Expiration == NeverExpires {
		return false
	}
	return uint64(now.Unix()) >= r.Expiration
}

// Resolver looks up records of one type under zone and label.
type Resolver interface {
	Lookup(ctx context.Context, zone, label, recordType string) ([]Record, error)
}

// Registry stores records in memory. It satisfies Resolver.
type Registry struct {
	localZone string

	mu      sync.RWMutex
	records map[string][]Record

	// NowFunc overrides time.Now for expiry checks.
	NowFunc func() time.Time
}

// NewRegistry returns an empty registry whose local zone is zone, or
// DefaultZone when zone is empty.
func NewRegistry(zone string) *Registry {
	if strings.TrimSpace(zone) == "" {
		zone = DefaultZone
	}
	return &Registry{
		localZone: zone,
		records:   make(map[string][]Record),
		NowFunc:   time.Now,
	}
}

// LocalZone returns the zone LookupLocal and StoreLocal operate on.
func (r *Registry) LocalZone() string { return r.localZone }

// Store appends rec under zone and label.
func (r *Registry) Store(_ context.Context, zone, label string, rec Record) error {
	if zone == "" || label == "" || rec.Type == "" {
		return fmt.Errorf("store %q in %q: %w", label, zone, ErrInvalidRecord)
	}
	key := recordKey(zone, label, rec.Type)

	r.mu.Lock()
	r.records[key] = append(r.records[key], rec)
	r.mu.Unlock()
	return nil
}

// StoreLocal stores rec in the local zone.
func (r *Registry) StoreLocal(ctx context.Context, label string, rec Record) error {
	return r.Store(ctx, r.localZone, label, rec)
}

// Lookup returns the live records of recordType under zone and label.
func (r *Registry) Lookup(_ context.Context, zone, label, recordType string) ([]Record, error) {
	now := r.now()

	r.mu.RLock()
	stored := r.records[recordKey(zone, label, recordType)]
	live := make([]Record, 0, len(stored))
	for _, rec := range stored {
		if !rec.Expired(now) {
			live = append(live, rec)
		}
	}
	r.mu.RUnlock()

	if len(live) == 0 {
		return nil, fmt.Errorf("%s %q in %q: %w", recordType, label, zone, ErrNotFound)
	}
	return live, nil
}

// LookupLocal resolves label in the local zone.
func (r *Registry) LookupLocal(ctx context.Context, label, recordType string) ([]Record, error) {
	return r.Lookup(ctx, r.localZone, label, recordType)
}

func (r *Registry) now() time.Time {
	if r.NowFunc != nil {
		return r.NowFunc()
	}
	return time.Now()
}

// Labels are case-insensitive.
func recordKey(zone, label, recordType string) string {
	return zone + ":" + strings.ToLower(label) + ":" + recordType
}

// IdentityRecord binds username to peerID.
func IdentityRecord(peerID, username string) Record {
	return Record{
		Type:       TypeIdentity,
		Data:       peerID + ":" + username,
		Expiration: NeverExpires,
	}
}

// ParseIdentity splits an IDENTITY record into its peer and username.
func ParseIdentity(rec Record) (peerID, username string, err error) {
	if rec.Type != TypeIdentity {
		return "", "", fmt.Errorf("record type %s: %w", rec.Type, ErrInvalidRecord)
	}
	peerID, username, ok := strings.Cut(rec.Data, ":")
	if !ok || peerID == "" || username == "" {
		return "", "", fmt.Errorf("identity data %q: %w", rec.Data, ErrInvalidRecord)
	}
	return peerID, username, nil
}

// ResolveIdentity finds the peer published under username in zone. When
// several identities exist the most recently stored wins.
func ResolveIdentity(ctx context.Context, resolver Resolver, zone, username string) (string, error) {
	records, err := resolver.Lookup(ctx, zone, username, TypeIdentity)
	if err != nil {
		return "", err
	}
	peerID, _, err := ParseIdentity(records[len(records)-1])
	if err != nil {
		return "", err
	}
	return peerID, nil
}
