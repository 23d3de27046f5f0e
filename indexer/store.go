package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/core/types"
	"listingchain/native/listing"
	"listingchain/native/registry"
	"listingchain/observability"
)

// DefaultPageSize bounds Events when the caller passes no limit.
const DefaultPageSize = 100

var errNilDB = errors.New("indexer: database not configured")

// ErrSequenceGap is returned when an event does not directly follow the last
// indexed one. The projection is only valid over a gap-free log.
var ErrSequenceGap = errors.New("indexer: event sequence gap")

// ErrProjectionDrift is returned when a listing event refers to a listing the
// projection never saw created.
var ErrProjectionDrift = errors.New("indexer: listing missing from projection")

// Store appends published events to a SQL event log and keeps a listing
// projection current. It consumes events.Published values from the ledger;
// events without a sequence are ignored.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	mu      sync.Mutex
	lastErr error
}

// Open opens the event database at dsn and migrates the schema.
// postgres:// and postgresql:// DSNs use Postgres; anything else is a SQLite
// path or URI ("file::memory:" style DSNs for throwaway stores).
func Open(dsn string) (*Store, error) {
	d := dialector(dsn)
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s database: %w", d.Name(), err)
	}
	return New(db)
}

// IsPostgresDSN reports whether dsn names a Postgres server rather than a
// SQLite file.
func IsPostgresDSN(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

func dialector(dsn string) gorm.Dialector {
	if IsPostgresDSN(dsn) {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errNilDB
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Store{db: db, logger: slog.Default()}, nil
}

// SetLogger overrides the logger used to report write failures.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Err returns the most recent write failure, if any. Once set, the projection
// no longer reflects the ledger.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Emit implements events.Emitter. Emit cannot fail the committed call, so
// write errors are logged and kept for Err.
func (s *Store) Emit(evt events.Event) {
	payload := events.Payload(evt)
	if payload == nil || payload.Sequence == 0 {
		return
	}
	err := s.Index(context.Background(), payload)
	observability.Events().RecordIndexed(err)
	if err != nil {
		s.logger.Error("index event failed",
			slog.Uint64("sequence", payload.Sequence),
			slog.String("type", payload.Type),
			slog.Any("error", err))
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
	}
}

// Index writes one sequenced event and applies it to the projection in a
// single transaction. Re-indexing a known sequence is a no-op; skipping ahead
// fails with ErrSequenceGap.
func (s *Store) Index(ctx context.Context, evt *types.Event) error {
	if evt == nil || evt.Sequence == 0 {
		return fmt.Errorf("%w: event has no sequence", coreerrors.ErrInvalidArgument)
	}
	attrs, err := json.Marshal(evt.Attributes)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		last, err := lastSequence(tx)
		if err != nil {
			return err
		}
		if evt.Sequence <= last {
			return nil
		}
		if evt.Sequence != last+1 {
			return fmt.Errorf("%w: got %d after %d", ErrSequenceGap, evt.Sequence, last)
		}
		if err := tx.Create(&EventRecord{
			Sequence:   evt.Sequence,
			Type:       evt.Type,
			Attributes: string(attrs),
		}).Error; err != nil {
			return err
		}
		return project(tx, evt)
	})
}

func project(tx *gorm.DB, evt *types.Event) error {
	a := evt.Attributes
	switch evt.Type {
	case registry.EventTypeListingCreated:
		rec := ListingRecord{
			Address:        a["listing"],
			Registry:       a["registry"],
			Storage:        a["storage"],
			Seller:         a["seller"],
			Kind:           a["kind"],
			Position:       parseUint(a["index"]),
			ContentHash:    a["contentHash"],
			Price:          a["price"],
			UnitsAvailable: parseUint(a["units"]),
			Created:        parseUint(a["created"]),
			Expiration:     parseUint(a["expiration"]),
			LastSequence:   evt.Sequence,
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	case listing.EventTypeListingPurchased:
		return updateListing(tx, a["listing"], evt.Sequence, map[string]any{
			"units_available": parseUint(a["unitsAvailable"]),
			"purchases":       gorm.Expr("purchases + 1"),
		})
	case listing.EventTypeListingClosed:
		return updateListing(tx, a["listing"], evt.Sequence, map[string]any{
			"units_available": uint64(0),
			"closed":          true,
		})
	case listing.EventTypeListingRequested:
		return updateListing(tx, a["listing"], evt.Sequence, map[string]any{
			"purchases": gorm.Expr("purchases + 1"),
		})
	case listing.EventTypeListingUpdated:
		return updateListing(tx, a["listing"], evt.Sequence, map[string]any{
			"version":      parseUint(a["version"]),
			"content_hash": a["contentHash"],
		})
	}
	return nil
}

func updateListing(tx *gorm.DB, addr string, seq uint64, fields map[string]any) error {
	fields["last_sequence"] = seq
	res := tx.Model(&ListingRecord{}).Where("address = ?", addr).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s at sequence %d", ErrProjectionDrift, addr, seq)
	}
	return nil
}

// Events returns up to limit events with a sequence greater than after, in
// sequence order.
func (s *Store) Events(ctx context.Context, after uint64, limit int) ([]*types.Event, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	var rows []EventRecord
	if err := s.db.WithContext(ctx).
		Where("sequence > ?", after).
		Order("sequence ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Event, 0, len(rows))
	for _, row := range rows {
		evt := &types.Event{Sequence: row.Sequence, Type: row.Type}
		if err := json.Unmarshal([]byte(row.Attributes), &evt.Attributes); err != nil {
			return nil, fmt.Errorf("indexer: decode event %d: %w", row.Sequence, err)
		}
		out = append(out, evt)
	}
	return out, nil
}

// Listing returns the projection of the listing at addr.
func (s *Store) Listing(ctx context.Context, addr common.Address) (*ListingRecord, error) {
	var rec ListingRecord
	err := s.db.WithContext(ctx).First(&rec, "address = ?", addr.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: listing %s not indexed", coreerrors.ErrNotFound, addr.Hex())
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LastSequence reports the highest indexed sequence, zero when empty.
func (s *Store) LastSequence(ctx context.Context) (uint64, error) {
	return lastSequence(s.db.WithContext(ctx))
}

func lastSequence(tx *gorm.DB) (uint64, error) {
	var seq sql.NullInt64
	if err := tx.Model(&EventRecord{}).Select("MAX(sequence)").Row().Scan(&seq); err != nil {
		return 0, err
	}
	return uint64(seq.Int64), nil
}

func parseUint(raw string) uint64 {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
