// Package partition provides the per-visitor partition store. Every visitor
// identity owns exactly one partition; creation is an atomic check-and-create
// against a unique constraint, never an application-level read-then-write.
package partition

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/domain/entry"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/security"
)

// Handle identifies a visitor's partition and whether this call created it.
type Handle struct {
	Identity string
	Created  bool
}

// Store is the SQL-backed partition store. All visitor identities share one
// partitioned table keyed by identity rather than a table per visitor, which
// avoids schema-level proliferation while keeping rows strictly scoped.
type Store struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewStore creates the store and ensures its schema exists.
func NewStore(db *database.DB, logger *logging.ChanneledLogger) (*Store, error) {
	s := &Store{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) createSchema() error {
	for _, tableSQL := range tables {
		if _, err := s.db.Exec(tableSQL); err != nil {
			return fmt.Errorf("failed to create table for query [%s]: %w", tableSQL, err)
		}
	}
	for _, indexSQL := range indexes {
		if _, err := s.db.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index for query [%s]: %w", indexSQL, err)
		}
	}
	return nil
}

// EnsurePartition returns the partition for identity, creating it exactly
// once. Concurrent first contact for the same identity resolves to a single
// partition: the losing INSERT hits the unique constraint and is treated as
// success-by-reuse.
func (s *Store) EnsurePartition(identity string) (Handle, error) {
	if identity == "" {
		return Handle{}, fmt.Errorf("ensure partition: %w", entry.ErrValidation)
	}

	const query = `
		INSERT INTO partitions (identity, created_at)
		VALUES (?, ?)
		ON CONFLICT(identity) DO NOTHING`

	res, err := s.db.Exec(query, identity, time.Now().UTC())
	if err != nil {
		return Handle{}, fmt.Errorf("ensure partition for %s: %w", identity, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return Handle{}, fmt.Errorf("ensure partition for %s: %w", identity, err)
	}

	created := affected > 0
	if created {
		s.logger.Database().Info("Partition created", "identity", identity)
	} else {
		s.logger.Database().Debug("Partition reused", "identity", identity)
	}
	return Handle{Identity: identity, Created: created}, nil
}

// AppendRecord writes one record into the identity's partition,
// auto-creating the partition if missing.
func (s *Store) AppendRecord(identity string, rec *entry.PartitionRecord) error {
	if _, err := s.EnsurePartition(identity); err != nil {
		return err
	}

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("append record: marshal payload: %w", err)
	}

	id := rec.ID
	if id == "" {
		id = security.GenerateULID()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO partition_records (id, identity, data_type, payload, page, step_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, id, identity, rec.DataType, string(payload), rec.Page, rec.StepNumber, createdAt)
	if err != nil {
		return fmt.Errorf("append record for %s: %w", identity, err)
	}
	return nil
}

// ListRecords returns all records for an identity, newest first, with
// payloads deserialized.
func (s *Store) ListRecords(identity string) ([]*entry.PartitionRecord, error) {
	const query = `
		SELECT id, identity, data_type, payload, page, step_number, created_at
		FROM partition_records
		WHERE identity = ?
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.Query(query, identity)
	if err != nil {
		return nil, fmt.Errorf("list records for %s: %w", identity, err)
	}
	defer rows.Close()

	var records []*entry.PartitionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Reap removes partitions with no activity for more than olderThanDays.
// This is advisory housekeeping; callers log and move on when it fails.
func (s *Store) Reap(olderThanDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)

	const stale = `
		SELECT p.identity FROM partitions p
		WHERE COALESCE(
			(SELECT MAX(r.created_at) FROM partition_records r WHERE r.identity = p.identity),
			p.created_at
		) < ?`

	rows, err := s.db.Query(stale, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reap: select stale partitions: %w", err)
	}
	var identities []string
	for rows.Next() {
		var identity string
		if err := rows.Scan(&identity); err != nil {
			rows.Close()
			return 0, fmt.Errorf("reap: scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("reap: %w", err)
	}

	for _, identity := range identities {
		if _, err := s.db.Exec(`DELETE FROM partition_records WHERE identity = ?`, identity); err != nil {
			return 0, fmt.Errorf("reap: delete records for %s: %w", identity, err)
		}
		if _, err := s.db.Exec(`DELETE FROM partitions WHERE identity = ?`, identity); err != nil {
			return 0, fmt.Errorf("reap: delete partition %s: %w", identity, err)
		}
	}

	if len(identities) > 0 {
		s.logger.Database().Info("Reaped inactive partitions", "count", len(identities), "olderThanDays", olderThanDays)
	}
	return len(identities), nil
}

func scanRecord(rows *sql.Rows) (*entry.PartitionRecord, error) {
	var rec entry.PartitionRecord
	var payload string
	if err := rows.Scan(&rec.ID, &rec.Identity, &rec.DataType, &payload, &rec.Page, &rec.StepNumber, &rec.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &rec.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal record payload: %w", err)
	}
	return &rec, nil
}

// Schema definitions. One partitioned table keyed by identity with an index,
// guarded by a unique constraint on the partitions registry.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS partitions (identity TEXT PRIMARY KEY, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
	`CREATE TABLE IF NOT EXISTS partition_records (id TEXT PRIMARY KEY, identity TEXT NOT NULL REFERENCES partitions(identity), data_type TEXT NOT NULL, payload TEXT NOT NULL, page TEXT, step_number INTEGER, created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP)`,
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_partition_records_identity ON partition_records(identity)`,
	`CREATE INDEX IF NOT EXISTS idx_partition_records_created_at ON partition_records(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_partition_records_data_type ON partition_records(data_type)`,
}
