// Package postgres is the pgx-backed persistence layer the dispatcher, rule
// cache, and topology resolver read from and write to (spec.md §6's
// insert-event/fetch-rules contracts). Grounded on
// bobbydeveaux-starbucks-mugs's internal/server/storage/postgres.go pgxpool
// usage, adapted from its tripwire-alert domain to fleetalert's rule/event/
// device/group domain.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fleetalert/engine/internal/model"
	"github.com/fleetalert/engine/internal/rulecache"
)

// Store is the PostgreSQL-backed persistence layer for rules, events, and
// topology.
type Store struct {
	pool *pgxpool.Pool
}

// New opens a pgxpool connection to dsn and pings the database.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Exec runs a raw SQL statement against the pool. It exists for migration
// and test-fixture setup; production code paths use the typed methods
// below.
func (s *Store) Exec(ctx context.Context, sql string) error {
	_, err := s.pool.Exec(ctx, sql)
	return err
}

// InsertEvent persists event and returns the id the store assigned
// (spec.md §6: insert-event(event) -> id | error).
func (s *Store) InsertEvent(ctx context.Context, event model.Event) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO alert_events
			(alert_time, requires_ack, severity, message, target_id, rule_id, value)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING alert_id`,
		event.AlertTime,
		event.RequiresAck,
		event.Severity.String(),
		event.Message,
		event.TargetID,
		event.RuleID,
		event.Value,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// FetchRules implements rulecache.Store: it returns every rule row with its
// store-authoritative id/name/requires-ack fields plus the raw JSON
// definition (spec.md §4.1's reload contract).
func (s *Store) FetchRules(ctx context.Context) ([]rulecache.Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT rule_id, name, requires_ack, definition
		FROM   alert_rules
		ORDER  BY rule_id`)
	if err != nil {
		return nil, fmt.Errorf("fetch rules: %w", err)
	}
	defer rows.Close()

	var out []rulecache.Row
	for rows.Next() {
		var row rulecache.Row
		if err := rows.Scan(&row.ID, &row.Name, &row.RequiresAck, &row.Definition); err != nil {
			return nil, fmt.Errorf("scan rule row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Devices implements topology.Store: every monitored device keyed by id.
func (s *Store) Devices(ctx context.Context) (map[int64]model.Device, error) {
	rows, err := s.pool.Query(ctx, `SELECT device_id, hostname FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("fetch devices: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]model.Device)
	for rows.Next() {
		var d model.Device
		if err := rows.Scan(&d.ID, &d.Hostname); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		out[d.ID] = d
	}
	return out, rows.Err()
}

// Groups implements topology.Store: every group's raw member ids, which may
// reference either a device or a nested group.
func (s *Store) Groups(ctx context.Context) (map[int64][]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT group_id, array_agg(member_id)
		FROM   group_members
		GROUP  BY group_id`)
	if err != nil {
		return nil, fmt.Errorf("fetch groups: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]int64)
	for rows.Next() {
		var groupID int64
		var members []int64
		if err := rows.Scan(&groupID, &members); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out[groupID] = members
	}
	return out, rows.Err()
}

// AckEvent records an operator acknowledgement, per SPEC_FULL.md §7's
// supplemented ack surface. The core evaluation path never calls it, and
// internal/adminapi exposes no route that does.
func (s *Store) AckEvent(ctx context.Context, alertID int64, actor string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE alert_events
		SET    acked = true, ack_time = now(), ack_actor = $2
		WHERE  alert_id = $1 AND requires_ack`,
		alertID, actor,
	)
	if err != nil {
		return fmt.Errorf("ack event %d: %w", alertID, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
