package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"

	"github.com/showcall/stagetimer/internal/models"
)

// PostgresStore persists one JSONB snapshot row per room.
type PostgresStore struct {
	db *sql.DB
}

const createRoomsTable = `
CREATE TABLE IF NOT EXISTS rooms (
	code       TEXT PRIMARY KEY,
	snapshot   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore connects to Postgres and ensures the rooms table exists.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(createRoomsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure rooms table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveRoom(ctx context.Context, snap *models.RoomSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal room snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rooms (code, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (code) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		snap.Code,
		pqtype.NullRawMessage{RawMessage: data, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("failed to upsert room %s: %w", snap.Code, err)
	}
	return nil
}

func (s *PostgresStore) LoadRooms(ctx context.Context) ([]*models.RoomSnapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT snapshot FROM rooms`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var snaps []*models.RoomSnapshot
	for rows.Next() {
		var raw pqtype.NullRawMessage
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan room row: %w", err)
		}
		if !raw.Valid {
			continue
		}
		var snap models.RoomSnapshot
		if err := json.Unmarshal(raw.RawMessage, &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal room snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate room rows: %w", err)
	}
	return snaps, nil
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, code string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE code = $1`, code); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", code, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
