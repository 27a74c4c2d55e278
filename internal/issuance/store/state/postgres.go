package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Postgres keeps the issuance singleton in a one-row table. Settings travel
// as JSON; the request height gets its own column so it can be read without
// deserializing.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const Schema = `
CREATE TABLE IF NOT EXISTS issuance_state (
	id           SMALLINT PRIMARY KEY CHECK (id = 1),
	settings     JSONB NOT NULL,
	requested_at BIGINT NOT NULL DEFAULT 0
)`

func (s *Postgres) Load(ctx context.Context) (State, error) {
	var (
		settingsJSON []byte
		requestedAt  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT settings, requested_at FROM issuance_state WHERE id = 1`,
	).Scan(&settingsJSON, &requestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// Never saved: the caller gets the zero state (Configuring).
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("load issuance state: %w", err)
	}
	var st State
	if err := json.Unmarshal(settingsJSON, &st.Settings); err != nil {
		return State{}, fmt.Errorf("decode settings: %w", err)
	}
	st.RandomnessRequestedAt = uint64(requestedAt)
	return st, nil
}

func (s *Postgres) Save(ctx context.Context, st State) error {
	settingsJSON, err := json.Marshal(st.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO issuance_state (id, settings, requested_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET settings = $1, requested_at = $2`,
		settingsJSON, int64(st.RandomnessRequestedAt),
	)
	if err != nil {
		return fmt.Errorf("save issuance state: %w", err)
	}
	return nil
}
