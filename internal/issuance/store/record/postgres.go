package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/issuance/models"
	"bestiary/internal/rarity"
	"bestiary/pkg/platform/sentinel"
)

// Postgres is the production record store. The primary key on id gives the
// exactly-once guarantee: a duplicate insert affects zero rows and surfaces
// as sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema is the DDL the store expects. Migrations live with the deployment;
// tests apply this directly.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
	id          BIGINT PRIMARY KEY,
	label       TEXT NOT NULL,
	owner       BYTEA NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	cost        NUMERIC(78) NOT NULL,
	tier        SMALLINT NOT NULL,
	global_rank BIGINT NOT NULL,
	cohort_rank BIGINT NOT NULL,
	cohort_size BIGINT NOT NULL,
	position    BIGINT NOT NULL,
	score       BIGINT NOT NULL
)`

func (s *Postgres) CreateIfAbsent(ctx context.Context, rec models.Record) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, label, owner, created_at, cost, tier,
			global_rank, cohort_rank, cohort_size, position, score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`,
		int64(rec.ID), rec.Label, rec.Owner.Bytes(), rec.CreatedAt,
		rec.Cost.String(), int16(rec.Tier), int64(rec.GlobalRank),
		int64(rec.CohortRank), int64(rec.CohortSize), int64(rec.Position),
		int64(rec.Score),
	)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id uint64) (models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, label, owner, created_at, cost, tier,
			global_rank, cohort_rank, cohort_size, position, score
		FROM records WHERE id = $1`, int64(id))

	var (
		rec      models.Record
		recID    int64
		owner    []byte
		created  time.Time
		costText string
		tier     int16
		facts    [5]int64
	)
	err := row.Scan(&recID, &rec.Label, &owner, &created, &costText, &tier,
		&facts[0], &facts[1], &facts[2], &facts[3], &facts[4])
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("load record: %w", err)
	}
	cost, ok := new(big.Int).SetString(costText, 10)
	if !ok {
		return models.Record{}, fmt.Errorf("load record %d: malformed cost %q", id, costText)
	}
	rec.ID = uint64(recID)
	rec.Owner = common.BytesToAddress(owner)
	rec.CreatedAt = created
	rec.Cost = cost
	rec.Tier = rarity.Tier(tier)
	rec.GlobalRank = uint64(facts[0])
	rec.CohortRank = uint64(facts[1])
	rec.CohortSize = uint64(facts[2])
	rec.Position = uint64(facts[3])
	rec.Score = uint64(facts[4])
	return rec, nil
}

func (s *Postgres) Count(ctx context.Context) (uint64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return uint64(count), nil
}
