package record

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"bestiary/internal/issuance/models"
	"bestiary/internal/rarity"
	"bestiary/pkg/platform/sentinel"
)

type RecordStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *RecordStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestRecordStoreSuite(t *testing.T) {
	suite.Run(t, new(RecordStoreSuite))
}

func (s *RecordStoreSuite) newRecord(id uint64) models.Record {
	return models.Record{
		ID:         id,
		Label:      "sporeling",
		Owner:      common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		CreatedAt:  time.Now(),
		Cost:       big.NewInt(840_000_000),
		Tier:       rarity.TierRare,
		GlobalRank: 40,
		CohortRank: id,
		CohortSize: 20,
	}
}

// TestCreateAndFind verifies the store persists records and surfaces the
// not-found sentinel for unknown ranks.
func (s *RecordStoreSuite) TestCreateAndFind() {
	s.Run("creates and finds record by ID", func() {
		rec := s.newRecord(5)
		s.Require().NoError(s.store.CreateIfAbsent(s.ctx, rec))

		found, err := s.store.FindByID(s.ctx, 5)
		s.Require().NoError(err)
		s.Equal(rec.Label, found.Label)
		s.Zero(rec.Cost.Cmp(found.Cost))
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, 99)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestExactlyOnce verifies the conflict sentinel and that the first record
// survives a duplicate insert untouched.
func (s *RecordStoreSuite) TestExactlyOnce() {
	first := s.newRecord(3)
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, first))

	second := s.newRecord(3)
	second.Label = "impostor"
	err := s.store.CreateIfAbsent(s.ctx, second)
	s.Require().ErrorIs(err, sentinel.ErrConflict)

	found, err := s.store.FindByID(s.ctx, 3)
	s.Require().NoError(err)
	s.Equal(first.Label, found.Label)
}

func (s *RecordStoreSuite) TestCount() {
	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)

	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.newRecord(1)))
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, s.newRecord(2)))

	count, err = s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(2), count)
}

// TestIsolation verifies callers cannot mutate stored state through the
// returned record's cost pointer.
func (s *RecordStoreSuite) TestIsolation() {
	rec := s.newRecord(7)
	s.Require().NoError(s.store.CreateIfAbsent(s.ctx, rec))

	found, err := s.store.FindByID(s.ctx, 7)
	s.Require().NoError(err)
	found.Cost.SetInt64(0)

	again, err := s.store.FindByID(s.ctx, 7)
	s.Require().NoError(err)
	s.Zero(again.Cost.Cmp(big.NewInt(840_000_000)))
}
