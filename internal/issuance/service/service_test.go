package service

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/suite"

	"bestiary/internal/audit"
	"bestiary/internal/issuance/models"
	"bestiary/internal/issuance/store/record"
	"bestiary/internal/issuance/store/state"
	"bestiary/internal/pricing"
	"bestiary/internal/rarity"
	"bestiary/internal/signing"
	dErrors "bestiary/pkg/domain-errors"
)

// Collaborator fakes. Behavior is driven through plain fields so each test
// reads as a scenario description.

type fakeBeacon struct {
	consumed *big.Int
	resolved bool
	seed     common.Hash
	issueErr error
	requests int
}

func (b *fakeBeacon) IssueRequest(_ context.Context, funds *big.Int) (*big.Int, error) {
	if b.issueErr != nil {
		return nil, b.issueErr
	}
	b.requests++
	if b.consumed == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(b.consumed), nil
}

func (b *fakeBeacon) IsResolved(_ context.Context, _ uint64) (bool, error) {
	return b.resolved, nil
}

func (b *fakeBeacon) ValueAfter(_ context.Context, _ uint64) (common.Hash, error) {
	return b.seed, nil
}

type fakeOracle struct {
	pairs map[string]bool
	quote pricing.Quote
}

func (o *fakeOracle) Supports(_ context.Context, pair string) (bool, error) {
	return o.pairs[pair], nil
}

func (o *fakeOracle) Quote(_ context.Context, _ string) (pricing.Quote, error) {
	return o.quote, nil
}

type fakeRenderer struct {
	ready    bool
	location string
	doc      []byte
}

func (r *fakeRenderer) IsReady(_ context.Context) (bool, error)        { return r.ready, nil }
func (r *fakeRenderer) BaseLocation(_ context.Context) (string, error) { return r.location, nil }
func (r *fakeRenderer) Render(_ context.Context, _ common.Hash, _ models.Record) ([]byte, error) {
	return r.doc, nil
}

type fakeRegistry struct {
	assigned  map[uint64]common.Address
	assignErr error
	// onAssign, when set, runs inside the registry call. Used to exercise
	// the reentrancy guard.
	onAssign func()
}

func (r *fakeRegistry) Assign(_ context.Context, id uint64, owner common.Address) error {
	if r.onAssign != nil {
		r.onAssign()
	}
	if r.assignErr != nil {
		return r.assignErr
	}
	if r.assigned == nil {
		r.assigned = make(map[uint64]common.Address)
	}
	r.assigned[id] = owner
	return nil
}

func (r *fakeRegistry) Exists(_ context.Context, id uint64) (bool, error) {
	_, ok := r.assigned[id]
	return ok, nil
}

type fakeChain struct {
	height uint64
	gas    uint64
	// onHeight, when set, runs inside Height. Used to hold a read mid-flight.
	onHeight func()
}

func (c *fakeChain) Height(_ context.Context) (uint64, error) {
	if c.onHeight != nil {
		c.onHeight()
	}
	return c.height, nil
}
func (c *fakeChain) GasPriceHint(_ context.Context) (uint64, error) { return c.gas, nil }

const testPair = "ETH-USD"

type ServiceSuite struct {
	suite.Suite
	ctx context.Context

	beacon   *fakeBeacon
	oracle   *fakeOracle
	renderer *fakeRenderer
	registry *fakeRegistry
	chain    *fakeChain

	states    *state.InMemory
	records   *record.InMemory
	auditSink *audit.InMemoryStore

	signerKey *ecdsa.PrivateKey
	svc       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()

	key, err := crypto.GenerateKey()
	s.Require().NoError(err)
	s.signerKey = key

	s.beacon = &fakeBeacon{seed: common.HexToHash("0xbeef")}
	s.oracle = &fakeOracle{
		pairs: map[string]bool{testPair: true},
		quote: pricing.Quote{Price: big.NewInt(2_000_000_000), Scale: big.NewInt(1_000_000)},
	}
	s.renderer = &fakeRenderer{ready: true, location: "https://render.example/", doc: []byte(`{"name":"x"}`)}
	s.registry = &fakeRegistry{}
	s.chain = &fakeChain{height: 100, gas: 20}

	s.states = state.NewInMemory(state.State{Settings: models.Settings{
		ExpirationWindow: 50,
		TotalCapacity:    20,
		RarityThresholds: []uint32{5, 15, 30, 50},
		Renderer:         common.HexToAddress("0x00000000000000000000000000000000000000cc"),
		CostUnit:         21_000,
		Signer:           crypto.PubkeyToAddress(key.PublicKey),
	}})
	s.records = record.NewInMemory()
	s.auditSink = audit.NewInMemoryStore()

	s.svc, err = New(s.ctx, s.states, s.records,
		Collaborators{
			Beacon:   s.beacon,
			Oracle:   s.oracle,
			Renderer: s.renderer,
			Registry: s.registry,
			Chain:    s.chain,
		},
		Params{CohortID: 7, QuotePair: testPair},
		WithAuditPublisher(audit.NewPublisher(s.auditSink)),
	)
	s.Require().NoError(err)
}

// openMinting drives the lifecycle forward: issue the randomness request at
// the current height and mark it resolved.
func (s *ServiceSuite) openMinting() {
	_, err := s.svc.StartIssuance(s.ctx, big.NewInt(1000))
	s.Require().NoError(err)
	s.beacon.resolved = true
}

func (s *ServiceSuite) signedClaim(rank uint64) models.Claim {
	c := models.Claim{
		Owner:      common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		Label:      "ember drake",
		GlobalRank: 40,
		CohortID:   7,
		CohortSize: 20,
		CohortRank: rank,
		Position:   3,
		Score:      91_500,
	}
	sig, err := signing.SignClaim(c, s.signerKey)
	s.Require().NoError(err)
	c.Signature = sig
	return c
}

func (s *ServiceSuite) requireCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Require().Truef(dErrors.HasCode(err, code), "expected code %s, got %v", code, err)
}

func (s *ServiceSuite) TestConstructionRejectsUnsupportedPair() {
	_, err := New(s.ctx, s.states, s.records,
		Collaborators{Beacon: s.beacon, Oracle: s.oracle, Renderer: s.renderer, Registry: s.registry, Chain: s.chain},
		Params{CohortID: 7, QuotePair: "DOGE-USD"},
	)
	s.Require().Error(err)
}

func (s *ServiceSuite) TestLifecyclePhases() {
	phase, err := s.svc.Phase(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseConfiguring, phase)

	_, err = s.svc.StartIssuance(s.ctx, big.NewInt(1000))
	s.Require().NoError(err)

	phase, err = s.svc.Phase(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseAwaitingRandomness, phase)

	s.beacon.resolved = true
	phase, err = s.svc.Phase(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseMintingOpen, phase)

	s.chain.height = 151 // one past the inclusive window
	phase, err = s.svc.Phase(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseClosed, phase)

	s.chain.height = 150 // the boundary itself still mints
	phase, err = s.svc.Phase(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseMintingOpen, phase)
}

func (s *ServiceSuite) TestAdminValidation() {
	s.Run("rejects null renderer", func() {
		s.requireCode(s.svc.SetRenderer(s.ctx, common.Address{}), dErrors.CodeInvalidReference)
	})

	s.Run("rejects null signer", func() {
		s.requireCode(s.svc.SetSigner(s.ctx, common.Address{}), dErrors.CodeInvalidReference)
	})

	s.Run("rejects zero capacity", func() {
		err := s.svc.SetSettings(s.ctx, 50, 0, []uint32{5, 15, 30, 50})
		s.requireCode(err, dErrors.CodeInvalidCapacity)
	})

	s.Run("rejects bad threshold sum without touching settings", func() {
		err := s.svc.SetSettings(s.ctx, 50, 10, []uint32{5, 15, 30, 49})
		s.requireCode(err, dErrors.CodeInvalidThresholdSum)

		settings, err := s.svc.Settings(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(20), settings.TotalCapacity)
	})

	s.Run("accepts a valid batch", func() {
		s.Require().NoError(s.svc.SetSettings(s.ctx, 10, 40, []uint32{1, 9, 40, 50}))
		settings, err := s.svc.Settings(s.ctx)
		s.Require().NoError(err)
		s.Equal(uint64(40), settings.TotalCapacity)
		s.Equal(uint64(10), settings.ExpirationWindow)
	})
}

func (s *ServiceSuite) TestConfiguringOnlyOpsLockAfterStart() {
	s.openMinting()

	err := s.svc.SetRenderer(s.ctx, common.HexToAddress("0x00000000000000000000000000000000000000dd"))
	s.requireCode(err, dErrors.CodeIllegalPhase)

	err = s.svc.SetSettings(s.ctx, 10, 40, []uint32{5, 15, 30, 50})
	s.requireCode(err, dErrors.CodeIllegalPhase)

	// The signer and cost unit stay mutable in every phase.
	s.Require().NoError(s.svc.SetCostUnit(s.ctx, 30_000))
	s.Require().NoError(s.svc.SetSigner(s.ctx, crypto.PubkeyToAddress(s.signerKey.PublicKey)))
}

func (s *ServiceSuite) TestStartIssuance() {
	s.Run("requires a configured renderer", func() {
		st, err := s.states.Load(s.ctx)
		s.Require().NoError(err)
		st.Settings.Renderer = common.Address{}
		s.Require().NoError(s.states.Save(s.ctx, st))

		_, err = s.svc.StartIssuance(s.ctx, big.NewInt(1000))
		s.requireCode(err, dErrors.CodeRendererNotReady)

		st.Settings.Renderer = common.HexToAddress("0x00000000000000000000000000000000000000cc")
		s.Require().NoError(s.states.Save(s.ctx, st))
	})

	s.Run("requires the renderer to report ready", func() {
		s.renderer.ready = false
		_, err := s.svc.StartIssuance(s.ctx, big.NewInt(1000))
		s.requireCode(err, dErrors.CodeRendererNotReady)
		s.renderer.ready = true
	})

	s.Run("records the height and refunds the remainder", func() {
		s.beacon.consumed = big.NewInt(300)
		result, err := s.svc.StartIssuance(s.ctx, big.NewInt(1000))
		s.Require().NoError(err)
		s.Equal(uint64(100), result.RequestedAt)
		s.Zero(result.Consumed.Cmp(big.NewInt(300)))
		s.Zero(result.Refund.Cmp(big.NewInt(700)))
		s.Equal(1, s.beacon.requests)
	})

	s.Run("is irreversible", func() {
		_, err := s.svc.StartIssuance(s.ctx, big.NewInt(1000))
		s.requireCode(err, dErrors.CodeIllegalPhase)
		s.Equal(1, s.beacon.requests)
	})
}

func (s *ServiceSuite) TestStartIssuanceOverconsumption() {
	s.beacon.consumed = big.NewInt(2000)
	_, err := s.svc.StartIssuance(s.ctx, big.NewInt(1000))
	s.requireCode(err, dErrors.CodeInternal)

	// The failed attempt must not flip the phase.
	phase, err := s.svc.Phase(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseConfiguring, phase)
}

func (s *ServiceSuite) TestSubmitClaim() {
	s.openMinting()

	s.Run("mints the record a valid claim describes", func() {
		claim := s.signedClaim(5)
		rec, err := s.svc.SubmitClaim(s.ctx, claim)
		s.Require().NoError(err)

		s.Equal(uint64(5), rec.ID)
		s.Equal(claim.Label, rec.Label)
		s.Equal(claim.Owner, rec.Owner)
		s.True(rec.Exists())
		// rank 5 of 20 -> percentile 25 -> third tier with [5,15,30,50]
		s.Equal(rarity.TierRare, rec.Tier)
		// 20 * 21000 * 2000e6 / 1e6
		s.Zero(rec.Cost.Cmp(big.NewInt(840_000_000)))

		s.Equal(claim.Owner, s.registry.assigned[5])

		stored, err := s.svc.Record(s.ctx, 5)
		s.Require().NoError(err)
		s.Equal(rec.ID, stored.ID)
	})

	s.Run("rejects a duplicate rank and keeps the first record", func() {
		dup := s.signedClaim(5)
		dup.Label = "impostor"
		dup.Signature = nil
		sig, err := signing.SignClaim(dup, s.signerKey)
		s.Require().NoError(err)
		dup.Signature = sig

		_, err = s.svc.SubmitClaim(s.ctx, dup)
		s.requireCode(err, dErrors.CodeAlreadyMinted)

		stored, err := s.svc.Record(s.ctx, 5)
		s.Require().NoError(err)
		s.Equal("ember drake", stored.Label)
	})

	s.Run("rejects a foreign cohort", func() {
		claim := s.signedClaim(6)
		claim.CohortID = 8
		_, err := s.svc.SubmitClaim(s.ctx, claim)
		s.requireCode(err, dErrors.CodeGroupMismatch)
	})

	s.Run("rejects an oversized cohort", func() {
		claim := s.signedClaim(6)
		claim.CohortSize = 21
		_, err := s.svc.SubmitClaim(s.ctx, claim)
		s.requireCode(err, dErrors.CodeInvalidGroupSize)
	})

	s.Run("rejects a rank outside the cohort", func() {
		claim := s.signedClaim(6)
		claim.CohortRank = 21
		_, err := s.svc.SubmitClaim(s.ctx, claim)
		s.requireCode(err, dErrors.CodeInvalidGroupRank)
	})
}

func (s *ServiceSuite) TestSubmitClaimSignatureChecks() {
	s.openMinting()

	s.Run("rejects a claim signed by the wrong key", func() {
		other, err := crypto.GenerateKey()
		s.Require().NoError(err)
		claim := s.signedClaim(3)
		claim.Signature, err = signing.SignClaim(claim, other)
		s.Require().NoError(err)

		_, err = s.svc.SubmitClaim(s.ctx, claim)
		s.requireCode(err, dErrors.CodeBadSignature)
	})

	s.Run("rejects a tampered claim", func() {
		claim := s.signedClaim(3)
		claim.Score++
		_, err := s.svc.SubmitClaim(s.ctx, claim)
		s.requireCode(err, dErrors.CodeBadSignature)
	})

	s.Run("rejects everything when no signer is configured", func() {
		st, err := s.states.Load(s.ctx)
		s.Require().NoError(err)
		st.Settings.Signer = common.Address{}
		s.Require().NoError(s.states.Save(s.ctx, st))

		_, err = s.svc.SubmitClaim(s.ctx, s.signedClaim(3))
		s.requireCode(err, dErrors.CodeBadSignature)
	})
}

func (s *ServiceSuite) TestSubmitClaimOutsideMintingWindow() {
	_, err := s.svc.SubmitClaim(s.ctx, s.signedClaim(1))
	s.requireCode(err, dErrors.CodeIllegalPhase)

	s.openMinting()
	s.chain.height = 151
	_, err = s.svc.SubmitClaim(s.ctx, s.signedClaim(1))
	s.requireCode(err, dErrors.CodeIllegalPhase)
}

func (s *ServiceSuite) TestCapacityExhaustionCloses() {
	st, err := s.states.Load(s.ctx)
	s.Require().NoError(err)
	st.Settings.TotalCapacity = 1
	s.Require().NoError(s.states.Save(s.ctx, st))
	s.openMinting()

	claim := s.signedClaim(1)
	claim.CohortSize = 1
	claim.Signature, err = signing.SignClaim(claim, s.signerKey)
	s.Require().NoError(err)
	_, err = s.svc.SubmitClaim(s.ctx, claim)
	s.Require().NoError(err)

	phase, err := s.svc.Phase(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseClosed, phase)

	_, err = s.svc.SubmitClaim(s.ctx, claim)
	s.requireCode(err, dErrors.CodeIllegalPhase)
}

func (s *ServiceSuite) TestRegistryRefusalAbortsMint() {
	s.openMinting()
	s.registry.assignErr = context.DeadlineExceeded

	_, err := s.svc.SubmitClaim(s.ctx, s.signedClaim(4))
	s.requireCode(err, dErrors.CodeInternal)

	_, err = s.svc.Record(s.ctx, 4)
	s.requireCode(err, dErrors.CodeNotFound)
}

// TestConcurrentReadDoesNotBlockMutation holds a Phase read inside its chain
// round trip and mutates from another goroutine. Reads make no partial
// mutations, so they must neither trip the reentrancy guard nor poison it for
// a mutation running at the same time.
func (s *ServiceSuite) TestConcurrentReadDoesNotBlockMutation() {
	var armed atomic.Bool
	armed.Store(true)
	blocked := make(chan struct{})
	release := make(chan struct{})
	s.chain.onHeight = func() {
		if armed.CompareAndSwap(true, false) {
			close(blocked)
			<-release
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.svc.Phase(s.ctx)
		done <- err
	}()

	<-blocked
	s.Require().NoError(s.svc.SetCostUnit(s.ctx, 42))
	close(release)
	s.Require().NoError(<-done)

	settings, err := s.svc.Settings(s.ctx)
	s.Require().NoError(err)
	s.Equal(uint64(42), settings.CostUnit)
}

func (s *ServiceSuite) TestReentrantMutationRejected() {
	s.openMinting()

	var nested error
	s.registry.onAssign = func() {
		nested = s.svc.SetCostUnit(s.ctx, 1)
	}

	_, err := s.svc.SubmitClaim(s.ctx, s.signedClaim(2))
	s.Require().NoError(err)
	s.requireCode(nested, dErrors.CodeReentrantCall)
}

func (s *ServiceSuite) TestPreviewClaim() {
	s.openMinting()

	claim := s.signedClaim(5)
	claim.Signature = nil

	rec, err := s.svc.PreviewClaim(s.ctx, claim)
	s.Require().NoError(err)
	s.False(rec.Exists())
	s.Equal(rarity.TierRare, rec.Tier)
	s.Zero(rec.Cost.Cmp(big.NewInt(840_000_000)))

	count, err := s.records.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestStatusExposesSeedOnceResolved() {
	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseConfiguring, status.Phase)
	s.Nil(status.Seed)

	s.openMinting()
	status, err = s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(models.PhaseMintingOpen, status.Phase)
	s.Require().NotNil(status.Seed)
	s.Equal(s.beacon.seed, *status.Seed)
	s.Equal(uint64(100), status.RandomnessRequestedAt)
	s.Equal(s.renderer.location, status.DocumentBase)
}

func (s *ServiceSuite) TestStatusOmitsDocumentBaseWithoutRenderer() {
	st, err := s.states.Load(s.ctx)
	s.Require().NoError(err)
	st.Settings.Renderer = common.Address{}
	s.Require().NoError(s.states.Save(s.ctx, st))

	status, err := s.svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Empty(status.DocumentBase)
}

func (s *ServiceSuite) TestDocument() {
	s.openMinting()
	_, err := s.svc.SubmitClaim(s.ctx, s.signedClaim(5))
	s.Require().NoError(err)

	doc, err := s.svc.Document(s.ctx, 5)
	s.Require().NoError(err)
	s.Equal(s.renderer.doc, doc)

	_, err = s.svc.Document(s.ctx, 6)
	s.requireCode(err, dErrors.CodeNotFound)
}

func (s *ServiceSuite) TestAuditTrail() {
	s.openMinting()
	_, err := s.svc.SubmitClaim(s.ctx, s.signedClaim(5))
	s.Require().NoError(err)

	events := s.auditSink.Events()
	s.Require().Len(events, 2)
	s.Equal(audit.ActionIssuanceStarted, events[0].Action)
	s.Equal(audit.ActionRecordMinted, events[1].Action)
	s.Equal(uint64(5), events[1].RecordID)
	for _, ev := range events {
		s.False(ev.Timestamp.IsZero())
		s.WithinDuration(time.Now(), ev.Timestamp, time.Minute)
	}
}
