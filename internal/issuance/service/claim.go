package service

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/audit"
	"bestiary/internal/issuance/models"
	"bestiary/internal/pricing"
	"bestiary/internal/rarity"
	"bestiary/internal/signing"
	dErrors "bestiary/pkg/domain-errors"
	"bestiary/pkg/platform/sentinel"
)

// SubmitClaim validates a signed claim and mints the record it describes.
// The record identifier is the claimed cohort rank, so each slot in the
// ranking can be minted exactly once; retries after an ambiguous failure land
// on AlreadyMinted and change nothing.
func (s *Service) SubmitClaim(ctx context.Context, claim models.Claim) (models.Record, error) {
	ctx, span := s.tracer.Start(ctx, "issuance.SubmitClaim")
	defer span.End()

	start := time.Now()
	rec, err := s.submitClaim(ctx, claim)
	if s.metrics != nil {
		s.metrics.ClaimLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.ClaimsRejected.WithLabelValues(string(dErrors.CodeOf(err))).Inc()
		} else {
			s.metrics.RecordsMinted.Inc()
		}
	}
	return rec, err
}

func (s *Service) submitClaim(ctx context.Context, claim models.Claim) (models.Record, error) {
	unlock, err := s.beginMutation()
	if err != nil {
		return models.Record{}, err
	}
	defer unlock()

	snap, err := s.loadSnapshot(ctx, true)
	if err != nil {
		return models.Record{}, err
	}
	if err := requirePhase(snap, models.PhaseMintingOpen); err != nil {
		return models.Record{}, err
	}

	// Step 1: fact consistency against the issuance context.
	if err := claim.CheckFacts(s.params.CohortID, snap.state.Settings.TotalCapacity); err != nil {
		return models.Record{}, err
	}

	// Step 2: the claim must carry the authority's signature.
	if err := s.verifySignature(claim, snap.state.Settings.Signer); err != nil {
		return models.Record{}, err
	}

	// Step 3: the cohort rank is the identifier; the zero-timestamp
	// sentinel makes the duplicate check cheap before any external call.
	if _, err := s.records.FindByID(ctx, claim.CohortRank); err == nil {
		return models.Record{}, dErrors.New(dErrors.CodeAlreadyMinted, "record already minted for this rank")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "check existing record")
	}

	// Step 4: derive tier and cost.
	rec, err := s.deriveRecord(ctx, claim, snap.state.Settings, true)
	if err != nil {
		return models.Record{}, err
	}

	// Step 5: assign ownership in the external registry before the local
	// commit so a registry refusal aborts the whole operation. The
	// mutation lock keeps the step-3 check authoritative in between.
	err = s.collaboratorSection(func() error {
		return s.collab.Registry.Assign(ctx, rec.ID, claim.Owner)
	})
	if err != nil {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "assign record ownership")
	}

	if err := s.records.CreateIfAbsent(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.Record{}, dErrors.New(dErrors.CodeAlreadyMinted, "record already minted for this rank")
		}
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "persist record")
	}

	s.logger.InfoContext(ctx, "record minted",
		"id", rec.ID,
		"tier", rec.Tier.String(),
		"owner", rec.Owner.Hex(),
	)
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionRecordMinted,
		Actor:    claim.Owner.Hex(),
		RecordID: rec.ID,
		Detail:   rec.Tier.String(),
	})
	return rec, nil
}

// PreviewClaim runs fact validation and attribute derivation without
// signature verification or persistence, so clients can display the creature
// a claim would mint before submitting it.
func (s *Service) PreviewClaim(ctx context.Context, claim models.Claim) (models.Record, error) {
	snap, err := s.loadSnapshot(ctx, false)
	if err != nil {
		return models.Record{}, err
	}
	if err := claim.CheckFacts(s.params.CohortID, snap.state.Settings.TotalCapacity); err != nil {
		return models.Record{}, err
	}
	rec, err := s.deriveRecord(ctx, claim, snap.state.Settings, false)
	if err != nil {
		return models.Record{}, err
	}
	// Preview records are never persisted; the zero CreatedAt says so.
	rec.CreatedAt = time.Time{}
	return rec, nil
}

func (s *Service) verifySignature(claim models.Claim, signer common.Address) error {
	if signer == (common.Address{}) {
		return dErrors.New(dErrors.CodeBadSignature, "no authorized signer configured")
	}
	recovered, err := signing.RecoverSigner(signing.ClaimDigest(claim), claim.Signature)
	if err != nil {
		return err
	}
	if recovered != signer {
		return dErrors.New(dErrors.CodeBadSignature, "claim not signed by the authorized signer")
	}
	return nil
}

// deriveRecord computes the rarity tier and cost for a fact-checked claim.
// The cost-input fetch is guarded only on the mutating path; previews run it
// unguarded.
func (s *Service) deriveRecord(ctx context.Context, claim models.Claim, settings models.Settings, mutating bool) (models.Record, error) {
	tier, err := rarity.Classify(rarity.Percentile(claim.CohortRank, claim.CohortSize), settings.RarityThresholds)
	if err != nil {
		return models.Record{}, err
	}

	var (
		gasHint uint64
		quote   pricing.Quote
	)
	fetch := func() error {
		var inner error
		gasHint, inner = s.collab.Chain.GasPriceHint(ctx)
		if inner != nil {
			return inner
		}
		quote, inner = s.collab.Oracle.Quote(ctx, s.params.QuotePair)
		return inner
	}
	if mutating {
		err = s.collaboratorSection(fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "fetch cost inputs")
	}
	cost, err := pricing.Estimate(gasHint, settings.CostUnit, quote)
	if err != nil {
		return models.Record{}, err
	}

	return models.Record{
		ID:         claim.CohortRank,
		Label:      claim.Label,
		Owner:      claim.Owner,
		CreatedAt:  time.Now(),
		Cost:       cost,
		Tier:       tier,
		GlobalRank: claim.GlobalRank,
		CohortRank: claim.CohortRank,
		CohortSize: claim.CohortSize,
		Position:   claim.Position,
		Score:      claim.Score,
	}, nil
}
