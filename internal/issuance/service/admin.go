package service

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/audit"
	"bestiary/internal/issuance/models"
	dErrors "bestiary/pkg/domain-errors"
)

// Owner-only operations. The transport layer authenticates the owner; the
// service enforces the lifecycle and validation rules.

// SetRenderer replaces the renderer reference. Only legal while configuring.
func (s *Service) SetRenderer(ctx context.Context, renderer common.Address) error {
	if renderer == (common.Address{}) {
		return dErrors.New(dErrors.CodeInvalidReference, "renderer reference must not be null")
	}
	unlock, err := s.beginMutation()
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := s.loadSnapshot(ctx, true)
	if err != nil {
		return err
	}
	if err := requirePhase(snap, models.PhaseConfiguring); err != nil {
		return err
	}
	snap.state.Settings.Renderer = renderer
	if err := s.state.Save(ctx, snap.state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save settings")
	}
	s.emitAudit(ctx, audit.Event{
		Action: audit.ActionRendererUpdated,
		Detail: renderer.Hex(),
	})
	return nil
}

// SetCostUnit replaces the cost-estimation unit. Legal in any phase.
func (s *Service) SetCostUnit(ctx context.Context, unit uint64) error {
	unlock, err := s.beginMutation()
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := s.loadSnapshot(ctx, true)
	if err != nil {
		return err
	}
	snap.state.Settings.CostUnit = unit
	if err := s.state.Save(ctx, snap.state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save settings")
	}
	s.emitAudit(ctx, audit.Event{
		Action: audit.ActionCostUnitUpdated,
		Detail: fmt.Sprintf("cost unit set to %d", unit),
	})
	return nil
}

// SetSigner replaces the authorized claim signer. Legal in any phase; the
// signer must never be null.
func (s *Service) SetSigner(ctx context.Context, signer common.Address) error {
	if signer == (common.Address{}) {
		return dErrors.New(dErrors.CodeInvalidReference, "authorized signer must not be null")
	}
	unlock, err := s.beginMutation()
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := s.loadSnapshot(ctx, true)
	if err != nil {
		return err
	}
	snap.state.Settings.Signer = signer
	if err := s.state.Save(ctx, snap.state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save settings")
	}
	s.emitAudit(ctx, audit.Event{
		Action: audit.ActionSignerUpdated,
		Detail: signer.Hex(),
	})
	return nil
}

// SetSettings atomically replaces the expiration window, capacity and rarity
// thresholds. Only legal while configuring; validation failures leave the
// stored settings untouched.
func (s *Service) SetSettings(ctx context.Context, expirationWindow, totalCapacity uint64, thresholds []uint32) error {
	if err := models.ValidateBatch(totalCapacity, thresholds); err != nil {
		return err
	}
	unlock, err := s.beginMutation()
	if err != nil {
		return err
	}
	defer unlock()

	snap, err := s.loadSnapshot(ctx, true)
	if err != nil {
		return err
	}
	if err := requirePhase(snap, models.PhaseConfiguring); err != nil {
		return err
	}
	snap.state.Settings.ExpirationWindow = expirationWindow
	snap.state.Settings.TotalCapacity = totalCapacity
	snap.state.Settings.RarityThresholds = append([]uint32(nil), thresholds...)
	if err := s.state.Save(ctx, snap.state); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save settings")
	}
	s.emitAudit(ctx, audit.Event{
		Action: audit.ActionSettingsUpdated,
		Detail: fmt.Sprintf("window=%d capacity=%d thresholds=%v", expirationWindow, totalCapacity, thresholds),
	})
	return nil
}

// StartResult reports the outcome of issuing the randomness request.
type StartResult struct {
	RequestedAt uint64   `json:"requested_at"`
	Consumed    *big.Int `json:"consumed"`
	// Refund is the unconsumed remainder of the attached funds, owed back
	// to the caller before the operation completes.
	Refund *big.Int `json:"refund"`
}

// StartIssuance submits the single randomness request and flips the system
// out of the configuration phase. It is irreversible: once the request height
// is recorded there is no path back to Configuring.
func (s *Service) StartIssuance(ctx context.Context, funds *big.Int) (StartResult, error) {
	ctx, span := s.tracer.Start(ctx, "issuance.Start")
	defer span.End()

	if funds == nil {
		funds = new(big.Int)
	}
	unlock, err := s.beginMutation()
	if err != nil {
		return StartResult{}, err
	}
	defer unlock()

	snap, err := s.loadSnapshot(ctx, true)
	if err != nil {
		return StartResult{}, err
	}
	if err := requirePhase(snap, models.PhaseConfiguring); err != nil {
		return StartResult{}, err
	}
	if snap.state.Settings.Renderer == (common.Address{}) {
		return StartResult{}, dErrors.New(dErrors.CodeRendererNotReady, "renderer reference not configured")
	}

	var consumed *big.Int
	err = s.collaboratorSection(func() error {
		ready, inner := s.collab.Renderer.IsReady(ctx)
		if inner != nil {
			return dErrors.Wrap(inner, dErrors.CodeInternal, "renderer readiness check")
		}
		if !ready {
			return dErrors.New(dErrors.CodeRendererNotReady, "renderer reports not ready")
		}
		consumed, inner = s.collab.Beacon.IssueRequest(ctx, funds)
		if inner != nil {
			return dErrors.Wrap(inner, dErrors.CodeInternal, "issue randomness request")
		}
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}
	if consumed == nil {
		consumed = new(big.Int)
	}
	if consumed.Cmp(funds) > 0 {
		return StartResult{}, dErrors.New(dErrors.CodeInternal, "beacon consumed more than the attached funds")
	}

	if snap.height == 0 {
		// Height zero is the "never requested" sentinel and cannot double
		// as a request height.
		return StartResult{}, dErrors.New(dErrors.CodeInternal, "chain height unavailable")
	}
	snap.state.RandomnessRequestedAt = snap.height
	if err := s.state.Save(ctx, snap.state); err != nil {
		return StartResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "record randomness request height")
	}

	refund := new(big.Int).Sub(funds, consumed)
	s.logger.InfoContext(ctx, "issuance started",
		"requested_at", snap.height,
		"consumed", consumed.String(),
		"refund", refund.String(),
	)
	s.emitAudit(ctx, audit.Event{
		Action: audit.ActionIssuanceStarted,
		Detail: fmt.Sprintf("requested at height %d", snap.height),
	})
	return StartResult{RequestedAt: snap.height, Consumed: consumed, Refund: refund}, nil
}
