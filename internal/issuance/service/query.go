package service

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/issuance/models"
	dErrors "bestiary/pkg/domain-errors"
	"bestiary/pkg/platform/sentinel"
)

// Status is the read-only issuance snapshot served to clients.
type Status struct {
	Phase                 models.Phase    `json:"phase"`
	Settings              models.Settings `json:"settings"`
	RecordCount           uint64          `json:"record_count"`
	RandomnessRequestedAt uint64          `json:"randomness_requested_at"`
	CurrentHeight         uint64          `json:"current_height"`
	// Seed is the shared random seed, present once the beacon resolved.
	Seed *common.Hash `json:"seed,omitempty"`
	// DocumentBase is the renderer's base location for record documents,
	// present once a renderer is configured.
	DocumentBase string `json:"document_base,omitempty"`
}

// Phase derives and returns the current lifecycle phase.
func (s *Service) Phase(ctx context.Context) (models.Phase, error) {
	snap, err := s.loadSnapshot(ctx, false)
	if err != nil {
		return "", err
	}
	return snap.phase, nil
}

// Settings returns the current settings snapshot.
func (s *Service) Settings(ctx context.Context) (models.Settings, error) {
	snap, err := s.loadSnapshot(ctx, false)
	if err != nil {
		return models.Settings{}, err
	}
	return snap.state.Settings, nil
}

// Record returns the record minted at id, or NotFound if the slot is still
// empty.
func (s *Service) Record(ctx context.Context, id uint64) (models.Record, error) {
	rec, err := s.records.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Record{}, dErrors.New(dErrors.CodeNotFound, "no record minted at this rank")
	}
	if err != nil {
		return models.Record{}, dErrors.Wrap(err, dErrors.CodeInternal, "load record")
	}
	return rec, nil
}

// Status assembles the full read-only view, including the resolved seed once
// available.
func (s *Service) Status(ctx context.Context) (Status, error) {
	snap, err := s.loadSnapshot(ctx, false)
	if err != nil {
		return Status{}, err
	}
	status := Status{
		Phase:                 snap.phase,
		Settings:              snap.state.Settings,
		RecordCount:           snap.facts.RecordCount,
		RandomnessRequestedAt: snap.facts.RandomnessRequestedAt,
		CurrentHeight:         snap.height,
	}
	if snap.facts.RandomnessResolved {
		seed, err := s.collab.Beacon.ValueAfter(ctx, snap.facts.RandomnessRequestedAt)
		if err != nil {
			return Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "read random seed")
		}
		status.Seed = &seed
	}
	if snap.state.Settings.Renderer != (common.Address{}) {
		base, err := s.collab.Renderer.BaseLocation(ctx)
		if err != nil {
			return Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "read renderer base location")
		}
		status.DocumentBase = base
	}
	return status, nil
}

// Document renders the viewable document for a minted record by forwarding
// the record and the shared seed to the external renderer.
func (s *Service) Document(ctx context.Context, id uint64) ([]byte, error) {
	rec, err := s.Record(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx, false)
	if err != nil {
		return nil, err
	}
	if !snap.facts.RandomnessResolved {
		return nil, dErrors.New(dErrors.CodeIllegalPhase, "random seed not resolved yet")
	}
	seed, err := s.collab.Beacon.ValueAfter(ctx, snap.facts.RandomnessRequestedAt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "read random seed")
	}
	doc, err := s.collab.Renderer.Render(ctx, seed, rec)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "render record document")
	}
	return doc, nil
}
