// Package service implements the issuance core: the lifecycle gate, the
// mint-authorization protocol and the settings/authority operations. One
// concrete Service backs the narrow AdminOps/ClaimOps/QueryOps interfaces the
// transport layer consumes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bestiary/internal/audit"
	"bestiary/internal/issuance/metrics"
	"bestiary/internal/issuance/models"
	"bestiary/internal/issuance/ports"
	"bestiary/internal/issuance/store/state"
	"bestiary/internal/pricing"
	dErrors "bestiary/pkg/domain-errors"
)

// RecordStore persists minted records keyed by cohort rank. CreateIfAbsent
// must be atomic: either the record is new and stored, or sentinel.ErrConflict
// comes back and nothing changes.
type RecordStore interface {
	CreateIfAbsent(ctx context.Context, rec models.Record) error
	FindByID(ctx context.Context, id uint64) (models.Record, error)
	Count(ctx context.Context) (uint64, error)
}

// StateStore persists the settings singleton and the randomness request
// height.
type StateStore interface {
	Load(ctx context.Context) (state.State, error)
	Save(ctx context.Context, st state.State) error
}

// AuditPublisher captures one event per mutating operation.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Collaborators bundles the external systems the core talks to. All of them
// are referenced by identity only, never owned.
type Collaborators struct {
	Beacon   ports.RandomnessBeacon
	Oracle   pricing.Oracle
	Renderer ports.Renderer
	Registry ports.OwnershipRegistry
	Chain    ports.Chain
}

// Params fixes the issuance context at construction time.
type Params struct {
	// CohortID identifies the ranking event this issuance serves; claims
	// asserting a different cohort are rejected.
	CohortID uint64
	// QuotePair is the price oracle key for cost derivation.
	QuotePair string
}

// Service orchestrates issuance. Mutating operations serialize on an internal
// lock (standing in for the hosting ledger's serialized transactions) and a
// reentrancy guard rejects nested mutating calls made while control is inside
// an external collaborator.
type Service struct {
	state   StateStore
	records RecordStore
	collab  Collaborators
	params  Params

	// mu serializes mutating operations.
	mu sync.Mutex
	// inCollab is set while control is forwarded to a collaborator.
	inCollab atomic.Bool

	logger  *slog.Logger
	auditor AuditPublisher
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service. It fails if the price oracle does not support the
// configured quote pair, so a misconfigured deployment dies at startup rather
// than at the first mint.
func New(ctx context.Context, stateStore StateStore, recordStore RecordStore, collab Collaborators, params Params, opts ...Option) (*Service, error) {
	supported, err := collab.Oracle.Supports(ctx, params.QuotePair)
	if err != nil {
		return nil, fmt.Errorf("check quote pair support: %w", err)
	}
	if !supported {
		return nil, fmt.Errorf("price oracle does not support pair %q", params.QuotePair)
	}
	s := &Service{
		state:   stateStore,
		records: recordStore,
		collab:  collab,
		params:  params,
		logger:  slog.Default(),
		tracer:  otel.Tracer("bestiary/issuance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// snapshot is the per-operation view of stored facts plus the phase derived
// from them. Deriving once per operation keeps a single operation from
// observing two different phases.
type snapshot struct {
	state  state.State
	facts  models.Facts
	phase  models.Phase
	height uint64
}

// loadSnapshot gathers stored facts and external observations, then derives
// the phase. Mutating callers hold the lock and arm the reentrancy guard for
// the collaborator round trips; read paths have no partial state to protect
// and observe unguarded, so concurrent reads never trip the guard for a
// legal mutation.
func (s *Service) loadSnapshot(ctx context.Context, mutating bool) (snapshot, error) {
	st, err := s.state.Load(ctx)
	if err != nil {
		return snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "load issuance state")
	}
	count, err := s.records.Count(ctx)
	if err != nil {
		return snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}

	var height uint64
	var resolved bool
	observe := func() error {
		var inner error
		height, inner = s.collab.Chain.Height(ctx)
		if inner != nil {
			return fmt.Errorf("read chain height: %w", inner)
		}
		if st.RandomnessRequestedAt != 0 {
			resolved, inner = s.collab.Beacon.IsResolved(ctx, st.RandomnessRequestedAt)
			if inner != nil {
				return fmt.Errorf("check randomness resolution: %w", inner)
			}
		}
		return nil
	}
	if mutating {
		err = s.collaboratorSection(observe)
	} else {
		err = observe()
	}
	if err != nil {
		return snapshot{}, dErrors.Wrap(err, dErrors.CodeInternal, "observe external state")
	}

	facts := models.Facts{
		RandomnessRequestedAt: st.RandomnessRequestedAt,
		RandomnessResolved:    resolved,
		RecordCount:           count,
		TotalCapacity:         st.Settings.TotalCapacity,
		CurrentHeight:         height,
		ExpirationWindow:      st.Settings.ExpirationWindow,
	}
	snap := snapshot{state: st, facts: facts, phase: models.DerivePhase(facts), height: height}
	if s.metrics != nil {
		s.metrics.SetPhase(string(snap.phase))
	}
	return snap, nil
}

// beginMutation is the entry gate for every mutating operation: reject
// reentrant calls, then serialize. The returned unlock must be deferred.
func (s *Service) beginMutation() (func(), error) {
	if s.inCollab.Load() {
		return nil, dErrors.New(dErrors.CodeReentrantCall, "nested call during external collaborator invocation")
	}
	s.mu.Lock()
	return s.mu.Unlock, nil
}

// collaboratorSection marks the span during which a mutating operation
// forwards control to an external collaborator. Callers must hold mu, so the
// guard is armed only while a half-finished mutation exists; it is released
// on every exit path.
func (s *Service) collaboratorSection(fn func() error) error {
	s.inCollab.Store(true)
	defer s.inCollab.Store(false)
	return fn()
}

// requirePhase fails with IllegalPhase unless the snapshot is in one of the
// allowed phases. Nothing has been mutated at this point, so failing here is
// automatically all-or-nothing.
func requirePhase(snap snapshot, allowed ...models.Phase) error {
	for _, p := range allowed {
		if snap.phase == p {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeIllegalPhase,
		fmt.Sprintf("operation not permitted in phase %s", snap.phase))
}

// emitAudit records an event after a committed mutation. Failures are logged,
// not propagated: the mutation already happened.
func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
