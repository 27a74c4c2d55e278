package models

// Phase is the derived lifecycle stage. It is never stored: every operation
// recomputes it from facts so there is a single source of truth.
type Phase string

const (
	PhaseConfiguring        Phase = "configuring"
	PhaseAwaitingRandomness Phase = "awaiting_randomness"
	PhaseMintingOpen        Phase = "minting_open"
	PhaseClosed             Phase = "closed"
)

// Facts are the stored and external observations the phase derives from,
// snapshotted once per operation so a single operation never sees two
// different phases.
type Facts struct {
	RandomnessRequestedAt uint64 // height of the beacon request, 0 = not issued
	RandomnessResolved    bool
	RecordCount           uint64
	TotalCapacity         uint64
	CurrentHeight         uint64
	ExpirationWindow      uint64
}

// DerivePhase computes the lifecycle phase:
//
//	no beacon request yet            -> Configuring
//	requested, not resolved          -> AwaitingRandomness
//	resolved, inside window + cap    -> MintingOpen
//	resolved otherwise               -> Closed
//
// The window bound is inclusive: elapsed == ExpirationWindow still mints.
func DerivePhase(f Facts) Phase {
	if f.RandomnessRequestedAt == 0 {
		return PhaseConfiguring
	}
	if !f.RandomnessResolved {
		return PhaseAwaitingRandomness
	}
	elapsed := f.CurrentHeight - f.RandomnessRequestedAt
	if elapsed <= f.ExpirationWindow && f.RecordCount < f.TotalCapacity {
		return PhaseMintingOpen
	}
	return PhaseClosed
}
