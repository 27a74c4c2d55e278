// Package ports declares the external collaborators the issuance core
// depends on. The core owns none of them; adapters under
// internal/issuance/adapters provide production clients, tests use fakes.
package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/issuance/models"
)

// RandomnessBeacon is the external randomness oracle. IssueRequest may
// consume only part of the forwarded funds; the remainder is owed back to
// the caller.
type RandomnessBeacon interface {
	IssueRequest(ctx context.Context, funds *big.Int) (consumed *big.Int, err error)
	IsResolved(ctx context.Context, requestHeight uint64) (bool, error)
	ValueAfter(ctx context.Context, requestHeight uint64) (common.Hash, error)
}

// Renderer turns a stored record plus the shared seed into a viewable
// document. It must report ready before issuance can start.
type Renderer interface {
	IsReady(ctx context.Context) (bool, error)
	BaseLocation(ctx context.Context) (string, error)
	Render(ctx context.Context, seed common.Hash, record models.Record) ([]byte, error)
}

// OwnershipRegistry is the standard unique-owner registry records are
// assigned to after minting.
type OwnershipRegistry interface {
	Assign(ctx context.Context, id uint64, owner common.Address) error
	Exists(ctx context.Context, id uint64) (bool, error)
}

// Chain reports facts about the hosting ledger: the current height (all
// expiration and randomness bookkeeping is height based, never wall clock
// based) and the gas price hint the cost derivation uses.
type Chain interface {
	Height(ctx context.Context) (uint64, error)
	GasPriceHint(ctx context.Context) (uint64, error)
}
