package httprpc

import (
	"context"
	"fmt"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/issuance/ports"
)

// Beacon talks to the external randomness oracle.
type Beacon struct {
	client
}

func NewBeacon(baseURL string) *Beacon {
	return &Beacon{client: newClient(baseURL)}
}

func (b *Beacon) IssueRequest(ctx context.Context, funds *big.Int) (*big.Int, error) {
	var resp struct {
		Consumed string `json:"consumed"`
	}
	req := struct {
		Funds string `json:"funds"`
	}{Funds: funds.String()}
	if err := b.doJSON(ctx, http.MethodPost, "/requests", req, &resp); err != nil {
		return nil, err
	}
	consumed, ok := new(big.Int).SetString(resp.Consumed, 10)
	if !ok {
		return nil, fmt.Errorf("beacon returned malformed consumed amount %q", resp.Consumed)
	}
	return consumed, nil
}

func (b *Beacon) IsResolved(ctx context.Context, requestHeight uint64) (bool, error) {
	var resp struct {
		Resolved bool `json:"resolved"`
	}
	path := fmt.Sprintf("/requests/%d/resolved", requestHeight)
	if err := b.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return false, err
	}
	return resp.Resolved, nil
}

func (b *Beacon) ValueAfter(ctx context.Context, requestHeight uint64) (common.Hash, error) {
	var resp struct {
		Seed string `json:"seed"`
	}
	path := fmt.Sprintf("/requests/%d/value", requestHeight)
	if err := b.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return common.Hash{}, err
	}
	return common.HexToHash(resp.Seed), nil
}

var _ ports.RandomnessBeacon = (*Beacon)(nil)
