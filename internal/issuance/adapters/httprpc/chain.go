package httprpc

import (
	"context"
	"net/http"

	"bestiary/internal/issuance/ports"
)

// Chain reads head facts from the hosting ledger's RPC.
type Chain struct {
	client
}

func NewChain(baseURL string) *Chain {
	return &Chain{client: newClient(baseURL)}
}

func (c *Chain) head(ctx context.Context) (height, gasPrice uint64, err error) {
	var resp struct {
		Height   uint64 `json:"height"`
		GasPrice uint64 `json:"gas_price"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/head", nil, &resp); err != nil {
		return 0, 0, err
	}
	return resp.Height, resp.GasPrice, nil
}

func (c *Chain) Height(ctx context.Context) (uint64, error) {
	height, _, err := c.head(ctx)
	return height, err
}

func (c *Chain) GasPriceHint(ctx context.Context) (uint64, error) {
	_, gasPrice, err := c.head(ctx)
	return gasPrice, err
}

var _ ports.Chain = (*Chain)(nil)
