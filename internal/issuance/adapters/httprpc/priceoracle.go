package httprpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"bestiary/internal/pricing"
)

// PriceOracle talks to the external price feed.
type PriceOracle struct {
	client
}

func NewPriceOracle(baseURL string) *PriceOracle {
	return &PriceOracle{client: newClient(baseURL)}
}

func (p *PriceOracle) Supports(ctx context.Context, pair string) (bool, error) {
	err := p.doJSON(ctx, http.MethodGet, "/pairs/"+url.PathEscape(pair), nil, nil)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *PriceOracle) Quote(ctx context.Context, pair string) (pricing.Quote, error) {
	var resp struct {
		Price      string    `json:"price"`
		Scale      string    `json:"scale"`
		Timestamp  time.Time `json:"timestamp"`
		Confidence uint64    `json:"confidence"`
	}
	if err := p.doJSON(ctx, http.MethodGet, "/quotes/"+url.PathEscape(pair), nil, &resp); err != nil {
		return pricing.Quote{}, err
	}
	price, ok := new(big.Int).SetString(resp.Price, 10)
	if !ok {
		return pricing.Quote{}, fmt.Errorf("oracle returned malformed price %q", resp.Price)
	}
	scale, ok := new(big.Int).SetString(resp.Scale, 10)
	if !ok {
		return pricing.Quote{}, fmt.Errorf("oracle returned malformed scale %q", resp.Scale)
	}
	return pricing.Quote{
		Price:      price,
		Scale:      scale,
		Timestamp:  resp.Timestamp,
		Confidence: resp.Confidence,
	}, nil
}

var _ pricing.Oracle = (*PriceOracle)(nil)
