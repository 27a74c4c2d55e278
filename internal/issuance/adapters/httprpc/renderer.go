package httprpc

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/issuance/models"
	"bestiary/internal/issuance/ports"
)

// Renderer talks to the external metadata/image renderer.
type Renderer struct {
	client
}

func NewRenderer(baseURL string) *Renderer {
	return &Renderer{client: newClient(baseURL)}
}

func (r *Renderer) IsReady(ctx context.Context) (bool, error) {
	var resp struct {
		Ready bool `json:"ready"`
	}
	if err := r.doJSON(ctx, http.MethodGet, "/ready", nil, &resp); err != nil {
		return false, err
	}
	return resp.Ready, nil
}

func (r *Renderer) BaseLocation(ctx context.Context) (string, error) {
	var resp struct {
		BaseLocation string `json:"base_location"`
	}
	if err := r.doJSON(ctx, http.MethodGet, "/location", nil, &resp); err != nil {
		return "", err
	}
	return resp.BaseLocation, nil
}

func (r *Renderer) Render(ctx context.Context, seed common.Hash, record models.Record) ([]byte, error) {
	req := struct {
		Seed   string        `json:"seed"`
		Record models.Record `json:"record"`
	}{Seed: seed.Hex(), Record: record}
	return r.doRaw(ctx, http.MethodPost, "/render", req)
}

var _ ports.Renderer = (*Renderer)(nil)
