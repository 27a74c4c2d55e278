package httprpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/issuance/ports"
)

// Registry talks to the external unique-owner registry.
type Registry struct {
	client
}

func NewRegistry(baseURL string) *Registry {
	return &Registry{client: newClient(baseURL)}
}

func (r *Registry) Assign(ctx context.Context, id uint64, owner common.Address) error {
	req := struct {
		Owner string `json:"owner"`
	}{Owner: owner.Hex()}
	return r.doJSON(ctx, http.MethodPut, fmt.Sprintf("/assignments/%d", id), req, nil)
}

func (r *Registry) Exists(ctx context.Context, id uint64) (bool, error) {
	err := r.doJSON(ctx, http.MethodGet, fmt.Sprintf("/assignments/%d", id), nil, nil)
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

var _ ports.OwnershipRegistry = (*Registry)(nil)
