package handler

import (
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"bestiary/internal/platform/middleware"
	dErrors "bestiary/pkg/domain-errors"
)

func (h *Handler) handleSetRenderer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Renderer string `json:"renderer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	addr, err := parseAddress(req.Renderer)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetRenderer(r.Context(), addr); err != nil {
		h.logFailure(r, "set renderer", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetCostUnit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CostUnit uint64 `json:"cost_unit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.admin.SetCostUnit(r.Context(), req.CostUnit); err != nil {
		h.logFailure(r, "set cost unit", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetSigner(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signer string `json:"signer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	addr, err := parseAddress(req.Signer)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.admin.SetSigner(r.Context(), addr); err != nil {
		h.logFailure(r, "set signer", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ExpirationWindow uint64   `json:"expiration_window"`
		TotalCapacity    uint64   `json:"total_capacity"`
		RarityThresholds []uint32 `json:"rarity_thresholds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.admin.SetSettings(r.Context(), req.ExpirationWindow, req.TotalCapacity, req.RarityThresholds); err != nil {
		h.logFailure(r, "set settings", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStartIssuance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Funds string `json:"funds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	funds := new(big.Int)
	if req.Funds != "" {
		parsed, ok := funds.SetString(req.Funds, 10)
		if !ok || parsed.Sign() < 0 {
			writeError(w, dErrors.New(dErrors.CodeBadRequest, "funds must be a non-negative decimal string"))
			return
		}
	}
	result, err := h.admin.StartIssuance(r.Context(), funds)
	if err != nil {
		h.logFailure(r, "start issuance", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		RequestedAt uint64 `json:"requested_at"`
		Consumed    string `json:"consumed"`
		Refund      string `json:"refund"`
	}{
		RequestedAt: result.RequestedAt,
		Consumed:    result.Consumed.String(),
		Refund:      result.Refund.String(),
	})
}

// parseAddress converts a hex address field, distinguishing malformed input
// from the null-reference case the service checks.
func parseAddress(raw string) (common.Address, error) {
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, dErrors.New(dErrors.CodeBadRequest, "malformed hex address")
	}
	return common.HexToAddress(raw), nil
}

func (h *Handler) logFailure(r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), op+" failed",
		"error", err.Error(),
		"request_id", middleware.GetRequestID(r.Context()),
	)
}
