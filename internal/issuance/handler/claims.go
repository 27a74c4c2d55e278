package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"bestiary/internal/issuance/models"
	dErrors "bestiary/pkg/domain-errors"
)

type claimRequest struct {
	Owner      string `json:"owner"`
	Label      string `json:"label"`
	GlobalRank uint64 `json:"global_rank"`
	CohortID   uint64 `json:"cohort_id"`
	CohortSize uint64 `json:"cohort_size"`
	CohortRank uint64 `json:"cohort_rank"`
	Position   uint64 `json:"position"`
	Score      uint64 `json:"score"`
	Signature  string `json:"signature"`
}

func (req claimRequest) toClaim() (models.Claim, error) {
	owner, err := parseAddress(req.Owner)
	if err != nil {
		return models.Claim{}, err
	}
	var sig []byte
	if req.Signature != "" {
		sig, err = hexutil.Decode(req.Signature)
		if err != nil {
			return models.Claim{}, dErrors.New(dErrors.CodeBadRequest, "signature must be 0x-prefixed hex")
		}
	}
	return models.Claim{
		Owner:      owner,
		Label:      req.Label,
		GlobalRank: req.GlobalRank,
		CohortID:   req.CohortID,
		CohortSize: req.CohortSize,
		CohortRank: req.CohortRank,
		Position:   req.Position,
		Score:      req.Score,
		Signature:  sig,
	}, nil
}

// recordResponse is the wire form of a record: costs travel as decimal
// strings and tiers carry their name alongside the index.
type recordResponse struct {
	ID         uint64     `json:"id"`
	Label      string     `json:"label"`
	Owner      string     `json:"owner"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	Cost       string     `json:"cost"`
	Tier       uint8      `json:"tier"`
	TierName   string     `json:"tier_name"`
	GlobalRank uint64     `json:"global_rank"`
	CohortRank uint64     `json:"cohort_rank"`
	CohortSize uint64     `json:"cohort_size"`
	Position   uint64     `json:"position"`
	Score      uint64     `json:"score"`
}

func toRecordResponse(rec models.Record) recordResponse {
	resp := recordResponse{
		ID:         rec.ID,
		Label:      rec.Label,
		Owner:      rec.Owner.Hex(),
		Cost:       rec.Cost.String(),
		Tier:       uint8(rec.Tier),
		TierName:   rec.Tier.String(),
		GlobalRank: rec.GlobalRank,
		CohortRank: rec.CohortRank,
		CohortSize: rec.CohortSize,
		Position:   rec.Position,
		Score:      rec.Score,
	}
	if rec.Exists() {
		created := rec.CreatedAt
		resp.CreatedAt = &created
	}
	return resp
}

func (h *Handler) handleSubmitClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.decodeClaim(w, r)
	if !ok {
		return
	}
	rec, err := h.claims.SubmitClaim(r.Context(), claim)
	if err != nil {
		h.logFailure(r, "submit claim", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

func (h *Handler) handlePreviewClaim(w http.ResponseWriter, r *http.Request) {
	claim, ok := h.decodeClaim(w, r)
	if !ok {
		return
	}
	rec, err := h.claims.PreviewClaim(r.Context(), claim)
	if err != nil {
		h.logFailure(r, "preview claim", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

func (h *Handler) decodeClaim(w http.ResponseWriter, r *http.Request) (models.Claim, bool) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return models.Claim{}, false
	}
	claim, err := req.toClaim()
	if err != nil {
		writeError(w, err)
		return models.Claim{}, false
	}
	return claim, true
}
