package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/presale_layer/internal/httputil"
)

type initializeRequest struct {
	StakingAsset string `json:"staking_asset"`
	Treasury     string `json:"treasury"`
}

type updateAdminRequest struct {
	Admin string `json:"admin"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type mintRequest struct {
	Asset  string `json:"asset"`
	Holder string `json:"holder"`
	Amount uint64 `json:"amount"`
}

type balanceResponse struct {
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
	Balance uint64 `json:"balance"`
}

func (h *handler) initialize(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if !h.decode(w, r, &req) {
		return
	}
	cfg, err := h.svc.Initialize(r.Context(), caller(r), req.StakingAsset, req.Treasury)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, cfg)
}

func (h *handler) getConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.GetGlobalConfig(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *handler) updateAdmin(w http.ResponseWriter, r *http.Request) {
	var req updateAdminRequest
	if !h.decode(w, r, &req) {
		return
	}
	cfg, err := h.svc.UpdateAdmin(r.Context(), caller(r), req.Admin)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

func (h *handler) stake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.svc.Stake(r.Context(), caller(r), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) unstake(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.svc.Unstake(r.Context(), caller(r), req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) getStake(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetStake(r.Context(), mux.Vars(r)["owner"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	amount, err := h.svc.Balance(r.Context(), vars["asset"], vars["holder"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Asset: vars["asset"], Holder: vars["holder"], Balance: amount})
}

// mint credits test balances. Admin only.
func (h *handler) mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := h.svc.Mint(r.Context(), caller(r), req.Asset, req.Holder, req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{Asset: req.Asset, Holder: req.Holder, Balance: amount})
}
