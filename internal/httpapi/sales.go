package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/presale_layer/internal/events"
	"github.com/R3E-Network/presale_layer/internal/httputil"
	"github.com/R3E-Network/presale_layer/internal/ido"
	"github.com/R3E-Network/presale_layer/internal/presale"
)

const defaultEventLimit = 50

type createSaleRequest struct {
	Asset string `json:"asset"`
	presale.SaleParams
}

type buyRequest struct {
	Amount uint64 `json:"amount"`
}

type listingResponse struct {
	Sale    presale.Sale        `json:"sale"`
	Listing presale.ListingPlan `json:"listing"`
}

type withdrawalResponse struct {
	Sale       presale.Sale           `json:"sale"`
	Withdrawal presale.WithdrawalPlan `json:"withdrawal"`
}

func (h *handler) createSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	sale, err := h.svc.CreateSale(r.Context(), caller(r), req.Asset, req.SaleParams)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sale)
}

func (h *handler) listSales(w http.ResponseWriter, r *http.Request) {
	status, err := parseStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sales, err := h.svc.ListSales(r.Context(), ido.SaleFilter{
		Status:  status,
		Creator: r.URL.Query().Get("creator"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if sales == nil {
		sales = []presale.Sale{}
	}
	httputil.WriteJSON(w, http.StatusOK, sales)
}

func (h *handler) getSale(w http.ResponseWriter, r *http.Request) {
	sale, err := h.svc.GetSale(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sale)
}

type transitionFunc func(ctx context.Context, caller, saleID string) (presale.Sale, error)

func (h *handler) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sale, err := fn(r.Context(), caller(r), mux.Vars(r)["id"])
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, sale)
	}
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.RegisterForSale(r.Context(), caller(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, p)
}

func (h *handler) buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if !h.decode(w, r, &req) {
		return
	}
	purchase, err := h.svc.Buy(r.Context(), caller(r), mux.Vars(r)["id"], req.Amount)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, purchase)
}

func (h *handler) listToken(w http.ResponseWriter, r *http.Request) {
	sale, plan, err := h.svc.ListToken(r.Context(), caller(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, listingResponse{Sale: sale, Listing: plan})
}

func (h *handler) withdraw(w http.ResponseWriter, r *http.Request) {
	sale, plan, err := h.svc.WithdrawFunds(r.Context(), caller(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, withdrawalResponse{Sale: sale, Withdrawal: plan})
}

func (h *handler) claim(w http.ResponseWriter, r *http.Request) {
	plan, err := h.svc.Claim(r.Context(), caller(r), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, plan)
}

// claimable reports the vesting position of ?owner=, defaulting to the caller.
func (h *handler) claimable(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		owner = caller(r)
	}
	status, err := h.svc.Claimable(r.Context(), owner, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

func (h *handler) getParticipant(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	p, err := h.svc.GetParticipant(r.Context(), vars["owner"], vars["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *handler) saleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultEventLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id := mux.Vars(r)["id"]
	if _, err := h.svc.GetSale(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	recent := h.svc.Events().RecentBySale(id, limit)
	if recent == nil {
		recent = []events.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, recent)
}
