// Package httpapi exposes the presale operations over HTTP.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/presale_layer/internal/errors"
	"github.com/R3E-Network/presale_layer/internal/httputil"
	"github.com/R3E-Network/presale_layer/internal/ido"
	"github.com/R3E-Network/presale_layer/internal/logging"
	"github.com/R3E-Network/presale_layer/internal/metrics"
	"github.com/R3E-Network/presale_layer/internal/middleware"
	"github.com/R3E-Network/presale_layer/internal/presale"
)

// ServiceName labels HTTP metrics.
const ServiceName = "presale"

// Options wires the cross-cutting middleware. Nil fields are skipped,
// except Auth which is required.
type Options struct {
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
	Auth        *middleware.AuthMiddleware
	RateLimiter *middleware.RateLimiter
	CORSOrigins []string
}

type handler struct {
	svc *ido.Service
	log *logging.Logger
}

// NewHandler returns the router exposing the presale REST API.
func NewHandler(svc *ido.Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	h := &handler{svc: svc, log: opts.Logger}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteError(w, req, errors.NotFound("route", req.URL.Path))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteErrorResponse(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Use(middleware.LoggingMiddleware(opts.Logger))
	if opts.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(ServiceName, opts.Metrics))
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(opts.Auth.Handler, middleware.RequireUserID)
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Handler)
	}

	api.HandleFunc("/config", h.initialize).Methods(http.MethodPost)
	api.HandleFunc("/config", h.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/config/admin", h.updateAdmin).Methods(http.MethodPut)
	api.HandleFunc("/mint", h.mint).Methods(http.MethodPost)

	api.HandleFunc("/sales", h.createSale).Methods(http.MethodPost)
	api.HandleFunc("/sales", h.listSales).Methods(http.MethodGet)
	api.HandleFunc("/sales/{id}", h.getSale).Methods(http.MethodGet)
	api.HandleFunc("/sales/{id}/approve", h.transition(h.svc.ApproveSale)).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/start", h.transition(h.svc.StartSale)).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/end", h.transition(h.svc.EndSale)).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/cancel", h.transition(h.svc.CancelSale)).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/buy", h.buy).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/list", h.listToken).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/withdraw", h.withdraw).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/claim", h.claim).Methods(http.MethodPost)
	api.HandleFunc("/sales/{id}/claimable", h.claimable).Methods(http.MethodGet)
	api.HandleFunc("/sales/{id}/participants/{owner}", h.getParticipant).Methods(http.MethodGet)
	api.HandleFunc("/sales/{id}/events", h.saleEvents).Methods(http.MethodGet)

	api.HandleFunc("/stake", h.stake).Methods(http.MethodPost)
	api.HandleFunc("/unstake", h.unstake).Methods(http.MethodPost)
	api.HandleFunc("/stake/{owner}", h.getStake).Methods(http.MethodGet)
	api.HandleFunc("/balances/{asset}/{holder}", h.balance).Methods(http.MethodGet)

	return middleware.Tracing(middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(r))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func caller(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := errors.FromDomain(err)
	if se.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	httputil.WriteErrorResponse(w, r, se.HTTPStatus, string(se.Code), se.Message, se.Details)
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeJSON(w, r, dst); err != nil {
		h.writeError(w, r, err)
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.InvalidFormat(key, "must be a non-negative integer")
	}
	return n, nil
}

func parseStatus(raw string) (*presale.Status, error) {
	if raw == "" {
		return nil, nil
	}
	st, ok := presale.ParseStatus(raw)
	if !ok {
		return nil, errors.InvalidFormat("status", "unknown sale status")
	}
	return &st, nil
}
