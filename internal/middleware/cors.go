package middleware

import (
	"net/http"
	"strings"

	"github.com/R3E-Network/presale_layer/internal/httputil"
)

var (
	corsMethods        = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ", ")
	corsRequestHeaders = strings.Join([]string{"Content-Type", "Authorization", TraceHeader, httputil.CallerHeader}, ", ")
)

// CORSMiddleware answers browser origin checks for the presale API.
//
// An entry of "*" admits every origin. An entry starting with "." admits
// subdomains of that domain. Any other entry must match the Origin header
// exactly.
type CORSMiddleware struct {
	exact    map[string]struct{}
	suffixes []string
	anyOrig  bool
}

func NewCORSMiddleware(allowedOrigins []string) *CORSMiddleware {
	m := &CORSMiddleware{exact: make(map[string]struct{}, len(allowedOrigins))}
	for _, o := range allowedOrigins {
		switch {
		case o == "*":
			m.anyOrig = true
		case strings.HasPrefix(o, "."):
			m.suffixes = append(m.suffixes, o)
		case o != "":
			m.exact[o] = struct{}{}
		}
	}
	return m
}

func (m *CORSMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && m.admits(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsRequestHeaders)
			h.Set("Access-Control-Expose-Headers", TraceHeader)
			h.Set("Access-Control-Max-Age", "3600")
			h.Add("Vary", "Origin")
		}

		// Preflights never reach the router; plain OPTIONS requests do.
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *CORSMiddleware) admits(origin string) bool {
	if m.anyOrig {
		return true
	}
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasSuffix(origin, s) {
			return true
		}
	}
	return false
}
