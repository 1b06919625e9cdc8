package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

const wildcard = "*"

// CORSConfig contains CORS configuration. A single "*" in AllowOrigins,
// AllowMethods or AllowHeaders permits any value.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	AllowCredentials bool
	MaxAge           int
}

// PermissiveCORSConfig allows every origin, method and header, with
// credentials. It is meant for development only.
func PermissiveCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{wildcard},
		AllowMethods:     []string{wildcard},
		AllowHeaders:     []string{wildcard},
		AllowCredentials: true,
		MaxAge:           600,
	}
}

var allMethods = []string{
	http.MethodDelete,
	http.MethodGet,
	http.MethodHead,
	http.MethodOptions,
	http.MethodPatch,
	http.MethodPost,
	http.MethodPut,
}

// corsHeaders holds pre-computed CORS header values.
type corsHeaders struct {
	allowOrigins     map[string]bool
	allowAllOrigins  bool
	allowMethods     string
	allowHeaders     string
	allowAllHeaders  bool
	maxAge           string
	allowCredentials bool
}

func newCORSHeaders(cfg CORSConfig) *corsHeaders {
	h := &corsHeaders{
		allowOrigins:     make(map[string]bool, len(cfg.AllowOrigins)),
		allowCredentials: cfg.AllowCredentials,
	}

	for _, origin := range cfg.AllowOrigins {
		if origin == wildcard {
			h.allowAllOrigins = true
			continue
		}
		h.allowOrigins[origin] = true
	}

	methods := cfg.AllowMethods
	if contains(methods, wildcard) {
		methods = allMethods
	}
	h.allowMethods = strings.Join(methods, ", ")

	if contains(cfg.AllowHeaders, wildcard) {
		h.allowAllHeaders = true
	} else {
		h.allowHeaders = strings.Join(cfg.AllowHeaders, ", ")
	}

	if cfg.MaxAge > 0 {
		h.maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return h
}

func (h *corsHeaders) isOriginAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	return h.allowAllOrigins || h.allowOrigins[origin]
}

// setOrigin answers with the literal "*" only when credentials are off;
// browsers reject "*" on credentialed requests, so the origin is echoed.
func (h *corsHeaders) setOrigin(w http.ResponseWriter, origin string) {
	if h.allowAllOrigins && !h.allowCredentials {
		w.Header().Set("Access-Control-Allow-Origin", wildcard)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}

	if h.allowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
}

func (h *corsHeaders) setPreflight(w http.ResponseWriter, r *http.Request) {
	if h.allowMethods != "" {
		w.Header().Set("Access-Control-Allow-Methods", h.allowMethods)
	}

	switch {
	case h.allowAllHeaders:
		if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
			w.Header().Set("Access-Control-Allow-Headers", requested)
			w.Header().Add("Vary", "Access-Control-Request-Headers")
		}
	case h.allowHeaders != "":
		w.Header().Set("Access-Control-Allow-Headers", h.allowHeaders)
	}

	if h.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", h.maxAge)
	}
}

// CORS returns a middleware that handles CORS. Preflight requests are
// answered here and never reach next.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	headers := newCORSHeaders(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowed := headers.isOriginAllowed(origin)

			preflight := r.Method == http.MethodOptions &&
				origin != "" &&
				r.Header.Get("Access-Control-Request-Method") != ""

			if allowed {
				headers.setOrigin(w, origin)
			}

			if preflight {
				if allowed {
					headers.setPreflight(w, r)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
