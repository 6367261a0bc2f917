package httpmiddleware

import (
	"net/http"
	"strings"
)

// CORSConfig lists the values advertised in CORS response headers.
type CORSConfig struct {
	// AllowOrigins defaults to "*". With several entries the request Origin
	// is echoed when it matches one of them (case-insensitive).
	AllowOrigins []string
	// AllowMethods defaults to "POST, OPTIONS".
	AllowMethods []string
	// AllowHeaders defaults to "Content-Type".
	AllowHeaders []string
}

// CORS sets the Access-Control-Allow-* headers on every response, including
// errors and requests without an Origin header. Preflight requests are passed
// to next, which answers them.
func CORS(cfg CORSConfig) Middleware {
	methods := strings.Join(cfg.AllowMethods, ", ")
	if methods == "" {
		methods = "POST, OPTIONS"
	}
	headers := strings.Join(cfg.AllowHeaders, ", ")
	if headers == "" {
		headers = "Content-Type"
	}

	wildcard := len(cfg.AllowOrigins) == 0
	origins := make(map[string]string, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			wildcard = true
		}
		origins[strings.ToLower(o)] = o
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if wildcard {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Add("Vary", "Origin")
				if o, ok := origins[strings.ToLower(r.Header.Get("Origin"))]; ok {
					h.Set("Access-Control-Allow-Origin", o)
				}
			}
			h.Set("Access-Control-Allow-Headers", headers)
			h.Set("Access-Control-Allow-Methods", methods)
			next.ServeHTTP(w, r)
		})
	}
}
