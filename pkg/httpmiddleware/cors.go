package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	// AllowOrigins lists admitted origins. Empty or "*" admits any origin.
	AllowOrigins []string
	// AllowSubdomains also admits subdomains of an allowed origin under any
	// scheme, so "http://pos.farmtocup.app" matches "https://farmtocup.app".
	AllowSubdomains bool
	// AllowMethods defaults to GET, POST, PUT, PATCH, DELETE and OPTIONS.
	AllowMethods []string
	// AllowHeaders, when empty, echoes Access-Control-Request-Headers.
	AllowHeaders  []string
	ExposeHeaders []string
	// AllowCredentials with a wildcard origin echoes the request origin,
	// since browsers refuse "*" on credentialed requests.
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds. Zero omits the
	// header and a negative value sends 0.
	MaxAge int
	// PreflightStatus defaults to 204.
	PreflightStatus int
}

const defaultCORSMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"

// corsPolicy is a CORSConfig with its header values rendered once.
type corsPolicy struct {
	origins     *originMatcher
	methods     string
	headers     string
	expose      string
	credentials bool
	maxAge      string
	preflight   int
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:     newOriginMatcher(cfg.AllowOrigins, cfg.AllowSubdomains),
		methods:     strings.Join(cfg.AllowMethods, ", "),
		headers:     strings.Join(cfg.AllowHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
		preflight:   cfg.PreflightStatus,
	}
	if p.credentials && p.origins.wildcard {
		p.origins.wildcard, p.origins.echo = false, true
	}
	if p.methods == "" {
		p.methods = defaultCORSMethods
	}
	if p.preflight == 0 {
		p.preflight = http.StatusNoContent
	}
	switch {
	case cfg.MaxAge > 0:
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	case cfg.MaxAge < 0:
		p.maxAge = "0"
	}
	return p
}

// CORS answers preflight requests itself and decorates the rest with
// Access-Control headers. Origins match case-insensitively. Responses that
// depend on the origin carry Vary: Origin so shared caches keep them apart.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				p.answerPreflight(w, r, origin)
				return
			}

			h := w.Header()
			if !p.origins.wildcard {
				h.Add("Vary", "Origin")
			}
			if allowed := p.origins.match(origin); origin != "" && allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if p.expose != "" {
					h.Set("Access-Control-Expose-Headers", p.expose)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (p *corsPolicy) answerPreflight(w http.ResponseWriter, r *http.Request, origin string) {
	h := w.Header()
	h.Add("Vary", "Origin")
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	allowed := p.origins.match(origin)
	if allowed == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.Set("Access-Control-Allow-Origin", allowed)
	h.Set("Access-Control-Allow-Methods", p.methods)
	switch requested := r.Header.Get("Access-Control-Request-Headers"); {
	case p.headers != "":
		h.Set("Access-Control-Allow-Headers", p.headers)
	case requested != "":
		h.Set("Access-Control-Allow-Headers", requested)
	}
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}
	w.WriteHeader(p.preflight)
}

type originMatcher struct {
	wildcard   bool
	echo       bool
	subdomains bool
	// configured maps a lowercased origin to its configured spelling.
	configured map[string]string
	// hosts are the lowercased origins without their scheme.
	hosts []string
}

func newOriginMatcher(origins []string, subdomains bool) *originMatcher {
	m := &originMatcher{
		wildcard:   len(origins) == 0,
		subdomains: subdomains,
		configured: make(map[string]string, len(origins)),
	}
	for _, o := range origins {
		if o == "*" {
			m.wildcard = true
			return m
		}
		key := strings.ToLower(o)
		m.configured[key] = o
		m.hosts = append(m.hosts, stripScheme(key))
	}
	return m
}

// match returns the Access-Control-Allow-Origin value for origin, or "" to
// refuse it.
func (m *originMatcher) match(origin string) string {
	if m.wildcard {
		return "*"
	}
	if m.echo {
		return origin
	}

	key := strings.ToLower(origin)
	if o, ok := m.configured[key]; ok {
		return o
	}
	if m.subdomains {
		host := stripScheme(key)
		for _, h := range m.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return origin
			}
		}
	}
	return ""
}

func stripScheme(origin string) string {
	if _, rest, ok := strings.Cut(origin, "://"); ok {
		return rest
	}
	return origin
}
