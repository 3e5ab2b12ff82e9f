package receipt

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// Server handles HTTP requests for receipt sessions
type Server struct {
	service   *Service
	basicAuth BasicAuth
	metrics   http.Handler
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux. metrics may be nil to
// disable the /metrics endpoint.
func NewServer(service *Service, basicAuth BasicAuth, metrics http.Handler) *Server {
	return NewServerWithMux(service, basicAuth, metrics, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, metrics http.Handler, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		metrics:   metrics,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.basicAuth.Password)) == 1
	return userOK && passOK
}

// corsMiddleware adds CORS headers and answers preflight requests
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="SnapBill"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.requireAuth(s.handleStaticCSS))
	s.mux.HandleFunc("GET /static/app.js", s.requireAuth(s.handleStaticJS))

	// Extraction boundary
	s.mux.HandleFunc("POST /api/extract", s.requireAuth(s.handleExtract))

	// Sessions
	s.mux.HandleFunc("POST /api/sessions/{id}/items/{item}/select", s.requireAuth(s.handleSelectItem))
	s.mux.HandleFunc("POST /api/sessions/{id}/items/{item}/deselect", s.requireAuth(s.handleDeselectItem))
	s.mux.HandleFunc("POST /api/sessions/{id}/receipt", s.requireAuth(s.handleUploadReceipt))
	s.mux.HandleFunc("DELETE /api/sessions/{id}/receipt", s.requireAuth(s.handleRemoveReceipt))
	s.mux.HandleFunc("GET /api/sessions/{id}", s.requireAuth(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.requireAuth(s.handleDeleteSession))
	s.mux.HandleFunc("POST /api/sessions", s.requireAuth(s.handleCreateSession))

	if s.metrics != nil {
		s.mux.HandleFunc("GET /metrics", s.requireAuth(s.metrics.ServeHTTP))
	}

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /{$}", s.requireAuth(s.handleIndex))
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
