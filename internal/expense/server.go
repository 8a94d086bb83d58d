package expense

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pineapple-expense/expense-engine/internal/api"
	"github.com/pineapple-expense/expense-engine/internal/archive"
)

// ReceiptAPI is the slice of the backend serving receipt capture:
// presigned image upload URLs and field predictions. *api.Client
// satisfies it.
type ReceiptAPI interface {
	ReceiptUploadURL(ctx context.Context, fileName string) (string, error)
	Predict(ctx context.Context, receiptID, userName string) (*api.Prediction, error)
}

// Server exposes the engine over HTTP so any front-end can drive it
type Server struct {
	engine    *Engine
	archive   *archive.Service
	receipts  ReceiptAPI
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(engine *Engine, archiveSvc *archive.Service, receipts ReceiptAPI, basicAuth BasicAuth) *Server {
	return NewServerWithMux(engine, archiveSvc, receipts, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(engine *Engine, archiveSvc *archive.Service, receipts ReceiptAPI, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		engine:    engine,
		archive:   archiveSvc,
		receipts:  receipts,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Expense Engine"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	// Expenses
	s.mux.HandleFunc("GET /api/expenses/unattached", s.requireAuth(s.handleUnattachedExpenses))
	s.mux.HandleFunc("GET /api/expenses/{id}/image", s.requireAuth(s.handleGetExpenseImage))
	s.mux.HandleFunc("GET /api/expenses/{id}/prediction", s.requireAuth(s.handlePredictExpense))
	s.mux.HandleFunc("POST /api/expenses/{id}/upload-url", s.requireAuth(s.handleReceiptUploadURL))
	s.mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	s.mux.HandleFunc("PATCH /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	s.mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))
	s.mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	s.mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))

	// Draft report
	s.mux.HandleFunc("GET /api/reports/draft", s.requireAuth(s.handleGetDraft))
	s.mux.HandleFunc("POST /api/reports/draft/expenses", s.requireAuth(s.handleAddToDraft))
	s.mux.HandleFunc("DELETE /api/reports/draft/expenses/{id}", s.requireAuth(s.handleRemoveFromDraft))
	s.mux.HandleFunc("POST /api/reports/draft/submit", s.requireAuth(s.handleSubmit))

	// Reports
	s.mux.HandleFunc("POST /api/reports/refresh", s.requireAuth(s.handleRefresh))
	s.mux.HandleFunc("POST /api/reports/refresh-pending", s.requireAuth(s.handleRefreshPending))
	s.mux.HandleFunc("POST /api/reports/{id}/recall", s.requireAuth(s.handleRecall))
	s.mux.HandleFunc("POST /api/reports/{id}/approve", s.requireAuth(s.handleApprove))
	s.mux.HandleFunc("POST /api/reports/{id}/reject", s.requireAuth(s.handleReject))
	s.mux.HandleFunc("GET /api/reports/{id}", s.requireAuth(s.handleGetReport))
	s.mux.HandleFunc("DELETE /api/reports/{id}", s.requireAuth(s.handleDeleteReport))
	s.mux.HandleFunc("GET /api/reports", s.requireAuth(s.handleListReports))

	// Category mappings
	s.mux.HandleFunc("GET /api/mappings", s.requireAuth(s.handleListMappings))
	s.mux.HandleFunc("PUT /api/mappings/{category}", s.requireAuth(s.handleSetMapping))
	s.mux.HandleFunc("DELETE /api/mappings/{category}", s.requireAuth(s.handleDeleteMapping))

	// CSV archive
	s.mux.HandleFunc("POST /api/archive/csv", s.requireAuth(s.handleBuildCSV))
	s.mux.HandleFunc("POST /api/archive/upload", s.requireAuth(s.handleUploadCSV))
	s.mux.HandleFunc("GET /api/archive/files", s.requireAuth(s.handleDownloadAll))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			s.mux.ServeHTTP(w, r)
		})(w, r)
	}))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
