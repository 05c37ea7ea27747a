package http

import (
	"context"
	"net/http"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// Ledger is the part of the ledger service the API exposes.
type Ledger interface {
	CreateAccount(ctx context.Context, ownerID string, in core.AccountInput) (core.Account, error)
	GetAccount(ctx context.Context, ownerID, accountID string) (core.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]core.Account, error)
	CreateTransaction(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error)
	UpdateTransaction(ctx context.Context, ownerID, transactionID string, in core.TransactionInput) (core.Transaction, error)
	GetTransaction(ctx context.Context, ownerID, transactionID string) (core.Transaction, error)
	ListTransactions(ctx context.Context, ownerID, accountID string, limit int) ([]core.Transaction, error)
}

// ReceiptScanner extracts transaction fields from a receipt image.
type ReceiptScanner interface {
	Extract(ctx context.Context, image []byte, mimeType string) (core.Receipt, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators. Receipts may be nil, which
// disables receipt scanning.
type Options struct {
	Ledger          Ledger
	Receipts        ReceiptScanner
	Store           Pinger
	MaxReceiptBytes int64
}

type Server struct {
	http.Server

	ledger          Ledger
	receipts        ReceiptScanner
	store           Pinger
	maxReceiptBytes int64

	tracer   *trace.Middleware
	detector *security.Detector
	started  time.Time
}

func NewServer(addr string, logger *log.Logger, opts Options) *Server {
	mux := http.NewServeMux()
	detector := security.NewDetector()

	s := &Server{
		ledger:          opts.Ledger,
		receipts:        opts.Receipts,
		store:           opts.Store,
		maxReceiptBytes: opts.MaxReceiptBytes,
		tracer:          trace.NewMiddleware(logger, detector.ExtractClientIP),
		detector:        detector,
		started:         time.Now(),
	}
	if s.maxReceiptBytes <= 0 {
		s.maxReceiptBytes = 5 << 20
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /accounts", s.withOwner(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts", s.withOwner(s.handleListAccounts))
	mux.HandleFunc("GET /accounts/{id}", s.withOwner(s.handleGetAccount))
	mux.HandleFunc("GET /accounts/{id}/transactions", s.withOwner(s.handleListTransactions))

	mux.HandleFunc("POST /transactions", s.withOwner(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions/{id}", s.withOwner(s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/{id}", s.withOwner(s.handleUpdateTransaction))

	mux.HandleFunc("POST /receipts/scan", s.withOwner(s.handleScanReceipt))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(detector.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

type ownedHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// withOwner rejects requests without an owner identity with 401.
func (s *Server) withOwner(next ownedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := ownerID(r)
		if owner == "" {
			writeProblem(w, http.StatusUnauthorized, kindUnauthenticated, "missing or invalid "+OwnerHeader+" header")
			return
		}
		logger := log.FromContext(r.Context()).With(log.NewFields().WithOwner(owner).ToSlice()...)
		ctx := log.WithLogger(r.Context(), logger)
		next(w, r.WithContext(ctx), owner)
	}
}
