// Package dashboard serves a read-only HTTP view of the platform: the polled
// snapshot, per-account positions, loan quotes and a websocket stream of
// contract events. It never submits transactions.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"elegentdefi/platform"
	"elegentdefi/state"
	"elegentdefi/units"
)

// Reader is the read side of the platform client.
type Reader interface {
	LoansOf(ctx context.Context, user string) ([]platform.Loan, error)
	MaxLoan(ctx context.Context, user string) (units.Amount, error)
	UserStake(ctx context.Context, user string) (platform.Stake, error)
	PendingRewards(ctx context.Context, user string) (units.Amount, error)
	TrustScoreOf(ctx context.Context, user string) (platform.TrustScore, error)
	TokenLiquidity(ctx context.Context, token string) (units.Amount, error)
	SupportedToken(ctx context.Context, token string) (bool, error)
	DynamicRate(ctx context.Context, score uint64) (uint64, error)
}

// SnapshotSource exposes the poller's latest snapshot.
type SnapshotSource interface {
	View() state.View[platform.Snapshot]
}

// Meta describes the deployment the dashboard is pointed at.
type Meta struct {
	Service           string         `json:"service"`
	Network           string         `json:"network"`
	ChainID           int64          `json:"chainId"`
	PlatformAddress   common.Address `json:"platformAddress"`
	TrustScoreAddress common.Address `json:"trustScoreAddress"`
	LoanNFTAddress    common.Address `json:"loanNftAddress"`
	DeployedBlock     uint64         `json:"deployedBlock"`
	DeploymentHash    string         `json:"deploymentHash,omitempty"`
	Deployer          string         `json:"deployer,omitempty"`
	PollInterval      string         `json:"pollInterval"`
}

type Config struct {
	Service        string
	Meta           Meta
	RateLimit      RateLimit
	AllowedOrigins []string
	RequestTimeout time.Duration
}

const (
	defaultRequestTimeout = 10 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 10 * time.Second
)

type Server struct {
	cfg       Config
	reader    Reader
	snapshots SnapshotSource
	hub       *Hub
	logger    *slog.Logger
	handler   http.Handler
}

// New builds the router. hub may be nil, in which case /api/events answers
// 503.
func New(cfg Config, reader Reader, snapshots SnapshotSource, hub *Hub, logger *slog.Logger) (*Server, error) {
	if reader == nil {
		return nil, errors.New("dashboard: reader required")
	}
	if snapshots == nil {
		return nil, errors.New("dashboard: snapshot source required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Service == "" {
		cfg.Service = "elegent-dashboard"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	cfg.Meta.Service = cfg.Service
	s := &Server{
		cfg:       cfg,
		reader:    reader,
		snapshots: snapshots,
		hub:       hub,
		logger:    logger,
	}
	s.handler = otelhttp.NewHandler(s.routes(), cfg.Service)
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors(s.cfg.AllowedOrigins))
	r.Use(observe)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	limiter := NewRateLimiter(s.cfg.RateLimit, s.logger)
	r.Route("/api", func(api chi.Router) {
		api.Use(limiter.Middleware)
		api.Get("/meta", s.handleMeta)
		api.Get("/snapshot", s.handleSnapshot)
		api.Get("/terms", s.handleTerms)
		api.Get("/quote", s.handleQuote)
		api.Get("/rates/{score}", s.handleRate)
		api.Get("/accounts/{address}/loans", s.handleLoans)
		api.Get("/accounts/{address}/stake", s.handleStake)
		api.Get("/accounts/{address}/trust-score", s.handleTrustScore)
		api.Get("/tokens/{token}/liquidity", s.handleLiquidity)
		api.Get("/events", s.handleEvents)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard: serve: %w", err)
	}
	return nil
}
