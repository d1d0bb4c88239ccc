package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"elegentdefi/platform"
	"elegentdefi/quote"
	"elegentdefi/state"
	"elegentdefi/units"
)

func (s *Server) context(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.cfg.RequestTimeout)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Meta)
}

// handleSnapshot serves the poller's view. Before the first successful poll
// it answers 503, with the poll error when there is one.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	view := s.snapshots.View()
	if view.UpdatedAt.IsZero() {
		msg := "snapshot not loaded yet"
		if view.Err != "" {
			msg = view.Err
		}
		writeJSONError(w, http.StatusServiceUnavailable, msg)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleTerms(w http.ResponseWriter, r *http.Request) {
	type termView struct {
		quote.Term
		Label string `json:"label"`
	}
	terms := quote.Terms()
	out := make([]termView, 0, len(terms))
	for _, term := range terms {
		out = append(out, termView{Term: term, Label: term.Label()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days := 0
	if raw := strings.TrimSpace(query.Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid days %q", raw))
			return
		}
		days = parsed
	}
	q, err := quote.ForLoan(query.Get("principal"), days)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "score")
	score, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid score %q", raw))
		return
	}
	ctx, cancel := s.context(r.Context())
	defer cancel()
	rate, err := s.reader.DynamicRate(ctx, score)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"score": score, "rateBps": rate})
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "address")
	ctx, cancel := s.context(r.Context())
	defer cancel()
	loans, err := s.reader.LoansOf(ctx, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := s.reader.MaxLoan(ctx, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	book := state.LoansState{Loans: loans, MaxLoan: limit}
	if book.Loans == nil {
		book.Loans = []platform.Loan{}
	}
	writeJSON(w, http.StatusOK, struct {
		state.LoansState
		Active int `json:"active"`
	}{book, len(book.Active())})
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "address")
	ctx, cancel := s.context(r.Context())
	defer cancel()
	stake, err := s.reader.UserStake(ctx, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rewards, err := s.reader.PendingRewards(ctx, account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state.StakingState{Stake: stake, PendingRewards: rewards})
}

func (s *Server) handleTrustScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.context(r.Context())
	defer cancel()
	score, err := s.reader.TrustScoreOf(ctx, chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := state.TrustState{Owner: score.Owner, Score: score.Score}
	if score.Score > 0 {
		out.Exists = true
		out.Tier = quote.TierFor(score.Score)
		out.Benefits = out.Tier.Benefits()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	ctx, cancel := s.context(r.Context())
	defer cancel()
	supported, err := s.reader.SupportedToken(ctx, token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	available, err := s.reader.TokenLiquidity(ctx, token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pool := state.TokenPool{Token: common.HexToAddress(token), Supported: supported, Available: available}
	writeJSON(w, http.StatusOK, struct {
		state.TokenPool
		Borrowable units.Amount `json:"borrowable"`
	}{pool, borrowable(available)})
}

// borrowable is the share of a pool the quote math lets one borrower take,
// ignoring the per-account limit.
func borrowable(available units.Amount) units.Amount {
	capped := quote.MaxBorrow(available.Decimal(), available.Decimal())
	base, err := units.ToBaseUnits(capped.String())
	if err != nil {
		return units.FromBase(nil)
	}
	return units.FromBase(base)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "event stream disabled")
		return
	}
	id, messages, unsubscribe, err := s.hub.Subscribe()
	if err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	defer unsubscribe()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns(s.cfg.AllowedOrigins)})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	s.logger.Debug("event stream opened", "stream", id, "client", clientID(r))

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(writeCtx, conn, msg)
			cancel()
			if err != nil {
				if websocket.CloseStatus(err) == -1 {
					s.logger.Debug("event stream write failed", "stream", id, "error", err)
				}
				return
			}
		}
	}
}

const wsWriteTimeout = 10 * time.Second

func originPatterns(allowed []string) []string {
	if len(allowed) == 0 {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return []string{"*"}
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			patterns = append(patterns, parsed.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

// statusFor maps the client's error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, platform.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, platform.ErrContractNotReady):
		return http.StatusConflict
	case errors.Is(err, platform.ErrWalletUnavailable):
		return http.StatusUnauthorized
	case errors.Is(err, platform.ErrUserRejected):
		return http.StatusForbidden
	case errors.Is(err, platform.ErrReverted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, platform.ErrRPC), errors.Is(err, platform.ErrMalformedEvent):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("dashboard request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "encode response")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = http.StatusText(status)
	}
	data, _ := json.Marshal(map[string]string{"error": message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
