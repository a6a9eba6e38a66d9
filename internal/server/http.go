package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"OptionLedger/internal/engine"
	"OptionLedger/internal/event"
	"OptionLedger/internal/ledger"
	"OptionLedger/internal/query"
)

// Server exposes the synchronous HTTP command and query surface. Commands
// submitted here carry no upstream sequence; they are assigned one by the
// settlement engine and the caller gets the outcome on a reply channel.
type Server struct {
	requests chan<- engine.Request
	facade   *query.Facade
	service  *query.Service
	log      zerolog.Logger
	timeout  time.Duration

	router http.Handler
}

type Config struct {
	Requests chan<- engine.Request
	Facade   *query.Facade
	Service  *query.Service
	Log      zerolog.Logger
	Timeout  time.Duration
}

func New(cfg Config) *Server {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	s := &Server{
		requests: cfg.Requests,
		facade:   cfg.Facade,
		service:  cfg.Service,
		log:      cfg.Log,
		timeout:  cfg.Timeout,
	}
	s.router = s.buildRouter()
	return s
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Route("/v1", func(api chi.Router) {
		api.Post("/pools", s.createPool)
		api.Get("/pools", s.listPools)

		api.Route("/pools/{asset}", func(p chi.Router) {
			p.Get("/status", s.poolStatus)
			p.Get("/capacity/reserve", s.capacityForReserve)

			p.Post("/liquidity/deposit", s.liquidityDeposit)
			p.Post("/liquidity/withdraw", s.liquidityWithdraw)
			p.Post("/reserve", s.reserveFunds)
			p.Post("/release", s.releaseReserved)

			p.Post("/users/deposit", s.userDeposit)
			p.Post("/users/withdraw", s.userWithdraw)
			p.Get("/users/{user}/balance", s.userBalance)
			p.Get("/users/{user}/capacity/premium", s.capacityForPremium)
			p.Get("/users/{user}/journals", s.journalHistory)

			p.Post("/orders", s.submitOrder)
			p.Post("/payouts", s.payProfit)
			p.Post("/liquidate", s.liquidate)

			p.Route("/admin", func(a chi.Router) {
				a.Post("/submitters", s.membership("AddSubmitter"))
				a.Delete("/submitters", s.membership("RemoveSubmitter"))
				a.Post("/liquidators", s.membership("AddLiquidator"))
				a.Delete("/liquidators", s.membership("RemoveLiquidator"))
				a.Post("/transfer", s.membership("SetAdmin"))
				a.Post("/pause", s.setPause)
				a.Post("/reserve-ratio", s.setMinReserveRatio)
			})
		})

		api.Get("/integrity", s.verifyIntegrity)
	})

	return r
}

// caller returns the authenticated caller identity supplied by the fronting
// proxy. An empty identity is rejected before the command reaches the core.
func caller(r *http.Request) string {
	return r.Header.Get("X-Caller")
}

// submit sends a command into the engine and waits for the synchronous
// outcome.
func (s *Server) submit(ctx context.Context, w http.ResponseWriter, cmd event.Command) {
	reply := make(chan engine.Response, 1)

	select {
	case s.requests <- engine.Request{Cmd: cmd, Reply: reply}:
	case <-ctx.Done():
		s.log.Warn().Str("command", cmd.CommandType().String()).Msg("request queue full")
		writeError(w, http.StatusServiceUnavailable, "request queue full")
		return
	}

	select {
	case resp := <-reply:
		if resp.Err != nil {
			writeLedgerError(w, resp.Err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sequence":  resp.Result.Sequence,
			"reserved":  resp.Result.Reserved,
			"duplicate": resp.Result.Duplicate,
		})
	case <-ctx.Done():
		s.log.Warn().Str("command", cmd.CommandType().String()).Msg("settlement reply timed out")
		writeError(w, http.StatusGatewayTimeout, "settlement timed out")
	}
}

func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

// --- command handlers ---

func (s *Server) createPool(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Asset string `json:"asset"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Asset == "" {
		writeError(w, http.StatusBadRequest, "asset is required")
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.CreatePool{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     req.Asset,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) liquidityDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.LiquidityDeposit{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		Amount:    req.Amount,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) liquidityWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To     string `json:"to"`
		Amount int64  `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.LiquidityWithdraw{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		To:        req.To,
		Amount:    req.Amount,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) reserveFunds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObligationID string `json:"obligation_id"`
		Amount       int64  `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ObligationID == "" {
		writeError(w, http.StatusBadRequest, "obligation_id is required")
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.ReserveFunds{
		CommandID:    uuid.New(),
		Caller:       from,
		Asset:        chi.URLParam(r, "asset"),
		ObligationID: req.ObligationID,
		Amount:       req.Amount,
		Timestamp:    time.Now().UnixMicro(),
	})
}

func (s *Server) releaseReserved(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.ReleaseReserved{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		Amount:    req.Amount,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) userDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.UserDeposit{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		Amount:    req.Amount,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) userWithdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.UserWithdraw{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		Amount:    req.Amount,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) submitOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID         string `json:"order_id"`
		User            string `json:"user"`
		Premium         int64  `json:"premium"`
		ObligationID    string `json:"obligation_id"`
		PotentialPayout int64  `json:"potential_payout"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.OrderID == "" || req.User == "" {
		writeError(w, http.StatusBadRequest, "order_id and user are required")
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.SubmitOrder{
		CommandID:       uuid.New(),
		Caller:          from,
		Asset:           chi.URLParam(r, "asset"),
		OrderID:         req.OrderID,
		User:            req.User,
		Premium:         req.Premium,
		ObligationID:    req.ObligationID,
		PotentialPayout: req.PotentialPayout,
		Timestamp:       time.Now().UnixMicro(),
	})
}

func (s *Server) payProfit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User   string `json:"user"`
		Amount int64  `json:"amount"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.PayProfit{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		User:      req.User,
		Amount:    req.Amount,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) liquidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ObligationID    string `json:"obligation_id"`
		User            string `json:"user"`
		InitialReserved int64  `json:"initial_reserved"`
		Payout          int64  `json:"payout"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.ObligationID == "" || req.User == "" {
		writeError(w, http.StatusBadRequest, "obligation_id and user are required")
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.Liquidate{
		CommandID:       uuid.New(),
		Caller:          from,
		Asset:           chi.URLParam(r, "asset"),
		ObligationID:    req.ObligationID,
		User:            req.User,
		InitialReserved: req.InitialReserved,
		Payout:          req.Payout,
		Timestamp:       time.Now().UnixMicro(),
	})
}

// membership returns a handler for the add/remove/transfer role commands,
// which share the same request shape.
func (s *Server) membership(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
		}
		if !decode(w, r, &req) {
			return
		}
		if req.Address == "" {
			writeError(w, http.StatusBadRequest, "address is required")
			return
		}
		from := caller(r)
		if from == "" {
			writeError(w, http.StatusBadRequest, "missing X-Caller")
			return
		}

		asset := chi.URLParam(r, "asset")
		ts := time.Now().UnixMicro()
		var cmd event.Command
		switch kind {
		case "AddSubmitter":
			cmd = &event.AddSubmitter{CommandID: uuid.New(), Caller: from, Asset: asset, Address: req.Address, Timestamp: ts}
		case "RemoveSubmitter":
			cmd = &event.RemoveSubmitter{CommandID: uuid.New(), Caller: from, Asset: asset, Address: req.Address, Timestamp: ts}
		case "AddLiquidator":
			cmd = &event.AddLiquidator{CommandID: uuid.New(), Caller: from, Asset: asset, Address: req.Address, Timestamp: ts}
		case "RemoveLiquidator":
			cmd = &event.RemoveLiquidator{CommandID: uuid.New(), Caller: from, Asset: asset, Address: req.Address, Timestamp: ts}
		case "SetAdmin":
			cmd = &event.SetAdmin{CommandID: uuid.New(), Caller: from, Asset: asset, Address: req.Address, Timestamp: ts}
		default:
			writeError(w, http.StatusInternalServerError, "unknown membership action")
			return
		}

		ctx, cancel := s.withTimeout(r)
		defer cancel()
		s.submit(ctx, w, cmd)
	}
}

func (s *Server) setPause(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused bool `json:"paused"`
	}
	if !decode(w, r, &req) {
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.SetPause{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		Paused:    req.Paused,
		Timestamp: time.Now().UnixMicro(),
	})
}

func (s *Server) setMinReserveRatio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ratio int64 `json:"ratio"`
	}
	if !decode(w, r, &req) {
		return
	}
	from := caller(r)
	if from == "" {
		writeError(w, http.StatusBadRequest, "missing X-Caller")
		return
	}

	ctx, cancel := s.withTimeout(r)
	defer cancel()
	s.submit(ctx, w, &event.SetMinReserveRatio{
		CommandID: uuid.New(),
		Caller:    from,
		Asset:     chi.URLParam(r, "asset"),
		Ratio:     req.Ratio,
		Timestamp: time.Now().UnixMicro(),
	})
}

// --- query handlers ---

func (s *Server) listPools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"pools": s.facade.ListPools()})
}

func (s *Server) poolStatus(w http.ResponseWriter, r *http.Request) {
	// ?source=projection reads the eventually consistent Postgres read
	// model instead of live engine state, and reports its as-of sequence.
	if r.URL.Query().Get("source") == "projection" {
		if s.service == nil {
			writeError(w, http.StatusNotImplemented, "projection queries unavailable")
			return
		}
		resp, err := s.service.GetPoolStatus(r.Context(), chi.URLParam(r, "asset"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	status, err := s.facade.PoolStatus(chi.URLParam(r, "asset"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"asset":             status.Asset,
		"treasury_total":    status.TreasuryTotal,
		"available":         status.Available,
		"reserved":          status.Reserved,
		"user_total":        status.UserTotal,
		"admin":             status.Admin,
		"paused":            status.Paused,
		"min_reserve_ratio": status.MinReserveRatio,
	})
}

func (s *Server) userBalance(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("source") == "projection" {
		if s.service == nil {
			writeError(w, http.StatusNotImplemented, "projection queries unavailable")
			return
		}
		resp, err := s.service.GetUserBalance(r.Context(), chi.URLParam(r, "asset"), chi.URLParam(r, "user"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	balance, found, err := s.facade.UserBalance(chi.URLParam(r, "asset"), chi.URLParam(r, "user"))
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    chi.URLParam(r, "user"),
		"asset":   chi.URLParam(r, "asset"),
		"balance": balance,
	})
}

func (s *Server) capacityForReserve(w http.ResponseWriter, r *http.Request) {
	amount, err := amountParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.facade.CapacityForReserve(chi.URLParam(r, "asset"), amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"amount": amount, "ok": ok})
}

func (s *Server) capacityForPremium(w http.ResponseWriter, r *http.Request) {
	amount, err := amountParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.facade.CapacityForPremium(chi.URLParam(r, "asset"), chi.URLParam(r, "user"), amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"amount": amount, "ok": ok})
}

func (s *Server) journalHistory(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		writeError(w, http.StatusNotImplemented, "journal history unavailable")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "limit must be 1-500")
			return
		}
		limit = parsed
	}

	var after *int64
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be an integer")
			return
		}
		after = &parsed
	}

	entries, err := s.service.GetJournalHistory(
		r.Context(), chi.URLParam(r, "asset"), chi.URLParam(r, "user"), limit, after,
	)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"journals": entries})
}

func (s *Server) verifyIntegrity(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		writeError(w, http.StatusNotImplemented, "integrity check unavailable")
		return
	}
	report, err := s.service.VerifyIntegrity(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "integrity check failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	return true
}

func amountParam(r *http.Request) (int64, error) {
	v := r.URL.Query().Get("amount")
	if v == "" {
		return 0, errors.New("amount is required")
	}
	amount, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.New("amount must be an integer")
	}
	return amount, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeLedgerError maps ledger sentinel errors to HTTP status codes.
func writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrPoolNotFound), errors.Is(err, ledger.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrPaused),
		errors.Is(err, ledger.ErrPoolExists),
		errors.Is(err, ledger.ErrAlreadyAuthorized),
		errors.Is(err, ledger.ErrNotAuthorized):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientAvailable),
		errors.Is(err, ledger.ErrInsufficientReserve),
		errors.Is(err, ledger.ErrInsufficientUserBalance),
		errors.Is(err, ledger.ErrReserveFloorViolation):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err.Error())
}
