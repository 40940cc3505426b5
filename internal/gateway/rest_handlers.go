package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/auth"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/execution"
	"github.com/yourorg/stocksim/internal/ledger"
	"github.com/yourorg/stocksim/internal/valuation"
)

type Handlers struct {
	users       ledger.Users
	store       ledger.Store
	orderSvc    *execution.OrderService
	valuation   *valuation.Service
	jwtSvc      *auth.JWTService
	initialCash decimal.Decimal
	logger      *slog.Logger
}

func NewHandlers(
	users ledger.Users,
	store ledger.Store,
	orderSvc *execution.OrderService,
	valuationSvc *valuation.Service,
	jwtSvc *auth.JWTService,
	initialCash decimal.Decimal,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		users:       users,
		store:       store,
		orderSvc:    orderSvc,
		valuation:   valuationSvc,
		jwtSvc:      jwtSvc,
		initialCash: initialCash,
		logger:      logger,
	}
}

type registerRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type authResponse struct {
	Token   string          `json:"token"`
	User    *domain.User    `json:"user"`
	Account *domain.Account `json:"account"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.internalError(w, "hash password", err)
		return
	}
	user := &domain.User{
		Email:        req.Email,
		Nickname:     strings.TrimSpace(req.Nickname),
		PasswordHash: hash,
	}
	if err := h.users.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		h.internalError(w, "create user", err)
		return
	}
	acct, err := h.store.CreateAccount(r.Context(), user.ID, h.initialCash)
	if err != nil {
		h.internalError(w, "create account", err)
		return
	}
	token, err := h.jwtSvc.Sign(user.ID)
	if err != nil {
		h.internalError(w, "sign token", err)
		return
	}
	h.logger.Info("user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user, Account: acct})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	acct, err := h.store.GetAccount(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, "load account", err)
		return
	}
	token, err := h.jwtSvc.Sign(user.ID)
	if err != nil {
		h.internalError(w, "sign token", err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user, Account: acct})
}

func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.store.GetAccount(r.Context(), auth.UserIDFromCtx(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *Handlers) GetLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListCashEntries(r.Context(), auth.UserIDFromCtx(r.Context()))
	if err != nil {
		h.internalError(w, "list cash entries", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p, err := h.valuation.Portfolio(r.Context(), auth.UserIDFromCtx(r.Context()))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.ListOrders(r.Context(), auth.UserIDFromCtx(r.Context()))
	if err != nil {
		h.internalError(w, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetPendingOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orderSvc.ListPendingOrders(r.Context(), auth.UserIDFromCtx(r.Context()))
	if err != nil {
		h.internalError(w, "list pending orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handlers) GetFills(w http.ResponseWriter, r *http.Request) {
	fills, err := h.store.ListFills(r.Context(), auth.UserIDFromCtx(r.Context()))
	if err != nil {
		h.internalError(w, "list fills", err)
		return
	}
	writeJSON(w, http.StatusOK, fills)
}

type createOrderRequest struct {
	Symbol     string           `json:"symbol"`
	Side       domain.OrderSide `json:"side"`
	OrderKind  domain.KindName  `json:"order_kind"`
	Quantity   int64            `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	view, err := h.orderSvc.Submit(r.Context(), auth.UserIDFromCtx(r.Context()), execution.OrderRequest{
		Symbol:     req.Symbol,
		Side:       domain.OrderSide(strings.ToUpper(string(req.Side))),
		OrderKind:  domain.KindName(strings.ToUpper(string(req.OrderKind))),
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	view, err := h.orderSvc.GetOrder(r.Context(), auth.UserIDFromCtx(r.Context()), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	view, err := h.orderSvc.Cancel(r.Context(), auth.UserIDFromCtx(r.Context()), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

type validationResponse struct {
	Error string                `json:"error"`
	Code  domain.ValidationCode `json:"code"`
}

func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: verr.Message, Code: verr.Code})
	case errors.Is(err, domain.ErrOrderNotCancelable):
		writeError(w, http.StatusNotFound, "order not found or cannot be canceled")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	default:
		h.internalError(w, "request failed", err)
	}
}

func (h *Handlers) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
