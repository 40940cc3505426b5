package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/ledger"
	"github.com/yourorg/stocksim/internal/pricing"
)

// OrderService is the submission path: validate, persist PENDING, and for
// market orders fetch a price and execute inline.
type OrderService struct {
	store  ledger.Store
	engine *Engine
	oracle pricing.Oracle
	logger *slog.Logger
}

func NewOrderService(store ledger.Store, engine *Engine, oracle pricing.Oracle, logger *slog.Logger) *OrderService {
	return &OrderService{
		store:  store,
		engine: engine,
		oracle: oracle,
		logger: logger,
	}
}

// Submit returns a *domain.ValidationError, with nothing persisted, when the
// request is rejected up front. Otherwise the created order is returned in
// whatever state it reached: terminal for market orders, PENDING for limits.
func (s *OrderService) Submit(ctx context.Context, userID uuid.UUID, req OrderRequest) (*domain.OrderView, error) {
	order, err := Validate(ctx, s.store, userID, req)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateOrder(ctx, &order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.Info("order accepted",
		"order_id", order.ID, "user_id", userID, "symbol", order.Symbol,
		"side", order.Side, "kind", order.Kind.Name(), "quantity", order.Quantity)

	if _, ok := order.Kind.(domain.Market); ok {
		if err := s.executeMarket(ctx, order); err != nil {
			return nil, err
		}
	}
	return s.view(ctx, order.ID)
}

func (s *OrderService) executeMarket(ctx context.Context, order domain.Order) error {
	// The order exists now; a client that goes away must not leave it PENDING.
	ctx = context.WithoutCancel(ctx)

	price, err := s.oracle.GetPrice(ctx, order.Symbol)
	if err != nil {
		s.logger.Warn("market order price unavailable", "order_id", order.ID, "symbol", order.Symbol, "err", err)
		_, err = s.engine.Fail(ctx, order.ID, err.Error())
		return err
	}
	_, err = s.engine.Execute(ctx, order.ID, price)
	return err
}

// Cancel moves the user's PENDING order to CANCELED. Orders of other users,
// unknown ids and orders that already reached a terminal state all yield
// domain.ErrOrderNotCancelable.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*domain.OrderView, error) {
	err := s.store.WithUserLock(ctx, userID, func(ctx context.Context, tx ledger.Tx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrOrderNotCancelable
			}
			return err
		}
		if order.Status != domain.StatusPending {
			return domain.ErrOrderNotCancelable
		}
		return tx.SetOrderStatus(ctx, orderID, domain.StatusCanceled)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("order canceled", "order_id", orderID, "user_id", userID)
	return s.view(ctx, orderID)
}

// GetOrder returns domain.ErrNotFound for orders the user does not own.
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.OrderView, error) {
	v, err := s.view(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if v.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID) ([]domain.OrderView, error) {
	orders, err := s.store.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return s.withFills(ctx, orders)
}

func (s *OrderService) ListPendingOrders(ctx context.Context, userID uuid.UUID) ([]domain.OrderView, error) {
	orders, err := s.store.ListPendingOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}
	return s.withFills(ctx, orders)
}

func (s *OrderService) view(ctx context.Context, orderID uuid.UUID) (*domain.OrderView, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	views, err := s.withFills(ctx, []domain.Order{*order})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *OrderService) withFills(ctx context.Context, orders []domain.Order) ([]domain.OrderView, error) {
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		if o.Status == domain.StatusCompleted {
			ids = append(ids, o.ID)
		}
	}
	fills, err := s.store.GetFillsByOrderIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	views := make([]domain.OrderView, len(orders))
	for i, o := range orders {
		var fill *domain.Fill
		if f, ok := fills[o.ID]; ok {
			fill = &f
		}
		views[i] = domain.NewOrderView(o, fill)
	}
	return views, nil
}
