package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence the Service relies on; *Repository implements it.
type Store interface {
	Place(ctx context.Context, userID string, cart []CartItem) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	GetForUser(ctx context.Context, id, userID string) (*Order, error)
}

// Service contains the checkout business logic.
type Service struct {
	repo Store
	log  *zap.Logger
}

// NewService creates a new order Service.
func NewService(repo Store, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Place checks the cart and places an order for userID.
func (s *Service) Place(ctx context.Context, userID string, cart []CartItem) (*Order, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	for _, c := range cart {
		if _, err := uuid.Parse(c.VariationID); err != nil {
			return nil, fmt.Errorf("%w: variationId %q is not a valid id", ErrInvalidCart, c.VariationID)
		}
		if c.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidCart)
		}
	}

	o, err := s.repo.Place(ctx, userID, Merge(cart))
	if errors.Is(err, ErrEmptyCart) {
		s.log.Info("order rejected, no stock left", zap.String("user_id", userID), zap.Int("lines", len(cart)))
		return nil, err
	}
	if err != nil {
		s.log.Error("place order failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	for _, a := range o.Adjustments {
		s.log.Warn("order line reduced to available stock",
			zap.String("order_id", o.ID),
			zap.String("variation_id", a.VariationID),
			zap.Int("requested", a.Requested),
			zap.Int("granted", a.Granted))
	}
	s.log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("user_id", userID),
		zap.Stringer("total", o.Total),
		zap.Int("quantity", o.Quantity))
	return o, nil
}

// List returns the user's orders.
func (s *Service) List(ctx context.Context, userID string) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns one of the user's orders with its items.
func (s *Service) Get(ctx context.Context, id, userID string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.repo.GetForUser(ctx, id, userID)
}
