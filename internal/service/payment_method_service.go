package service

import (
	"context"
	"errors"

	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/internal/repository"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// PaymentMethodStore is the storage surface backing the payment method vault
type PaymentMethodStore interface {
	Create(ctx context.Context, method *models.PaymentMethod, makeDefault bool) error
	GetByID(ctx context.Context, id string) (*models.PaymentMethod, error)
	ListActiveByUser(ctx context.Context, userID string) ([]*models.PaymentMethod, error)
	SetDefault(ctx context.Context, userID, methodID string) error
	Deactivate(ctx context.Context, userID, methodID string) error
}

// PaymentMethodService owns users' stored payment instruments and the
// single-default invariant
type PaymentMethodService struct {
	methods PaymentMethodStore
	logger  logger.Logger
}

// NewPaymentMethodService creates a new PaymentMethodService
func NewPaymentMethodService(methods PaymentMethodStore, logger logger.Logger) *PaymentMethodService {
	return &PaymentMethodService{
		methods: methods,
		logger:  logger,
	}
}

// AddMethod validates the card fields and stores a new method. CVV is
// validated here and discarded; it is never persisted. The response carries
// the masked card number only.
func (s *PaymentMethodService) AddMethod(ctx context.Context, actor models.Actor, in models.CardInput) (models.PaymentMethod, error) {
	if err := models.ValidateCard(in, models.GetCurrentTime()); err != nil {
		return models.PaymentMethod{}, apperrors.NewValidationError(err.Error())
	}

	method := models.NewPaymentMethod(actor.UserID, in)

	if err := s.methods.Create(ctx, method, in.SetDefault); err != nil {
		return models.PaymentMethod{}, err
	}

	s.logger.Info("Payment method added",
		"methodID", method.ID,
		"userID", actor.UserID,
		"network", method.Network,
		"isDefault", method.IsDefault)

	return method.Sanitize(), nil
}

// ListMethods returns the user's active methods with masked card numbers
func (s *PaymentMethodService) ListMethods(ctx context.Context, actor models.Actor) ([]models.PaymentMethod, error) {
	methods, err := s.methods.ListActiveByUser(ctx, actor.UserID)

	if err != nil {
		return nil, err
	}

	sanitized := make([]models.PaymentMethod, 0, len(methods))

	for _, m := range methods {
		sanitized = append(sanitized, m.Sanitize())
	}

	return sanitized, nil
}

// SetDefault marks one of the user's active methods as default
func (s *PaymentMethodService) SetDefault(ctx context.Context, actor models.Actor, methodID string) error {
	err := s.methods.SetDefault(ctx, actor.UserID, methodID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("payment method not found")
		}
		return err
	}

	s.logger.Info("Default payment method changed", "methodID", methodID, "userID", actor.UserID)
	return nil
}

// Remove soft-deletes a method; if it was the default, another active method
// is promoted deterministically
func (s *PaymentMethodService) Remove(ctx context.Context, actor models.Actor, methodID string) error {
	err := s.methods.Deactivate(ctx, actor.UserID, methodID)

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFoundError("payment method not found")
		}
		return err
	}

	s.logger.Info("Payment method removed", "methodID", methodID, "userID", actor.UserID)
	return nil
}
