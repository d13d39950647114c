package usecase

import (
	"context"
	"errors"
	"strings"

	"support-agent/internal/domain"
)

const statusListLimit = 1000

type StatusStore interface {
	CreateStatusCheck(ctx context.Context, clientName string) (domain.StatusCheck, error)
	ListStatusChecks(ctx context.Context, limit int) ([]domain.StatusCheck, error)
}

type StatusService struct {
	store StatusStore
}

func NewStatusService(store StatusStore) (*StatusService, error) {
	if store == nil {
		return nil, errors.New("usecase: status store must not be nil")
	}
	return &StatusService{store: store}, nil
}

func (s *StatusService) Create(ctx context.Context, clientName string) (domain.StatusCheck, error) {
	clientName = strings.TrimSpace(clientName)
	if clientName == "" {
		return domain.StatusCheck{}, newError(ErrorInvalidInput, "empty_client_name", nil)
	}
	check, err := s.store.CreateStatusCheck(ctx, clientName)
	if err != nil {
		return domain.StatusCheck{}, newError(ErrorStorage, "status_write_error", err)
	}
	return check, nil
}

func (s *StatusService) List(ctx context.Context) ([]domain.StatusCheck, error) {
	checks, err := s.store.ListStatusChecks(ctx, statusListLimit)
	if err != nil {
		return nil, newError(ErrorStorage, "status_read_error", err)
	}
	return checks, nil
}
