package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/maramotto/librored/pkg/kafka"
	"github.com/maramotto/librored/stats/internal/model"
	"github.com/maramotto/librored/stats/internal/repository"
)

type Service struct {
	log  *zap.Logger
	repo repository.Repository
}

func NewService(repo repository.Repository, log *zap.Logger) *Service {
	return &Service{
		log:  log,
		repo: repo,
	}
}

// GetStats returns per-user loan counters.
func (s *Service) GetStats(ctx context.Context) (model.StatsInfo, error) {
	return s.repo.GetStats(ctx)
}

// RecordEvent used by the kafka consumer.
func (s *Service) RecordEvent(ctx context.Context, event kafka.EventLoan) error {
	return s.repo.RecordEvent(ctx, event)
}
