package handler

import (
	"context"

	"github.com/maramotto/librored/pkg/kafka"
	statsModel "github.com/maramotto/librored/stats/internal/model"
	"github.com/maramotto/librored/stats/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type StatsService interface {
	GetStats(ctx context.Context) (statsModel.StatsInfo, error)
	RecordEvent(ctx context.Context, event kafka.EventLoan) error
}

var _ StatsService = (*service.Service)(nil)
