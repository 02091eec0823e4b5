package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maramotto/librored/pkg/kafka"
	"github.com/maramotto/librored/pkg/logger"
	"github.com/maramotto/librored/pkg/postgres"
	"github.com/maramotto/librored/stats/config"
	"github.com/maramotto/librored/stats/internal/handler"
	"github.com/maramotto/librored/stats/internal/repository"
	"github.com/maramotto/librored/stats/internal/server"
	"github.com/maramotto/librored/stats/internal/service"
	"github.com/maramotto/librored/stats/migrations"
)

func Run(cfg *config.Config) error {
	log := logger.NewLogger(cfg.Log, "stats")
	db, err := postgres.NewPgxPool(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return fmt.Errorf("db init %w", err)
	}
	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return fmt.Errorf("repo stats %w", err)
	}
	svc := service.NewService(repo, log)

	consumer, err := kafka.NewConsumer(cfg.Kafka, kafka.StatsConsumerGroup)
	if err != nil {
		return fmt.Errorf("kafka.NewConsumer %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	h := handler.New(svc, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return kafka.Consume(ctx, consumer, handler.NewConsumer(svc.RecordEvent, log), kafka.LoanTopic)
	})
	g.Go(func() error {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Debug("Graceful shutdown")

		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Stop(closeCtx); err != nil {
			log.Error("srv.Stop", zap.Error(err))
		}
		if err := consumer.Close(); err != nil {
			log.Error("consumer.Close", zap.Error(err))
		}
		db.Close()
		return nil
	})

	if err := g.Wait(); err != nil && !isCancel(err) {
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
