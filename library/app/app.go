package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/auth"
	"github.com/Astemirdum/lending-service/library/internal/handler"
	"github.com/Astemirdum/lending-service/library/internal/queue"
	"github.com/Astemirdum/lending-service/library/internal/repository"
	"github.com/Astemirdum/lending-service/library/internal/server"
	"github.com/Astemirdum/lending-service/library/internal/service"
	"github.com/Astemirdum/lending-service/pkg/circuit_breaker"
	"github.com/Astemirdum/lending-service/pkg/kafka"
	"github.com/Astemirdum/lending-service/pkg/logger"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := repository.NewRepository(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("repository init", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}
	defer repo.Close()

	issuer := auth.NewIssuer(cfg.Auth)
	evaluator := auth.NewEvaluator(issuer, repo.Users, log)

	publisher := queue.NewNopPublisher(log)
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewProducer", zap.Error(err))
		}
		defer closeWithLog(log, "producer", producer.Close)
		publisher = queue.NewPublisher(producer, circuit_breaker.New(cfg.CircuitBreaker), log)
	}

	svc := service.NewService(repo, issuer, publisher, cfg, log)

	var consumer sarama.ConsumerGroup
	if cfg.Kafka.Enabled {
		consumer, err = kafka.NewConsumer(cfg.Kafka, kafka.CompensationConsumerGroup)
		if err != nil {
			log.Fatal("kafka.NewConsumer", zap.Error(err))
		}
		go kafka.Consume(ctx, consumer, handler.NewConsumer(svc.Compensate, log), log, kafka.CompensationTopic)
	}

	h := handler.New(svc, svc, evaluator, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("kafka", cfg.Kafka.Enabled))
	go func() {
		if err := srv.Run(); err != nil {
			log.Error("server run", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, closeCancel := context.WithTimeout(context.Background(), time.Second*5)
	defer closeCancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	cancel()
	if consumer != nil {
		closeWithLog(log, "consumer", consumer.Close)
	}
	log.Info("Graceful shutdown finished")
}

func closeWithLog(log *zap.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Error("close "+name, zap.Error(err))
	}
}
