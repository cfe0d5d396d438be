package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/comptoirs/internal/health"
	"github.com/vladislavdragonenkov/comptoirs/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/comptoirs/internal/service/orders"
	"github.com/vladislavdragonenkov/comptoirs/internal/service/outbox"
	"github.com/vladislavdragonenkov/comptoirs/internal/transport/httpapi"
	"github.com/vladislavdragonenkov/comptoirs/internal/version"
)

// Поддерживаемые backend'ы хранилища.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config описывает минимальные настройки запуска приложения.
type Config struct {
	HTTPAddr     string
	MetricsAddr  string
	Storage      string
	PostgresDSN  string
	KafkaBrokers string
}

// DefaultConfig возвращает базовые адреса и in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		MetricsAddr: ":9090",
		Storage:     StorageMemory,
	}
}

func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	// Kafka опционален: без brokers события остаются в outbox.
	kafkaProducer := connectKafka(cfg.KafkaBrokers, logger)

	var (
		lifecycleSvc *orders.OrderLifecycleService
		lineSvc      *orders.OrderLineService
	)
	if kafkaProducer != nil {
		lifecycleSvc = orders.NewOrderLifecycleServiceWithKafka(
			deps.Customers, deps.Orders, deps.Products, deps.Outbox, deps.Timeline, kafkaProducer, logger)
		lineSvc = orders.NewOrderLineServiceWithKafka(
			deps.Orders, deps.Products, deps.Outbox, deps.Timeline, kafkaProducer, logger)
	} else {
		lifecycleSvc = orders.NewOrderLifecycleService(
			deps.Customers, deps.Orders, deps.Products, deps.Outbox, deps.Timeline, logger)
		lineSvc = orders.NewOrderLineService(
			deps.Orders, deps.Products, deps.Outbox, deps.Timeline, logger)
	}

	// Relay публикует накопленные в outbox события в Kafka.
	if kafkaProducer != nil {
		relay := outbox.NewRelay(
			deps.Outbox,
			kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicOrderEvents),
			outbox.WithLogger(logger.WithField("component", "outbox-relay")),
			outbox.WithDeadLetter(kafka.NewOutboxPublisher(kafkaProducer, kafka.TopicDeadLetterQueue)),
		)
		go relay.Run(ctx)
	}

	healthRegistry := healthcheck.NewRegistry(version.Current().Release)
	if deps.Store != nil {
		store := deps.Store
		healthRegistry.Register("postgres", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(pingCtx)
		})
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthRegistry)

	handler := httpapi.NewHandler(lifecycleSvc, lineSvc, logger.WithField("layer", "http"))
	apiSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: httpapi.NewRouter(handler)}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", cfg.HTTPAddr)
		errCh <- apiSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownHTTP(apiSrv, logger)
		shutdownHTTP(metricsSrv, logger)
		disconnectKafka(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		disconnectKafka(kafkaProducer, logger)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// connectKafka поднимает producer, если заданы brokers. Ошибка подключения
// не фатальна: события копятся в outbox до следующего запуска с Kafka.
func connectKafka(brokers string, logger *log.Entry) *kafka.Producer {
	list := splitBrokers(brokers)
	if len(list) == 0 {
		return nil
	}

	producer, err := kafka.NewProducer(list)
	if err != nil {
		logger.WithError(err).Warn("kafka недоступна, продолжаем без публикации событий")
		return nil
	}

	logger.WithField("brokers", list).Info("kafka producer подключён")
	return producer
}

func splitBrokers(brokers string) []string {
	var list []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			list = append(list, b)
		}
	}
	return list
}

func disconnectKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("ошибка при закрытии kafka producer")
		return
	}
	logger.Info("kafka producer закрыт")
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, registry *healthcheck.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", registry)
	mux.HandleFunc("/readyz", registry.ReadinessHandler)
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
