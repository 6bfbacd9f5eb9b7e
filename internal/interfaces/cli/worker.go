package cli

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/turtacn/pkasolver/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/pkasolver/internal/interfaces/http"
	"github.com/turtacn/pkasolver/internal/interfaces/http/handlers"
	"github.com/turtacn/pkasolver/internal/interfaces/http/middleware"
	"github.com/turtacn/pkasolver/internal/interfaces/worker"
	"github.com/turtacn/pkasolver/pkg/errors"
)

type workerOptions struct {
	createTopics bool
	replication  int
	probeAddr    string
}

func newWorkerCmd() *cobra.Command {
	opts := &workerOptions{}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Consume profile requests from Kafka",
		Long: "Reads profile requests from the request topic, publishes results to the result\n" +
			"topic and parks messages that keep failing on the dead letter topic.",
		Annotations: map[string]string{annotationLogStdout: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&opts.createTopics, "create-topics", false, "create missing topics before consuming")
	f.IntVar(&opts.replication, "replication", 1, "replication factor for created topics")
	f.StringVar(&opts.probeAddr, "probe-addr", ":9091", "address for health probes and metrics; empty disables")
	return cmd
}

func runWorker(cmd *cobra.Command, opts *workerOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	log := cliCtx.Logger
	kc := cfg.Kafka
	if !kc.Enabled {
		return errors.NewValidationError(errors.ErrCodeBadRequest, "kafka.enabled is false")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, log, withBackends())
	if err != nil {
		return err
	}
	defer comps.Close()

	svc, err := comps.scoringService(ctx)
	if err != nil {
		return err
	}

	if opts.createTopics {
		if err := ensureTopics(ctx, kc.Brokers, kafka.DefaultTopics(kc.RequestTopic, kc.ResultTopic, kc.DLQTopic, opts.replication), log); err != nil {
			return err
		}
	}

	var producerOpts []kafka.ProducerOption
	var consumerOpts []kafka.ConsumerOption
	if comps.metrics != nil {
		producerOpts = append(producerOpts, kafka.WithProducerMetrics(comps.metrics))
		consumerOpts = append(consumerOpts, kafka.WithConsumerMetrics(comps.metrics))
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: kc.Brokers, Acks: "all"}, log.Named("producer"), producerOpts...)
	if err != nil {
		return err
	}
	defer producer.Close()

	// Results and dead letters share one producer; each message names its topic.
	consumerOpts = append(consumerOpts, kafka.WithDeadLetter(producer))
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        kc.Brokers,
		GroupID:        kc.GroupID,
		Topic:          kc.RequestTopic,
		CommitInterval: kc.CommitInterval,
		Concurrency:    kc.Concurrency,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      kc.MaxRetries,
			RetryBackoff:    kc.RetryBackoff,
			DeadLetterTopic: kc.DLQTopic,
		},
	}, log.Named("consumer"), consumerOpts...)
	if err != nil {
		return err
	}

	h := worker.NewHandler(svc, producer,
		worker.WithResultTopic(kc.ResultTopic),
		worker.WithTimeout(cfg.Sequencer.Timeout),
		worker.WithLogger(log))
	consumer.Handle(h.Handle)

	var probe *httpapi.Server
	if opts.probeAddr != "" {
		probe = httpapi.NewServer(httpapi.ServerConfig{Addr: opts.probeAddr}, probeRouter(comps), log.Named("probe"))
		go func() {
			if err := probe.Start(); err != nil {
				log.Error("probe server stopped", logging.Err(err))
			}
		}()
	}

	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Close()
		return err
	}
	log.Info("pkasolver worker started",
		logging.String("request_topic", kc.RequestTopic),
		logging.String("result_topic", kc.ResultTopic),
		logging.String("model_version", svc.ModelInfo().Version))

	<-ctx.Done()
	log.Info("shutdown signal received")
	consumer.Wait()
	consumed, failed := consumer.Stats()
	log.Info("worker stopped", logging.Int64("consumed", consumed), logging.Int64("failed", failed))

	if probe != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = probe.Stop(shutdownCtx)
	}
	return consumer.Close()
}

// probeRouter serves liveness, readiness and metrics for the worker.
func probeRouter(comps *components) *gin.Engine {
	gin.SetMode(ginMode(comps.cfg.Server.Mode))
	logCfg := middleware.DefaultLoggingConfig()
	rc := httpapi.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(Version, comps.checks...),
		Logging:       logCfg,
		Logger:        comps.logger,
	}
	if comps.collector != nil {
		rc.MetricsHandler = comps.collector.Handler()
		rc.MetricsPath = comps.cfg.Metrics.Path
	}
	return httpapi.NewRouter(rc)
}

func ensureTopics(ctx context.Context, brokers []string, topics []kafka.TopicConfig, log logging.Logger) error {
	tm, err := kafka.NewTopicManager(brokers, log.Named("topics"))
	if err != nil {
		return err
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, topics)
}

//Personal.AI order the ending
