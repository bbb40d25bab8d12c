package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
	// onlyTopics — исходные топики, письма из которых переотправляются; пусто — все.
	onlyTopics []string
	orderID    string
}

// connection — клиенты Kafka, нужные для одного прогона.
type connection struct {
	offsets offsetReader
	opener  partitionOpener
	sender  messageSender
	close   func()
}

var connect = func(cfg config) (connection, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return connection{}, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return connection{}, fmt.Errorf("create kafka consumer: %w", err)
	}

	conn := connection{
		offsets: client,
		opener:  saramaOpener{consumer: consumer},
		close: func() {
			_ = consumer.Close()
			_ = client.Close()
		},
	}
	if !cfg.execute {
		return conn, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		conn.close()
		return connection{}, fmt.Errorf("create kafka producer: %w", err)
	}
	conn.sender = producer
	closeReaders := conn.close
	conn.close = func() {
		_ = producer.Close()
		closeReaders()
	}
	return conn, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := parseConfig(os.Args[1:], os.LookupEnv)
	if err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("dlq replay failed")
	}
}

func parseConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		cfg        config
		brokersRaw string
		topicsRaw  string
	)

	fs := flag.NewFlagSet("dlq-reprocess", flag.ContinueOnError)
	fs.StringVar(&brokersRaw, "brokers", "", "comma-separated Kafka brokers (fallback: KAFKA_BROKERS)")
	fs.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "dead letter topic to scan")
	fs.StringVar(&cfg.targetTopic, "target-topic", "", "send every letter here instead of its original topic")
	fs.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of letters to scan")
	fs.BoolVar(&cfg.execute, "execute", false, "republish letters; without it the run is a dry-run")
	fs.BoolVar(&cfg.fromNewest, "from-newest", false, "scan the newest letters of each partition")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this much silence")
	fs.StringVar(&topicsRaw, "only-topics", "", "comma-separated original topics to replay, empty means all")
	fs.StringVar(&cfg.orderID, "order-id", "", "replay only letters of this order")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw, _ = lookup("KAFKA_BROKERS")
	}
	cfg.brokers = splitList(brokersRaw)
	cfg.onlyTopics = splitList(topicsRaw)
	cfg.sourceTopic = strings.TrimSpace(cfg.sourceTopic)
	cfg.targetTopic = strings.TrimSpace(cfg.targetTopic)
	cfg.orderID = strings.TrimSpace(cfg.orderID)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, errors.New("kafka brokers are required (-brokers or KAFKA_BROKERS)")
	case cfg.sourceTopic == "":
		return config{}, errors.New("source-topic is required")
	case cfg.sourceTopic == cfg.targetTopic:
		return config{}, errors.New("target-topic must differ from source-topic")
	case cfg.limit <= 0:
		return config{}, errors.New("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, errors.New("idle-timeout must be > 0")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

func run(ctx context.Context, cfg config) error {
	conn, err := connect(cfg)
	if err != nil {
		return err
	}
	defer conn.close()

	r := newReplayer(cfg, conn)
	stats, err := r.run(ctx)
	if err != nil {
		return err
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":     mode,
		"scanned":  stats.scanned,
		"replayed": stats.replayed,
		"filtered": stats.filtered,
		"skipped":  stats.skipped,
	}).Info("dlq replay finished")
	return nil
}
