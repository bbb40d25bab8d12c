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

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
	"github.com/vladislavdragonenkov/foodorder/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodorder/internal/service/approval"
	"github.com/vladislavdragonenkov/foodorder/internal/service/payment"
)

const (
	defaultGroupID    = "saga-simulator"
	defaultMaxRetries = 3
)

type config struct {
	brokers           []string
	groupID           string
	maxRetries        int
	creditLimit       domain.Money
	maxItems          int
	declineCustomers  []domain.CustomerID
	closedRestaurants []domain.RestaurantID
}

// participantConsumer — подмножество kafka.Consumer, которое нужно симулятору.
type participantConsumer interface {
	Start(ctx context.Context) error
	Stop() error
}

var newParticipantConsumer = func(cfg config, handler kafka.MessageHandler, producer *kafka.Producer) (participantConsumer, error) {
	return kafka.NewConsumerWithDLQ(cfg.brokers, cfg.groupID, kafka.RequestTopics, handler, producer, cfg.maxRetries)
}

var newResponseProducer = func(brokers []string) (*kafka.Producer, error) {
	return kafka.NewProducer(brokers)
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
		log.WithError(err).Fatal("saga simulator failed")
	}
	log.Info("saga simulator stopped")
}

func parseConfig(args []string, lookup func(string) (string, bool)) (config, error) {
	var (
		cfg               config
		brokersRaw        string
		creditLimitRaw    string
		declineRaw        string
		closedRestaurants string
	)

	defaultBrokers := "localhost:9092"
	if v, ok := lookup("KAFKA_BROKERS"); ok && strings.TrimSpace(v) != "" {
		defaultBrokers = v
	}

	fs := flag.NewFlagSet("saga-simulator", flag.ContinueOnError)
	fs.StringVar(&brokersRaw, "brokers", defaultBrokers, "comma-separated Kafka brokers")
	fs.StringVar(&cfg.groupID, "group-id", defaultGroupID, "consumer group for request topics")
	fs.IntVar(&cfg.maxRetries, "max-retries", defaultMaxRetries, "handler retries before a request goes to DLQ")
	fs.StringVar(&creditLimitRaw, "credit-limit", "0", "decline payments above this amount, 0 disables the limit")
	fs.IntVar(&cfg.maxItems, "max-items", 0, "reject orders with more items, 0 disables the limit")
	fs.StringVar(&declineRaw, "decline-customers", "", "comma-separated customer ids whose payments fail")
	fs.StringVar(&closedRestaurants, "closed-restaurants", "", "comma-separated restaurant ids that reject orders")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	cfg.brokers = splitList(brokersRaw)
	if len(cfg.brokers) == 0 {
		return config{}, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.groupID) == "" {
		return config{}, errors.New("group-id is required")
	}
	if cfg.maxRetries < 0 {
		return config{}, errors.New("max-retries must be >= 0")
	}
	if cfg.maxItems < 0 {
		return config{}, errors.New("max-items must be >= 0")
	}

	limit, err := domain.ParseMoney(strings.TrimSpace(creditLimitRaw))
	if err != nil {
		return config{}, fmt.Errorf("credit-limit: %w", err)
	}
	cfg.creditLimit = limit

	for _, raw := range splitList(declineRaw) {
		id, err := domain.ParseCustomerID(raw)
		if err != nil {
			return config{}, fmt.Errorf("decline-customers: %w", err)
		}
		cfg.declineCustomers = append(cfg.declineCustomers, id)
	}
	for _, raw := range splitList(closedRestaurants) {
		id, err := domain.ParseRestaurantID(raw)
		if err != nil {
			return config{}, fmt.Errorf("closed-restaurants: %w", err)
		}
		cfg.closedRestaurants = append(cfg.closedRestaurants, id)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	return lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

// buildSimulators настраивает участников саги по конфигурации.
func buildSimulators(cfg config) (*payment.Simulator, *approval.Simulator) {
	pay := payment.NewSimulator()
	pay.CreditLimit = cfg.creditLimit
	for _, id := range cfg.declineCustomers {
		pay.FailCustomers[id] = true
	}

	restaurant := approval.NewSimulator()
	restaurant.MaxItems = cfg.maxItems
	for _, id := range cfg.closedRestaurants {
		restaurant.ClosedRestaurants[id] = true
	}
	return pay, restaurant
}

// run читает запросы саги и отвечает за сервисы оплаты и ресторанов, пока не отменён ctx.
func run(ctx context.Context, cfg config) error {
	producer, err := newResponseProducer(cfg.brokers)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.WithError(err).Warn("close kafka producer")
		}
	}()

	pay, restaurant := buildSimulators(cfg)
	consumer, err := newParticipantConsumer(cfg, kafka.NewParticipantRouter(pay, restaurant, producer), producer)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}

	log.WithFields(log.Fields{
		"brokers":  strings.Join(cfg.brokers, ","),
		"group_id": cfg.groupID,
		"topics":   strings.Join(kafka.RequestTopics, ","),
	}).Info("saga simulator started")

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	charges, refunds := pay.Calls()
	approved, rejected := restaurant.Calls()
	log.WithFields(log.Fields{
		"charges":  charges,
		"refunds":  refunds,
		"approved": approved,
		"rejected": rejected,
	}).Info("saga simulator summary")

	if err := consumer.Stop(); err != nil {
		return err
	}
	return ctx.Err()
}
