package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
)

const (
	LoanTopic          = "loan-events"
	StatsConsumerGroup = "stats"
)

type Config struct {
	Addrs []string `yaml:"addrs" envconfig:"KAFKA_ADDRS" default:"localhost:9092"`
}

type EventType string

const (
	EventLoanCreated EventType = "loan.created"
	EventLoanUpdated EventType = "loan.updated"
	EventLoanDeleted EventType = "loan.deleted"
)

// EventLoan is the message published on LoanTopic after every
// successful loan mutation.
type EventLoan struct {
	EventID    string    `json:"eventId"`
	EventType  EventType `json:"eventType"`
	LoanID     int64     `json:"loanId"`
	BookID     int64     `json:"bookId"`
	LenderID   int64     `json:"lenderId"`
	BorrowerID int64     `json:"borrowerId"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume loops the consumer group session until ctx is cancelled.
// sarama re-creates the session on every rebalance.
func Consume(ctx context.Context, consumer sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, topic string) error {
	for {
		if err := consumer.Consume(ctx, []string{topic}, handler); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
