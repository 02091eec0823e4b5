package handler

import (
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/maramotto/librored/pkg/kafka"
	"github.com/maramotto/librored/loan/internal/model"
)

type Enqueuer interface {
	Enqueue(topic string, v any) error
}

func NewEnqueuer(producer sarama.SyncProducer) Enqueuer {
	return &enqueuerImpl{
		producer: producer,
	}
}

type enqueuerImpl struct {
	producer sarama.SyncProducer
}

func (q *enqueuerImpl) Enqueue(topic string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{Topic: topic, Value: sarama.StringEncoder(data)}
	if _, _, err = q.producer.SendMessage(msg); err != nil {
		return err
	}
	return nil
}

func newLoanEvent(eventType kafka.EventType, loan model.Loan) kafka.EventLoan {
	return kafka.EventLoan{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		LoanID:     loan.ID,
		BookID:     loan.BookID,
		LenderID:   loan.LenderID,
		BorrowerID: loan.BorrowerID,
		Status:     string(loan.Status),
		Timestamp:  time.Now().UTC(),
	}
}
