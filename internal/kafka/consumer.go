package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/greenbasket/checkout-service/internal/application"
	"github.com/greenbasket/checkout-service/internal/domain"
	"github.com/greenbasket/checkout-service/internal/logger"
)

type ConsumerConfig struct {
	Brokers string
	Topic   string
	GroupID string
}

// PaymentEvent is what the mock payment gateway publishes once a payment
// attempt settles.
type PaymentEvent struct {
	OrderNumber   string `json:"order_number"`
	PaymentStatus string `json:"payment_status"`
}

// StartPaymentConsumer ingests payment confirmations and applies them to
// orders. Invalid messages are committed and skipped; transient apply
// failures are retried with a short backoff.
func StartPaymentConsumer(ctx context.Context, svc *application.CheckoutService, cfg ConsumerConfig) (*kafka.Reader, error) {
	brokers := strings.Split(cfg.Brokers, ",")

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  0,
		StartOffset:     kafka.FirstOffset,
		ReadLagInterval: -1,
	})

	logger.Info("payment consumer starting", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)

	go func() {
		defer r.Close()

		backoff := time.Millisecond * 300
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("payment fetch error", "err", err)
				time.Sleep(backoff)
				continue
			}

			var evt PaymentEvent
			if err = json.Unmarshal(m.Value, &evt); err != nil {
				logger.Warn("payment event invalid json, skip and commit", "err", err)
				_ = r.CommitMessages(ctx, m)
				continue
			}

			status, err := domain.ParsePaymentStatus(evt.PaymentStatus)
			if err != nil {
				logger.Warn("payment event invalid status, skip and commit", "status", evt.PaymentStatus)
				_ = r.CommitMessages(ctx, m)
				continue
			}

			if err = svc.ApplyPaymentUpdate(ctx, evt.OrderNumber, status); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					logger.Warn("payment event for unknown order, skip and commit", "order_number", evt.OrderNumber)
					_ = r.CommitMessages(ctx, m)
					continue
				}
				logger.Warn("payment apply failed, will retry", "order_number", evt.OrderNumber, "err", err)
				time.Sleep(backoff)
				continue
			}

			if err := r.CommitMessages(ctx, m); err != nil {
				logger.Warn("payment commit failed", "err", err)
			}
		}
	}()
	return r, nil
}
