package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	"github.com/greenbasket/checkout-service/internal/domain"
)

// SellerNotification is the message a seller receives when a new order
// contains one of their products.
type SellerNotification struct {
	SellerID    string    `json:"seller_id"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Text        string    `json:"text"`
	SentAt      time.Time `json:"sent_at"`
}

// Notifier publishes seller notifications. Delivery is best-effort with a
// few retries; the checkout never waits on it.
type Notifier struct {
	w *kafka.Writer
}

func NewNotifier(brokersSTR, topic string) *Notifier {
	brokers := strings.Split(brokersSTR, ",")

	return &Notifier{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

func (n *Notifier) Close() error {
	return n.w.Close()
}

func (n *Notifier) NotifyNewOrder(ctx context.Context, sellerID string, o *domain.Order) error {
	msg := SellerNotification{
		SellerID:    sellerID,
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		Text:        "New order " + o.OrderNumber + " placed containing your product(s).",
		SentAt:      time.Now().UTC(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := n.w.WriteMessages(ctx, kafka.Message{
			Key:   []byte(sellerID),
			Value: b,
			Headers: []kafka.Header{
				{Key: "content-type", Value: []byte("application/json")},
			},
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
