package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/brybell/backend/internal/service"
)

const (
	paymentQueueName = "payments"
	dlxExchange      = "payments.dlx"
	dlqQueueName     = "payments.dlq"
	idempotencyTTL   = 24 * time.Hour
)

// PaymentMessage is the async ingress for payment confirmations, typically
// published by a payment provider webhook.
type PaymentMessage struct {
	OrderID       int64  `json:"order_id"`
	PaymentStatus string `json:"payment_status"`
}

type PaymentWorker struct {
	channel     *amqp.Channel
	orderSvc    *service.OrderService
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewPaymentWorker(
	ch *amqp.Channel,
	orderSvc *service.OrderService,
	redisClient *redis.Client,
	log *slog.Logger,
) *PaymentWorker {
	return &PaymentWorker{
		channel:     ch,
		orderSvc:    orderSvc,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupPayments declares the payments queue and its DLX/DLQ.
func SetupPayments(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, paymentQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(paymentQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": paymentQueueName,
	}); err != nil {
		return fmt.Errorf("declare payment queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *PaymentWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(paymentQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("payment worker started")
	return nil
}

func (w *PaymentWorker) Stop() { close(w.done) }

func (w *PaymentWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var payment PaymentMessage
	if err := json.Unmarshal(msg.Body, &payment); err != nil {
		w.log.Error("unmarshal payment message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", payment.OrderID, "payment_status", payment.PaymentStatus)

	// Idempotency check via Redis: the same confirmation may be delivered
	// more than once.
	idempotencyKey := "payment_applied:" + strconv.FormatInt(payment.OrderID, 10) + ":" + payment.PaymentStatus
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("payment already applied, skipping")
		_ = msg.Ack(false)
		return
	}

	if _, err := w.orderSvc.UpdatePaymentStatus(ctx, payment.OrderID, payment.PaymentStatus); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) || errors.Is(err, service.ErrInvalidPayment) {
			log.Error("unprocessable payment message", "error", err)
			_ = msg.Nack(false, false) // to DLQ
			return
		}
		log.Error("apply payment status", "error", err)
		_ = msg.Nack(false, true)
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("payment status applied")
}
