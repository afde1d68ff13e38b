package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"itemsvc/pkg/events"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const handlerTimeout = 30 * time.Second

// EventHandler is a function that processes events
type EventHandler func(ctx context.Context, event *events.Event) error

type Consumer struct {
	conn        *amqp.Connection
	channel     *amqp.Channel
	queueName   string
	serviceName string
	workers     int
}

type ConsumerConfig struct {
	Exchange       string   // e.g., "items.item"
	QueueName      string   // e.g., "worker.item.created.v1"
	RoutingKeys    []string // e.g., ["item.created.v1"]
	ServiceName    string   // consumer tag
	PrefetchCount  int      // 0 means 10
	WorkerPoolSize int      // 0 means 1
}

// Topology is the set of broker objects a consumer declares. Failed messages
// are dead-lettered to DeadLetterExchange and collected in DeadLetterQueue.
type Topology struct {
	Exchange           string
	Queue              string
	DeadLetterExchange string
	DeadLetterQueue    string
	RoutingKeys        []string
}

func (c ConsumerConfig) Topology() Topology {
	return Topology{
		Exchange:           c.Exchange,
		Queue:              c.QueueName,
		DeadLetterExchange: c.Exchange + ".dlx",
		DeadLetterQueue:    c.QueueName + ".dlq",
		RoutingKeys:        c.RoutingKeys,
	}
}

func NewConsumer(ctx context.Context, url string, config ConsumerConfig) (*Consumer, error) {
	conn, err := dial(ctx, url)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	prefetchCount := config.PrefetchCount
	if prefetchCount == 0 {
		prefetchCount = 10
	}
	if err := channel.Qos(prefetchCount, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := declareTopology(channel, config.Topology()); err != nil {
		channel.Close()
		conn.Close()
		return nil, err
	}

	workers := config.WorkerPoolSize
	if workers < 1 {
		workers = 1
	}

	zap.L().Info("RabbitMQ consumer created successfully",
		zap.String("queue", config.QueueName),
		zap.String("exchange", config.Exchange),
		zap.Strings("routingKeys", config.RoutingKeys),
		zap.Int("workers", workers),
	)

	return &Consumer{
		conn:        conn,
		channel:     channel,
		queueName:   config.QueueName,
		serviceName: config.ServiceName,
		workers:     workers,
	}, nil
}

func declareTopology(ch *amqp.Channel, t Topology) error {
	if err := declareTopicExchange(ch, t.Exchange); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	if err := declareTopicExchange(ch, t.DeadLetterExchange); err != nil {
		return fmt.Errorf("failed to declare DLX: %w", err)
	}

	if _, err := ch.QueueDeclare(
		t.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": t.DeadLetterExchange},
	); err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if _, err := ch.QueueDeclare(t.DeadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	for _, routingKey := range t.RoutingKeys {
		if err := ch.QueueBind(t.DeadLetterQueue, routingKey, t.DeadLetterExchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind DLQ: %w", err)
		}
		if err := ch.QueueBind(t.Queue, routingKey, t.Exchange, false, nil); err != nil {
			return fmt.Errorf("failed to bind queue: %w", err)
		}
	}

	return nil
}

// Consume delivers messages to handler on the worker pool until ctx is done
// or the broker closes the delivery channel. In-flight messages finish before
// it returns.
func (c *Consumer) Consume(ctx context.Context, handler EventHandler) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		c.serviceName, // consumer tag
		false,         // auto-ack (false = manual ack)
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	zap.L().Info("Started consuming messages", zap.String("queue", c.queueName))

	return dispatch(ctx, msgs, c.workers, func(msg amqp.Delivery) {
		handleMessage(ctx, c.queueName, msg, handler)
	})
}

// dispatch runs process on at most workers goroutines. Go blocks while the
// pool is full, which applies back-pressure to the delivery channel.
func dispatch(ctx context.Context, msgs <-chan amqp.Delivery, workers int, process func(amqp.Delivery)) error {
	p := pool.New().WithMaxGoroutines(workers)
	defer p.Wait()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("Consumer context cancelled, stopping...")
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				zap.L().Warn("Message channel closed")
				return errors.New("message channel closed")
			}

			p.Go(func() {
				process(msg)
			})
		}
	}
}

// handleMessage acks on success and nacks without requeue otherwise, so
// malformed or failing messages land in the dead letter queue.
func handleMessage(ctx context.Context, queueName string, msg amqp.Delivery, handler EventHandler) {
	traceID, _ := msg.Headers["x-trace-id"].(string)
	correlationID, _ := msg.Headers["x-correlation-id"].(string)
	service, _ := msg.Headers["x-service"].(string)

	zap.L().Info("Received message",
		zap.String("queue", queueName),
		zap.String("routingKey", msg.RoutingKey),
		zap.String("traceId", traceID),
		zap.String("correlationId", correlationID),
		zap.String("sourceService", service),
	)

	var event events.Event
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		zap.L().Error("Failed to unmarshal event",
			zap.Error(err),
			zap.String("traceId", traceID),
		)
		_ = msg.Nack(false, false)
		return
	}

	processCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()

	if err := handler(processCtx, &event); err != nil {
		zap.L().Error("Failed to process event",
			zap.Error(err),
			zap.String("event", event.Event),
			zap.String("traceId", traceID),
		)
		_ = msg.Nack(false, false)
		return
	}

	if err := msg.Ack(false); err != nil {
		zap.L().Error("Failed to acknowledge message",
			zap.Error(err),
			zap.String("traceId", traceID),
		)
		return
	}

	zap.L().Info("Successfully processed event",
		zap.String("event", event.Event),
		zap.String("traceId", traceID),
	)
}

func (c *Consumer) Close() error {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			zap.L().Error("Failed to close channel", zap.Error(err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			zap.L().Error("Failed to close connection", zap.Error(err))
			return err
		}
	}
	zap.L().Info("RabbitMQ consumer closed")
	return nil
}
