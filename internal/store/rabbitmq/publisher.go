package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/suPer8Hu/content-pipeline/internal/jobs"
)

// DeclareQueues declares the event queue and its dead-letter queue. The
// publisher and the worker both call it so their declarations match.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	dlqQ := queue + ".dlq"

	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	)
	return err
}

// Publisher sends terminal job events to a durable queue.
type Publisher struct {
	mu    sync.Mutex // amqp channels are not safe for concurrent publish
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func encodeEvent(ev jobs.Event) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.JobID,
		Type:         "job." + string(ev.Status),
		Body:         body,
		Timestamp:    time.Now(),
	}, nil
}

// DecodeEvent parses a delivery body produced by PublishEvent.
func DecodeEvent(body []byte) (jobs.Event, error) {
	var ev jobs.Event
	err := json.Unmarshal(body, &ev)
	return ev, err
}

func (p *Publisher) PublishEvent(ctx context.Context, ev jobs.Event) error {
	msg, err := encodeEvent(ev)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		msg,
	)
}

// JobFinished makes Publisher a jobs.Notifier.
func (p *Publisher) JobFinished(ctx context.Context, ev jobs.Event) error {
	return p.PublishEvent(ctx, ev)
}

var _ jobs.Notifier = (*Publisher)(nil)
