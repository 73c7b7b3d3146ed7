package events

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/warp/backoffice/logging"
)

// ErrBufferFull is returned when the publisher cannot keep up.
var ErrBufferFull = errors.New("publish buffer full")

const writeTimeout = 5 * time.Second

// messageWriter is the part of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher queues envelopes on an inbox and writes them from one
// goroutine. Publish never blocks the request path.
type KafkaPublisher struct {
	w      messageWriter
	logger *logging.Logger

	mu      sync.RWMutex
	inbox   chan kafka.Message
	closed  bool
	started bool
	done    chan struct{}
}

// NewKafkaPublisher creates a publisher for topic. buf bounds the number of
// queued, unsent events.
func NewKafkaPublisher(brokers []string, topic string, buf int, logger *logging.Logger) *KafkaPublisher {
	return newPublisher(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}, buf, logger)
}

func newPublisher(w messageWriter, buf int, logger *logging.Logger) *KafkaPublisher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &KafkaPublisher{
		w:      w,
		logger: logger,
		inbox:  make(chan kafka.Message, buf),
		done:   make(chan struct{}),
	}
}

// Start runs the write loop until ctx is cancelled or Close is called.
// Queued messages are flushed either way.
func (p *KafkaPublisher) Start(ctx context.Context) {
	p.mu.Lock()
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				p.closeInbox()
				for m := range p.inbox {
					p.write(m)
				}
				p.closeWriter()
				return
			case m, ok := <-p.inbox:
				if !ok {
					p.closeWriter()
					return
				}
				p.write(m)
			}
		}
	}()
}

// Publish queues env. It fails fast with ErrBufferFull rather than wait.
func (p *KafkaPublisher) Publish(_ context.Context, env Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(env.CorrelationID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte(strconv.Itoa(env.EventVersion))},
		},
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events, flushes the queue and closes the writer.
func (p *KafkaPublisher) Close() error {
	p.closeInbox()

	p.mu.RLock()
	started := p.started
	p.mu.RUnlock()
	if !started {
		return p.w.Close()
	}
	<-p.done
	return nil
}

func (p *KafkaPublisher) closeInbox() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

func (p *KafkaPublisher) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		p.logger.Error("publish failed", "key", string(m.Key), logging.FieldError, err)
	}
}

func (p *KafkaPublisher) closeWriter() {
	if err := p.w.Close(); err != nil {
		p.logger.Error("close kafka writer", logging.FieldError, err)
	}
}
