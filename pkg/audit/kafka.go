package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// KafkaPublisher publishes RequestAuditEvents through sarama's async
// producer. Publish enqueues onto the producer's input channel and returns
// immediately; a background goroutine drains delivery errors into a
// counter and a log line, never back into the request path.
type KafkaPublisher struct {
	producer sarama.AsyncProducer
	router   *topicRouter
	log      *logrus.Entry

	mu        sync.Mutex
	closed    bool
	errCount  int
	wg        sync.WaitGroup
}

var _ Publisher = (*KafkaPublisher)(nil)

// KafkaConfig configures the underlying sarama producer.
type KafkaConfig struct {
	Brokers      []string
	Topics       Topics
	RequiredAcks string // "none", "leader", "all"
	Compression  string // "none", "gzip", "snappy", "lz4"
}

// NewKafkaPublisher connects to the configured brokers and starts the
// success/error drain goroutines.
func NewKafkaPublisher(cfg KafkaConfig, log *logrus.Entry) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("audit: at least one Kafka broker is required")
	}

	producer, err := sarama.NewAsyncProducer(cfg.Brokers, buildSaramaConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("audit: creating Kafka producer: %w", err)
	}
	return newKafkaPublisherWithProducer(producer, cfg.Topics, log), nil
}

func newKafkaPublisherWithProducer(producer sarama.AsyncProducer, topics Topics, log *logrus.Entry) *KafkaPublisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &KafkaPublisher{
		producer: producer,
		router:   newTopicRouter(topics),
		log:      log,
	}
	p.wg.Add(2)
	go p.drainSuccesses()
	go p.drainErrors()
	return p
}

// Publish enqueues event onto the producer's input channel for each topic
// it routes to. It never blocks on broker I/O: if the input channel would
// block, enqueueing respects ctx cancellation instead of hanging.
func (p *KafkaPublisher) Publish(ctx context.Context, event RequestAuditEvent) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.WithError(err).Warn("audit: failed to encode event")
		return
	}

	for _, topic := range p.router.route(event) {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.StringEncoder(event.RequestID),
			Value: sarama.ByteEncoder(payload),
		}
		select {
		case p.producer.Input() <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes and shuts down the producer, waiting for the drain
// goroutines to finish.
func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}

func (p *KafkaPublisher) drainSuccesses() {
	defer p.wg.Done()
	for range p.producer.Successes() {
	}
}

func (p *KafkaPublisher) drainErrors() {
	defer p.wg.Done()
	for err := range p.producer.Errors() {
		if err == nil {
			continue
		}
		p.mu.Lock()
		p.errCount++
		p.mu.Unlock()
		p.log.WithError(err.Err).WithField("topic", err.Msg.Topic).Warn("audit: publish failed")
	}
}

// ErrorCount returns the number of delivery failures observed so far.
func (p *KafkaPublisher) ErrorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.errCount
}

func buildSaramaConfig(cfg KafkaConfig) *sarama.Config {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	switch cfg.Compression {
	case "gzip":
		sc.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		sc.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		sc.Producer.Compression = sarama.CompressionLZ4
	default:
		sc.Producer.Compression = sarama.CompressionNone
	}

	switch cfg.RequiredAcks {
	case "none":
		sc.Producer.RequiredAcks = sarama.NoResponse
	case "leader":
		sc.Producer.RequiredAcks = sarama.WaitForLocal
	default:
		sc.Producer.RequiredAcks = sarama.WaitForAll
	}

	return sc
}
