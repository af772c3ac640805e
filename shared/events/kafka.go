package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pavitra93/go-multi-tenant-admin/shared/config"
	"github.com/pavitra93/go-multi-tenant-admin/shared/metrics"
	"github.com/pavitra93/go-multi-tenant-admin/shared/utils"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to Kafka from a worker pool fed by a
// bounded queue. Publish never blocks; a full queue drops the event.
type KafkaPublisher struct {
	writer       messageWriter
	topic        string
	events       chan Event
	workerCount  int
	shutdownChan chan struct{}
	wg           sync.WaitGroup
	breaker      *utils.CircuitBreaker
	metrics      *metrics.Metrics
	closeOnce    sync.Once
}

// NewKafkaPublisher creates a publisher for the configured brokers and starts its workers
func NewKafkaPublisher(cfg config.KafkaConfig, m *metrics.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return newKafkaPublisher(writer, cfg.Topic, cfg.WorkerCount, cfg.QueueSize, m)
}

func newKafkaPublisher(w messageWriter, topic string, workers, queueSize int, m *metrics.Metrics) *KafkaPublisher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	kp := &KafkaPublisher{
		writer:       w,
		topic:        topic,
		events:       make(chan Event, queueSize),
		workerCount:  workers,
		shutdownChan: make(chan struct{}),
		breaker:      utils.NewCircuitBreaker("kafka", 5, 30*time.Second),
		metrics:      m,
	}

	for i := 0; i < kp.workerCount; i++ {
		kp.wg.Add(1)
		go kp.worker(i)
	}
	logrus.WithFields(logrus.Fields{"workers": kp.workerCount, "topic": topic}).Info("Kafka publisher started")
	return kp
}

func (kp *KafkaPublisher) worker(id int) {
	defer kp.wg.Done()

	for {
		select {
		case event := <-kp.events:
			kp.send(id, event)
		case <-kp.shutdownChan:
			// flush whatever is still queued
			for {
				select {
				case event := <-kp.events:
					kp.send(id, event)
				default:
					return
				}
			}
		}
	}
}

func (kp *KafkaPublisher) send(worker int, event Event) {
	if err := kp.sendSync(event); err != nil {
		logrus.WithFields(logrus.Fields{
			"worker":     worker,
			"event_type": event.Type,
			"tenant_id":  event.TenantID,
		}).WithError(err).Error("Failed to publish event")
	}
}

// Publish queues an event (non-blocking)
func (kp *KafkaPublisher) Publish(_ context.Context, event Event) {
	select {
	case kp.events <- event:
	default:
		kp.metrics.EventDropped()
		logrus.WithFields(logrus.Fields{
			"event_type": event.Type,
			"tenant_id":  event.TenantID,
		}).Warn("Event queue full, event dropped")
	}
}

func (kp *KafkaPublisher) sendSync(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: kp.topic,
		Key:   []byte(event.TenantID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "tenant_id", Value: []byte(event.TenantID)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return kp.breaker.Execute(ctx, func(ctx context.Context) error {
		if err := kp.writer.WriteMessages(ctx, msg); err != nil {
			return fmt.Errorf("failed to write event to Kafka: %w", err)
		}
		return nil
	})
}

// Close drains queued events, stops the workers and closes the writer
func (kp *KafkaPublisher) Close() error {
	var err error
	kp.closeOnce.Do(func() {
		close(kp.shutdownChan)
		kp.wg.Wait()
		if cerr := kp.writer.Close(); cerr != nil {
			err = fmt.Errorf("failed to close Kafka writer: %w", cerr)
		}
		logrus.Info("Kafka publisher stopped")
	})
	return err
}
