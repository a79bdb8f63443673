package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"docguard/internal/util"
)

// AmqpJobQueue runs the analysis queue on RabbitMQ. Job status is tracked
// in-process, so GetJob only answers for jobs enqueued or handled by this
// instance; deployments that need cross-replica status use the Redis queue.
type AmqpJobQueue struct {
	conn       *amqp.Connection
	pubCh      *amqp.Channel
	queueName  string
	maxRetries int
	retryDelay time.Duration

	mu   sync.RWMutex
	jobs map[string]JobStatus
}

type AmqpQueueConfig struct {
	URL        string
	Queue      string
	MaxRetries int
	RetryDelay time.Duration
}

type amqpJobMessage struct {
	JobID      string `json:"jobId"`
	DocumentID string `json:"documentId"`
	Attempts   int    `json:"attempts"`
}

func NewAmqpJobQueue(cfg AmqpQueueConfig) (*AmqpJobQueue, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	queueName := strings.TrimSpace(cfg.Queue)
	if queueName == "" {
		queueName = "docguard.analysis"
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &AmqpJobQueue{
		conn:       conn,
		pubCh:      ch,
		queueName:  queueName,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		jobs:       make(map[string]JobStatus),
	}, nil
}

func (q *AmqpJobQueue) Enqueue(ctx context.Context, documentID string) (JobStatus, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return JobStatus{}, errors.New("documentId required")
	}
	job := JobStatus{
		ID:         util.NewID(),
		DocumentID: documentID,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := q.publish(ctx, amqpJobMessage{JobID: job.ID, DocumentID: documentID}); err != nil {
		return JobStatus{}, err
	}
	q.saveJob(job)
	return job, nil
}

func (q *AmqpJobQueue) GetJob(ctx context.Context, jobID string) (JobStatus, bool, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[strings.TrimSpace(jobID)]
	return job, ok, nil
}

func (q *AmqpJobQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		go q.consumeLoop(ctx, fmt.Sprintf("%s-%d", q.queueName, i), handler)
	}
	go func() {
		<-ctx.Done()
		q.pubCh.Close()
		q.conn.Close()
	}()
}

func (q *AmqpJobQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	ch, err := q.conn.Channel()
	if err != nil {
		return
	}
	defer ch.Close()
	if err := ch.Qos(1, 0, false); err != nil {
		return
	}
	deliveries, err := ch.Consume(q.queueName, consumer, false, false, false, false, nil)
	if err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			q.handleDelivery(ctx, d, handler)
		}
	}
}

func (q *AmqpJobQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	var msg amqpJobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil || msg.JobID == "" || msg.DocumentID == "" {
		_ = d.Ack(false)
		return
	}
	job := q.markProcessing(msg)
	if err := handler(ctx, job); err == nil {
		q.markTerminal(job.ID, StatusDone, "")
		_ = d.Ack(false)
		return
	} else if job.Attempts >= q.maxRetries {
		q.markTerminal(job.ID, StatusFailed, err.Error())
		_ = d.Ack(false)
		return
	} else {
		q.markTerminal(job.ID, StatusQueued, err.Error())
		if q.retryDelay > 0 {
			select {
			case <-ctx.Done():
				_ = d.Nack(false, true)
				return
			case <-time.After(q.retryDelay):
			}
		}
		msg.Attempts = job.Attempts
		if err := q.publish(ctx, msg); err != nil {
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	}
}

func (q *AmqpJobQueue) publish(ctx context.Context, msg amqpJobMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	err = q.pubCh.PublishWithContext(ctx, "", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

func (q *AmqpJobQueue) saveJob(job JobStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = job
}

func (q *AmqpJobQueue) markProcessing(msg amqpJobMessage) JobStatus {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[msg.JobID]
	if !ok {
		job = JobStatus{ID: msg.JobID, DocumentID: msg.DocumentID, Attempts: msg.Attempts, CreatedAt: time.Now().UTC()}
	}
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	q.jobs[job.ID] = job
	return job
}

func (q *AmqpJobQueue) markTerminal(jobID, status, errMsg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job := q.jobs[jobID]
	job.ID = jobID
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	q.jobs[jobID] = job
}
