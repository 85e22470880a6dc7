package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/engagement-agent/internal/pkg/logger"
	"github.com/ignite/engagement-agent/internal/service/analytics"
)

// Consumer drains tracking events from SQS into the outcome store.
type Consumer struct {
	client     SQSAPI
	queueURL   string
	recorder   Recorder
	waitTime   int32
	retryDelay time.Duration

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

func NewConsumer(client SQSAPI, queueURL string, recorder Recorder) *Consumer {
	return &Consumer{
		client:     client,
		queueURL:   queueURL,
		recorder:   recorder,
		waitTime:   20,
		retryDelay: 5 * time.Second,
		done:       make(chan struct{}),
	}
}

func (c *Consumer) Start(ctx context.Context) {
	logger.Info("tracking consumer started", "queue", c.queueURL)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.poll(ctx)
	}()
}

// Stop ends polling and waits for the current batch.
func (c *Consumer) Stop() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}

func (c *Consumer) poll(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		if _, err := c.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("sqs receive failed", "error", err.Error())
			select {
			case <-time.After(c.retryDelay):
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// PollOnce receives one batch and applies it, returning how many messages
// were removed from the queue.
func (c *Consumer) PollOnce(ctx context.Context) (int, error) {
	out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     c.waitTime,
	})
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, msg := range out.Messages {
		var evt Event
		if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &evt); err != nil {
			logger.Warn("sqs bad message", "error", err.Error())
			c.deleteMessage(ctx, msg.ReceiptHandle)
			deleted++
			continue
		}

		if err := c.processEvent(ctx, evt); err != nil {
			// left on the queue for redelivery
			logger.Error("tracking event failed", "message_id", evt.MessageID, "event", evt.EventType, "error", err.Error())
			continue
		}
		c.deleteMessage(ctx, msg.ReceiptHandle)
		deleted++
	}
	return deleted, nil
}

func (c *Consumer) processEvent(ctx context.Context, evt Event) error {
	switch evt.EventType {
	case EventOpen, EventClick:
	default:
		logger.Warn("unknown tracking event", "event", evt.EventType)
		return nil
	}

	err := c.recorder.TrackAt(ctx, evt.MessageID, evt.EventType.Action(), evt.Timestamp)
	if errors.Is(err, analytics.ErrMessageNotFound) {
		logger.Warn("tracking event for unknown message", "message_id", evt.MessageID)
		return nil
	}
	return err
}

func (c *Consumer) deleteMessage(ctx context.Context, handle *string) {
	if _, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: handle,
	}); err != nil {
		logger.Warn("sqs delete failed", "error", err.Error())
	}
}
