package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/engagement-agent/internal/pkg/logger"
)

// SQSAPI is the part of *sqs.Client the tracking service uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, opts ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, opts ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, opts ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

const publishTimeout = 5 * time.Second

// Publisher sends events to SQS without blocking the request that saw them.
type Publisher struct {
	client   SQSAPI
	queueURL string
	wg       sync.WaitGroup
}

func NewPublisher(client SQSAPI, queueURL string) *Publisher {
	return &Publisher{client: client, queueURL: queueURL}
}

func (p *Publisher) Publish(_ context.Context, evt Event) {
	body, err := json.Marshal(evt)
	if err != nil {
		logger.Error("marshal tracking event", "error", err.Error())
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		_, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(p.queueURL),
			MessageBody: aws.String(string(body)),
		})
		if err != nil {
			logger.Error("publish tracking event", "message_id", evt.MessageID, "error", err.Error())
		}
	}()
}

// Wait blocks until in-flight sends finish. Call it on shutdown.
func (p *Publisher) Wait() { p.wg.Wait() }

// DirectSink applies events synchronously, for deployments without a queue.
type DirectSink struct {
	recorder Recorder
}

func NewDirectSink(recorder Recorder) *DirectSink { return &DirectSink{recorder: recorder} }

func (d *DirectSink) Publish(ctx context.Context, evt Event) {
	if err := d.recorder.TrackAt(ctx, evt.MessageID, evt.EventType.Action(), evt.Timestamp); err != nil {
		logger.Warn("tracking event dropped", "message_id", evt.MessageID, "event", evt.EventType, "error", err.Error())
	}
}
