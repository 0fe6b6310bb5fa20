package tagging

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Queue hands photo identifiers off to the background tagging consumer.
// The enqueuing request returns as soon as the message is written; there is
// no ordering guarantee between enqueue and worker pickup.
type Queue struct {
	writer *kafka.Writer
}

func NewQueue(writer *kafka.Writer) *Queue {
	return &Queue{writer: writer}
}

func (q *Queue) Enqueue(ctx context.Context, photoID string) error {
	return q.writer.WriteMessages(ctx, kafka.Message{Value: []byte(photoID)})
}
