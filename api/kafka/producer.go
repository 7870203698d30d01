package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
)

type Producer interface {
	SendTaskEvent(ctx context.Context, topic string, event *TaskEvent) error
	Close() error
}

// TaskEvent is published once per task when it reaches a terminal status.
type TaskEvent struct {
	TaskID      string    `json:"task_id"`
	TraceID     string    `json:"trace_id,omitempty"`
	Status      string    `json:"status"`
	FileName    string    `json:"file_name"`
	PageCount   *int      `json:"page_count,omitempty"`
	VideoURL    string    `json:"video_url,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	ErrorStep   string    `json:"error_step,omitempty"`
	Error       string    `json:"error,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

type producer struct {
	producer sarama.SyncProducer
}

func NewProducer(brokers []string) (Producer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewProducerFromSync(p), nil
}

func NewProducerFromSync(p sarama.SyncProducer) Producer {
	return &producer{producer: p}
}

func (p *producer) SendTaskEvent(ctx context.Context, topic string, event *TaskEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.TaskID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = p.producer.SendMessage(msg)
	return err
}

func (p *producer) Close() error {
	return p.producer.Close()
}
