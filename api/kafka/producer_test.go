package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestProducer_SendTaskEvent(t *testing.T) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	mock := mocks.NewSyncProducer(t, config)

	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event TaskEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.TaskID != "task-1" || event.Status != "success" {
			t.Errorf("Unexpected event: %+v", event)
		}
		return nil
	})

	p := NewProducerFromSync(mock)
	defer p.Close()

	err := p.SendTaskEvent(context.Background(), "slide_video_events", &TaskEvent{
		TaskID:     "task-1",
		Status:     "success",
		FileName:   "deck.pdf",
		VideoURL:   "https://cdn.example.com/v.mp4",
		FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to send event: %v", err)
	}
}
