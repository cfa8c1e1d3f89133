package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

func TestPublisher_PublishEvent(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewPublisherWithProducer(producer, "updates", zaptest.NewLogger(t))
	defer func() { assert.NoError(t, publisher.Close()) }()

	sessionID := uuid.New()
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var msg map[string]interface{}
		if err := json.Unmarshal(val, &msg); err != nil {
			return err
		}
		if msg["event_type"] != update.EventUpdateProgress {
			return fmt.Errorf("unexpected event type %v", msg["event_type"])
		}
		if msg["aggregate_id"] != sessionID.String() {
			return fmt.Errorf("unexpected aggregate id %v", msg["aggregate_id"])
		}
		data := msg["data"].(map[string]interface{})
		if data["percent"] != float64(50) {
			return fmt.Errorf("unexpected percent %v", data["percent"])
		}
		return nil
	})

	err := publisher.PublishEvent(context.Background(), update.NewUpdateProgress(sessionID, 5, 10))
	require.NoError(t, err)
}

func TestPublisher_PublishEventError(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	publisher := NewPublisherWithProducer(producer, "updates", zaptest.NewLogger(t))
	defer publisher.Close()

	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.PublishEvent(context.Background(), update.NewUpdateCancelled(uuid.New()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, sarama.ErrOutOfBrokers))
}
