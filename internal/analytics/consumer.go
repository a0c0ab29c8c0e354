package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/admission-go/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumer creates a consumer that persists throttle events to store.
func NewConsumer(
	subscriber message.Subscriber,
	store Store,
	logger *zap.Logger,
) *messaging.Consumer[ThrottledEvent] {
	return messaging.NewConsumer(subscriber, TopicThrottled, store.SaveThrottled, logger)
}
