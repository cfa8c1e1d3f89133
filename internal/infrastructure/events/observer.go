package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainevents "github.com/narwhalmedia/appupdater/internal/domain/events"
	"github.com/narwhalmedia/appupdater/internal/domain/update"
)

// publishTimeout bounds a single publish from an observer callback.
const publishTimeout = 5 * time.Second

// Observer publishes the events of one session to a broker. Publish
// failures are logged and never reach the session.
type Observer struct {
	publisher domainevents.EventPublisher
	sessionID uuid.UUID
	logger    *zap.Logger
}

// NewObserver creates a publishing observer for the session sessionID.
func NewObserver(publisher domainevents.EventPublisher, sessionID uuid.UUID, logger *zap.Logger) *Observer {
	return &Observer{
		publisher: publisher,
		sessionID: sessionID,
		logger:    logger.Named("event-observer"),
	}
}

// NewObserverFactory returns a factory building one Observer per session.
func NewObserverFactory(publisher domainevents.EventPublisher, logger *zap.Logger) update.ObserverFactory {
	return func(sessionID uuid.UUID) update.Observer {
		return NewObserver(publisher, sessionID, logger)
	}
}

func (o *Observer) OnDownloading(alreadyInProgress bool) {
	if alreadyInProgress {
		o.publish(update.NewUpdateRejected())
	}
}

func (o *Observer) OnStart(url string) {
	o.publish(update.NewUpdateStarted(o.sessionID, url))
}

// OnProgress publishes only ticks whose percentage changed.
func (o *Observer) OnProgress(progress, total int64, isChanged bool) {
	if !isChanged {
		return
	}
	o.publish(update.NewUpdateProgress(o.sessionID, progress, total))
}

func (o *Observer) OnFinish(file string) {
	o.publish(update.NewUpdateFinished(o.sessionID, file))
}

func (o *Observer) OnError(err error, retryAllowed bool) {
	o.publish(update.NewUpdateFailed(o.sessionID, err, retryAllowed))
}

func (o *Observer) OnCancel() {
	o.publish(update.NewUpdateCancelled(o.sessionID))
}

func (o *Observer) publish(event domainevents.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := o.publisher.PublishEvent(ctx, event); err != nil {
		o.logger.Error("failed to publish event",
			zap.String("event_type", event.EventType()),
			zap.String("session_id", event.AggregateID().String()),
			zap.Error(err),
		)
	}
}
