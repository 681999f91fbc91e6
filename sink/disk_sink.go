package sink

import (
	"context"
	"fmt"
	"log/slog"

	"qna-live/domain/event"
	"qna-live/repositories"
)

// DiskSink appends sanitized messages to the durable log so a client
// that was offline during fan-out can backfill them later.
type DiskSink struct {
	repository repositories.IMessageRepository
	log        *slog.Logger
}

func NewDiskSink(repository repositories.IMessageRepository, log *slog.Logger) DiskSink {
	return DiskSink{repository: repository, log: log}
}

func (d DiskSink) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageSanitized:
		return d.repository.StoreMessage(toDiskMessage(evt))
	default:
		d.log.Debug(fmt.Sprintf("Not a persisted event : %v", evt))
		return nil
	}
}

func toDiskMessage(evt event.MessageSanitized) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:      evt.ID,
		Room:    string(evt.Room),
		Author:  evt.Author,
		Content: evt.Content,
		Lang:    evt.Lang,
		At:      evt.At,
	}
}
