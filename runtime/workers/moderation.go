package workers

import (
	"context"
	"log/slog"

	"github.com/abadojack/whatlanggo"

	"qna-live/domain/event"
	"qna-live/moderation"
)

// ModerationWorker is the single consumer of accepted messages.
// Being a lone stage between acceptance and fan-out, it preserves the
// per-room acceptance order while censoring content and tagging the
// detected language.
type ModerationWorker struct {
	moderator moderation.Moderator
	posted    chan event.DomainEvent
	sanitized chan event.DomainEvent
	log       *slog.Logger
}

func NewModerationWorker(moderator moderation.Moderator,
	posted, sanitized chan event.DomainEvent, log *slog.Logger) *ModerationWorker {
	return &ModerationWorker{
		moderator: moderator,
		posted:    posted,
		sanitized: sanitized,
		log:       log,
	}
}

func (w *ModerationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case e, ok := <-w.posted:
			if !ok {
				w.log.Debug("Channel is closed")
				return nil
			}
			posted, ok := e.(event.MessagePosted)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case w.sanitized <- w.sanitize(posted):
			}
		}
	}
}

func (w *ModerationWorker) sanitize(posted event.MessagePosted) event.MessageSanitized {
	info := whatlanggo.Detect(posted.Content)
	return event.MessageSanitized{
		ID:      posted.ID,
		Room:    posted.Room,
		Origin:  posted.Origin,
		Author:  posted.Author,
		Content: w.moderator.Censor(posted.Content),
		Lang:    info.Lang.Iso6391(),
		At:      posted.At,
	}
}
