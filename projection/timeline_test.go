package projection

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"qna-live/domain"
	"qna-live/domain/event"
)

func consume(t *testing.T, timeline *Timeline, room string, content string) {
	t.Helper()
	require.NoError(t, timeline.Consume(context.Background(), event.MessageSanitized{
		ID:      uuid.New(),
		Room:    domain.RoomID(room),
		Author:  "alice",
		Content: content,
		At:      time.Now().UTC(),
	}))
}

func TestTimeline_Keeps_Delivery_Order(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(16)

	consume(t, timeline, "room-go", "first")
	consume(t, timeline, "room-go", "second")

	messages := timeline.Messages("room-go")
	req.Len(messages, 2)
	req.Equal("first", messages[0].Content)
	req.Equal("second", messages[1].Content)
}

func TestTimeline_Trims_To_Capacity(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(3)

	for i := 0; i < 5; i++ {
		consume(t, timeline, "room-go", fmt.Sprintf("m%d", i))
	}

	// Only the most recent tail is retained
	messages := timeline.Messages("room-go")
	req.Len(messages, 3)
	req.Equal("m2", messages[0].Content)
	req.Equal("m4", messages[2].Content)
}

func TestTimeline_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(16)

	consume(t, timeline, "room-a", "for a")

	req.Len(timeline.Messages("room-a"), 1)
	req.Empty(timeline.Messages("room-b"))
}

func TestTimeline_Ignores_Other_Event_Kinds(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline(16)

	req.NoError(timeline.Consume(context.Background(), event.TypingStarted{
		Room: domain.RoomID("room-go"), UserID: "alice",
	}))

	req.Empty(timeline.Messages("room-go"))
}
