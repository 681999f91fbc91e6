package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func storeMessages(t *testing.T, repo MessageRepository, room string, contents ...string) {
	t.Helper()
	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	for i, content := range contents {
		require.NoError(t, repo.StoreMessage(DiskMessage{
			ID:      uuid.New(),
			Room:    room,
			Author:  "alice",
			Content: content,
			At:      base.Add(time.Duration(i) * time.Second),
		}))
	}
}

func TestMessageRepository_GetMessages_Newest_First(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(testDB(t), slog.Default(), nil)

	// Given three messages stored in chronological order
	storeMessages(t, repo, "room-go", "first", "second", "third")

	// When reading without a cursor
	messages, _, err := repo.GetMessages("room-go", nil)

	// Then the newest message comes first
	req.NoError(err)
	req.Len(messages, 3)
	req.Equal("third", messages[0].Content)
	req.Equal("first", messages[2].Content)
}

func TestMessageRepository_Cursor_Resumes_The_Scan(t *testing.T) {
	req := require.New(t)
	limit := 2
	repo := NewMessageRepository(testDB(t), slog.Default(), &limit)

	// Given five messages and a page size of two
	storeMessages(t, repo, "room-go", "m1", "m2", "m3", "m4", "m5")

	// When paging through
	page1, cursor, err := repo.GetMessages("room-go", nil)
	req.NoError(err)
	req.Equal([]string{"m5", "m4"}, contents(page1))

	page2, cursor, err := repo.GetMessages("room-go", cursor)
	req.NoError(err)
	req.Equal([]string{"m3", "m2"}, contents(page2))

	page3, _, err := repo.GetMessages("room-go", cursor)
	req.NoError(err)
	req.Equal([]string{"m1"}, contents(page3))
}

func TestMessageRepository_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	repo := NewMessageRepository(testDB(t), slog.Default(), nil)

	// Given messages in two rooms
	storeMessages(t, repo, "room-a", "for a")
	storeMessages(t, repo, "room-b", "for b")

	// Then each prefix scan only sees its own room
	messages, _, err := repo.GetMessages("room-a", nil)
	req.NoError(err)
	req.Equal([]string{"for a"}, contents(messages))

	messages, _, err = repo.GetMessages("room-empty", nil)
	req.NoError(err)
	req.Empty(messages)
}

func contents(messages []DiskMessage) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}
