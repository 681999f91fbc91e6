package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"qna-live/errors"
)

type INotificationRepository interface {
	Store(n DiskNotification) error
	List(userID string) ([]DiskNotification, error)
	MarkRead(userID string, id uuid.UUID) error
	MarkAllRead(userID string) error
	UnreadCount(userID string) (int, error)
}

type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

type DiskNotification struct {
	ID        uuid.UUID `json:"id"`
	Recipient string    `json:"recipient"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	At        time.Time `json:"at"`
}

// Keys follow "notif:{user}:{timestamp_padded}:{uuid}" so a prefix scan
// per user returns notifications in chronological order, same scheme as
// the message store.
func notificationKey(n DiskNotification) []byte {
	return []byte(fmt.Sprintf("notif:%s:%019d:%s", n.Recipient, n.At.UnixNano(), n.ID))
}

func userPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("notif:%s:", userID))
}

func (r NotificationRepository) Store(n DiskNotification) error {
	bytes, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notificationKey(n), bytes)
	})
}

// List returns every notification of a user, newest first.
func (r NotificationRepository) List(userID string) ([]DiskNotification, error) {
	var notifications []DiskNotification
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := userPrefix(userID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var n DiskNotification
				if err := json.Unmarshal(value, &n); err != nil {
					return err
				}
				notifications = append(notifications, n)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return notifications, err
}

// MarkRead flips the read flag of a single notification.
// The id is the key suffix, so the user prefix is scanned until it matches.
func (r NotificationRepository) MarkRead(userID string, id uuid.UUID) error {
	suffix := ":" + id.String()
	return r.db.Update(func(txn *badger.Txn) error {
		prefix := userPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), suffix) {
				continue
			}
			return flipRead(txn, item)
		}
		return errors.ErrNotificationNotFound
	})
}

// MarkAllRead flips every unread notification of a user in one transaction.
func (r NotificationRepository) MarkAllRead(userID string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		prefix := userPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := flipRead(txn, it.Item()); err != nil {
				return err
			}
		}
		return nil
	})
}

// UnreadCount is always recomputed from the stored read flags; there is
// no separately maintained running total.
func (r NotificationRepository) UnreadCount(userID string) (int, error) {
	count := 0
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := userPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var n DiskNotification
				if err := json.Unmarshal(value, &n); err != nil {
					return err
				}
				if !n.Read {
					count++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return count, err
}

func flipRead(txn *badger.Txn, item *badger.Item) error {
	key := item.KeyCopy(nil)
	var n DiskNotification
	err := item.Value(func(value []byte) error {
		return json.Unmarshal(value, &n)
	})
	if err != nil {
		return err
	}
	if n.Read {
		return nil
	}
	n.Read = true
	bytes, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return txn.Set(key, bytes)
}
