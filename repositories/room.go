package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"qna-live/domain"
	"qna-live/errors"
)

type IRoomRepository interface {
	SaveRoom(room domain.Room) error
	GetRoom(id domain.RoomID) (domain.Room, error)
	RoomsForUser(userID string) ([]domain.Room, error)
	RemoveMember(id domain.RoomID, userID string) error
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) RoomRepository {
	return RoomRepository{db: db}
}

type diskRoom struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	IsGroup bool     `json:"is_group"`
	Members []string `json:"members"`
}

func roomKey(id domain.RoomID) []byte {
	return []byte("room:" + string(id))
}

// memberKey is a secondary index "member:{user}:{room}" so listing the
// rooms of a user doesn't scan every room.
func memberKey(userID string, id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", userID, id))
}

// SaveRoom upserts the durable side of a room and rebuilds its member index.
func (r RoomRepository) SaveRoom(room domain.Room) error {
	bytes, err := json.Marshal(fromRoom(room))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(roomKey(room.ID), bytes); err != nil {
			return err
		}
		for _, member := range room.Members {
			if err := txn.Set(memberKey(member, room.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r RoomRepository) GetRoom(id domain.RoomID) (domain.Room, error) {
	var disk diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &disk)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.Room{}, errors.ErrRoomNotFound
	}
	if err != nil {
		return domain.Room{}, err
	}
	return toRoom(disk), nil
}

// RoomsForUser resolves the member index into full rooms.
func (r RoomRepository) RoomsForUser(userID string) ([]domain.Room, error) {
	var ids []domain.RoomID
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("member:%s:", userID)
		prefix := []byte(prefixStr)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, domain.RoomID(it.Item().Key()[len(prefixStr):]))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var rooms []domain.Room
	for _, id := range ids {
		room, err := r.GetRoom(id)
		if err == errors.ErrRoomNotFound {
			// Stale index entry, the room was deleted.
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// RemoveMember revokes durable membership. A disconnected session whose
// membership was revoked will not rejoin this room on resume.
func (r RoomRepository) RemoveMember(id domain.RoomID, userID string) error {
	room, err := r.GetRoom(id)
	if err != nil {
		return err
	}
	kept := room.Members[:0]
	for _, m := range room.Members {
		if m != userID {
			kept = append(kept, m)
		}
	}
	room.Members = kept

	bytes, err := json.Marshal(fromRoom(room))
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(userID, id)); err != nil {
			return err
		}
		return txn.Set(roomKey(id), bytes)
	})
}

func fromRoom(room domain.Room) diskRoom {
	return diskRoom{
		ID:      string(room.ID),
		Name:    room.Name,
		IsGroup: room.IsGroup,
		Members: room.Members,
	}
}

func toRoom(disk diskRoom) domain.Room {
	return domain.Room{
		ID:      domain.RoomID(disk.ID),
		Name:    disk.Name,
		IsGroup: disk.IsGroup,
		Members: disk.Members,
	}
}
