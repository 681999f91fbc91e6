package contract

import (
	"context"
	"reflect"

	"qna-live/domain"
	"qna-live/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker
// lifecycle events, avoiding manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry tracks which sessions are currently joined to which rooms.
// All of it is ephemeral: a disconnect drops the session everywhere.
type IRegistry interface {
	Register(sessionID, userID string, sink EventSink)
	Unregister(sessionID string)
	Join(sessionID string, roomID domain.RoomID)
	Leave(sessionID string, roomID domain.RoomID)
	Joined(sessionID string, roomID domain.RoomID) bool
	SinksForRoom(roomID domain.RoomID) []EventSink
	SinksForRoomExcept(roomID domain.RoomID, sessionID string) []EventSink
	SinksForUser(userID string) []EventSink
}
