package services

import (
	"context"

	"github.com/google/uuid"

	"qna-live/auth"
	"qna-live/domain"
	"qna-live/repositories"
	"qna-live/runtime"
)

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error
	Typing(cmd domain.TypingCommand) error
	GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error)
	JoinRoom(sessionID, userID string, roomID domain.RoomID) error
	LeaveRoom(sessionID string, roomID domain.RoomID)
	RoomsForUser(userID string) ([]domain.Room, error)
	CreateGroup(name string, memberIDs []string) (domain.Room, error)
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
	rooms        repositories.IRoomRepository
}

func NewChatService(o *runtime.Orchestrator, rooms repositories.IRoomRepository) *ChatService {
	return &ChatService{orchestrator: o, rooms: rooms}
}

func (s *ChatService) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	return s.orchestrator.PostMessage(ctx, cmd)
}

func (s *ChatService) Typing(cmd domain.TypingCommand) error {
	return s.orchestrator.Typing(cmd)
}

func (s *ChatService) GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error) {
	return s.orchestrator.GetMessages(cmd)
}

func (s *ChatService) JoinRoom(sessionID, userID string, roomID domain.RoomID) error {
	return s.orchestrator.JoinRoom(sessionID, userID, roomID)
}

func (s *ChatService) LeaveRoom(sessionID string, roomID domain.RoomID) {
	s.orchestrator.LeaveRoom(sessionID, roomID)
}

func (s *ChatService) RoomsForUser(userID string) ([]domain.Room, error) {
	return s.rooms.RoomsForUser(userID)
}

// CreateGroup persists a new group room. Who may join is durable
// membership; who is connected stays ephemeral in the registry.
func (s *ChatService) CreateGroup(name string, memberIDs []string) (domain.Room, error) {
	req := auth.CreateGroupRequest{Name: name, Members: memberIDs}
	if err := auth.ValidateCreateGroup(req); err != nil {
		return domain.Room{}, err
	}

	room := domain.Room{
		ID:      domain.RoomID(uuid.NewString()),
		Name:    name,
		IsGroup: true,
		Members: memberIDs,
	}
	if err := s.rooms.SaveRoom(room); err != nil {
		return domain.Room{}, err
	}
	return room, nil
}
