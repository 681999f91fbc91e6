package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"qna-live/domain"
	"qna-live/repositories"
	"qna-live/runtime"
)

type INotificationService interface {
	Push(ctx context.Context, recipientID, notifType, content, link string) (domain.Notification, error)
	List(userID string) ([]domain.Notification, error)
	MarkRead(userID string, id uuid.UUID) error
	MarkAllRead(userID string) error
	UnreadCount(userID string) (int, error)
}

type NotificationService struct {
	orchestrator *runtime.Orchestrator
	repository   repositories.INotificationRepository
}

func NewNotificationService(o *runtime.Orchestrator,
	repository repositories.INotificationRepository) *NotificationService {
	return &NotificationService{orchestrator: o, repository: repository}
}

// Push creates the notification and hands it to the dispatcher, which
// persists it before delivering to the recipient's open sessions.
func (s *NotificationService) Push(ctx context.Context,
	recipientID, notifType, content, link string) (domain.Notification, error) {
	n := domain.Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		Type:        notifType,
		Content:     content,
		Link:        link,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.orchestrator.PushNotification(ctx, n); err != nil {
		return domain.Notification{}, err
	}
	return n, nil
}

func (s *NotificationService) List(userID string) ([]domain.Notification, error) {
	stored, err := s.repository.List(userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(stored, func(item repositories.DiskNotification, _ int) domain.Notification {
		return domain.Notification{
			ID:          item.ID,
			RecipientID: item.Recipient,
			Type:        item.Type,
			Content:     item.Content,
			Link:        item.Link,
			Read:        item.Read,
			CreatedAt:   item.At,
		}
	}), nil
}

func (s *NotificationService) MarkRead(userID string, id uuid.UUID) error {
	return s.repository.MarkRead(userID, id)
}

func (s *NotificationService) MarkAllRead(userID string) error {
	return s.repository.MarkAllRead(userID)
}

// UnreadCount is recomputed from the durable read flags on every call,
// so the pushed stream and the fetched count cannot drift apart.
func (s *NotificationService) UnreadCount(userID string) (int, error) {
	return s.repository.UnreadCount(userID)
}
