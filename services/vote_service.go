package services

import (
	"time"

	"qna-live/domain"
	"qna-live/repositories"
)

type IVoteService interface {
	Cast(answerID, userID string, voteType domain.VoteType) error
	Count(answerID string) (up int, down int, err error)
}

type VoteService struct {
	repository repositories.IVoteRepository
}

func NewVoteService(repository repositories.IVoteRepository) *VoteService {
	return &VoteService{repository: repository}
}

// Cast enforces at most one vote per (answer, user). A duplicate is
// surfaced as ErrDuplicateVote so the caller can show "already acted";
// it is never silently ignored or double-counted.
func (s *VoteService) Cast(answerID, userID string, voteType domain.VoteType) error {
	return s.repository.CastVote(domain.Vote{
		AnswerID: answerID,
		UserID:   userID,
		Type:     voteType,
		CastAt:   time.Now().UTC(),
	})
}

func (s *VoteService) Count(answerID string) (int, int, error) {
	return s.repository.CountVotes(answerID)
}
