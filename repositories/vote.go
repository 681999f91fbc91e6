package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"qna-live/domain"
	"qna-live/errors"
)

type IVoteRepository interface {
	CastVote(vote domain.Vote) error
	CountVotes(answerID string) (up int, down int, err error)
}

type VoteRepository struct {
	db *badger.DB
}

func NewVoteRepository(db *badger.DB) VoteRepository {
	return VoteRepository{db: db}
}

type diskVote struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
}

func voteKey(answerID, userID string) []byte {
	return []byte(fmt.Sprintf("vote:%s:%s", answerID, userID))
}

// CastVote is insert-only: the key encodes (answerID, userID), and an
// existing key means the actor already voted. Rejected, never silently
// double-counted.
func (v VoteRepository) CastVote(vote domain.Vote) error {
	bytes, err := json.Marshal(diskVote{Type: string(vote.Type), At: vote.CastAt})
	if err != nil {
		return err
	}
	return v.db.Update(func(txn *badger.Txn) error {
		key := voteKey(vote.AnswerID, vote.UserID)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrDuplicateVote
		}
		return txn.Set(key, bytes)
	})
}

// CountVotes derives the tally from stored votes rather than keeping a
// mutable counter on the answer.
func (v VoteRepository) CountVotes(answerID string) (int, int, error) {
	var up, down int
	err := v.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("vote:%s:", answerID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var dv diskVote
				if err := json.Unmarshal(value, &dv); err != nil {
					return err
				}
				if domain.VoteType(dv.Type) == domain.VoteDown {
					down++
				} else {
					up++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return up, down, err
}
