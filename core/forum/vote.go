package forum

import "github.com/pkg/errors"

type (
	VoteType string

	// Target is the kind of record a vote is cast on.
	Target string
)

const (
	NoVote   VoteType = ""
	Upvote   VoteType = "upvote"
	Downvote VoteType = "downvote"

	TargetPost   Target = "post"
	TargetAnswer Target = "answer"
)

var ErrInvalidVote = errors.New("vote must be either upvote or downvote")

func (vt VoteType) Valid() bool { return vt == Upvote || vt == Downvote }

// Tally holds the vote counters of a post or an answer.
type Tally struct {
	Upvote   int `json:"upvote" db:"upvote"`
	Downvote int `json:"downvote" db:"downvote"`
}

func (t Tally) Score() int { return t.Upvote - t.Downvote }

func (t *Tally) add(vt VoteType, n int) {
	switch vt {
	case Upvote:
		t.Upvote = floor0(t.Upvote + n)
	case Downvote:
		t.Downvote = floor0(t.Downvote + n)
	}
}

// ApplyVote computes the tally and the voter's vote after casting `cast` over a previous vote `prev`:
//   - no previous vote: the vote is recorded and its counter incremented;
//   - same vote again: the vote is withdrawn and its counter decremented;
//   - opposite vote: the vote is switched, the new counter incremented and the old one decremented.
//
// Counters never go below zero.
func ApplyVote(t Tally, prev, cast VoteType) (Tally, VoteType) {
	switch prev {
	case NoVote:
		t.add(cast, 1)
		return t, cast
	case cast:
		t.add(cast, -1)
		return t, NoVote
	default:
		t.add(cast, 1)
		t.add(prev, -1)
		return t, cast
	}
}

// VoteResult is the state of a post or an answer after a vote.
type VoteResult struct {
	Tally
	Score    int      `json:"score"`
	UserVote VoteType `json:"user_vote"`
}

func NewVoteResult(t Tally, userVote VoteType) VoteResult {
	return VoteResult{Tally: t, Score: t.Score(), UserVote: userVote}
}

func floor0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
