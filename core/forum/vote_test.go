package forum

import "testing"

func TestApplyVote(t *testing.T) {
	tests := []struct {
		name     string
		tally    Tally
		prev     VoteType
		cast     VoteType
		want     Tally
		wantVote VoteType
	}{
		{name: "first upvote", tally: Tally{}, prev: NoVote, cast: Upvote, want: Tally{Upvote: 1}, wantVote: Upvote},
		{name: "first downvote", tally: Tally{Upvote: 3}, prev: NoVote, cast: Downvote, want: Tally{Upvote: 3, Downvote: 1}, wantVote: Downvote},
		{name: "upvote withdrawn", tally: Tally{Upvote: 2, Downvote: 1}, prev: Upvote, cast: Upvote, want: Tally{Upvote: 1, Downvote: 1}, wantVote: NoVote},
		{name: "downvote withdrawn", tally: Tally{Downvote: 1}, prev: Downvote, cast: Downvote, want: Tally{}, wantVote: NoVote},
		{name: "up to down", tally: Tally{Upvote: 5, Downvote: 2}, prev: Upvote, cast: Downvote, want: Tally{Upvote: 4, Downvote: 3}, wantVote: Downvote},
		{name: "down to up", tally: Tally{Upvote: 5, Downvote: 2}, prev: Downvote, cast: Upvote, want: Tally{Upvote: 6, Downvote: 1}, wantVote: Upvote},
		// counters out of sync with the votes never go negative
		{name: "withdraw floors at zero", tally: Tally{}, prev: Upvote, cast: Upvote, want: Tally{}, wantVote: NoVote},
		{name: "switch floors at zero", tally: Tally{}, prev: Downvote, cast: Upvote, want: Tally{Upvote: 1}, wantVote: Upvote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, gotVote := ApplyVote(tt.tally, tt.prev, tt.cast)
			if got != tt.want {
				t.Errorf("ApplyVote() tally = %+v; want %+v", got, tt.want)
			}
			if gotVote != tt.wantVote {
				t.Errorf("ApplyVote() vote = %q; want %q", gotVote, tt.wantVote)
			}
		})
	}
}

func TestNewVoteResult(t *testing.T) {
	res := NewVoteResult(Tally{Upvote: 2, Downvote: 5}, Downvote)
	if res.Score != -3 {
		t.Errorf("Score = %d; want -3", res.Score)
	}
	if res.UserVote != Downvote {
		t.Errorf("UserVote = %q; want downvote", res.UserVote)
	}
}
