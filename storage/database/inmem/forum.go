package inmemdb

import (
	"context"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/forum"
)

type forumRepository struct {
	db *DB
}

func NewForumRepository(db *DB) forum.Repository {
	return &forumRepository{db: db}
}

// post returns a copy of the post with its author; must be called with the lock held.
func (repo *forumRepository) post(p *forum.Post) forum.Post {
	cp := *p
	cp.Author = repo.db.username(cp.UserID)
	cp.ImageURLs = cloneStrings(cp.ImageURLs)
	cp.Tags = cloneStrings(cp.Tags)
	return cp
}

func (repo *forumRepository) answer(a *forum.Answer) forum.Answer {
	cp := *a
	cp.Author = repo.db.username(cp.UserID)
	return cp
}

func (repo *forumRepository) ListPosts(_ context.Context, filter forum.ListFilter) ([]forum.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	posts := make([]forum.Post, 0)
	for _, p := range repo.db.post {
		if filter.Matches(*p) {
			posts = append(posts, repo.post(p))
		}
	}
	sortBy(posts, newestFirst, func(a, b forum.Post, _ string) int { return a.CreatedAt.Compare(b.CreatedAt) })

	if filter.Offset >= len(posts) {
		return []forum.Post{}, nil
	}
	posts = posts[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(posts) {
		posts = posts[:filter.Limit]
	}
	return posts, nil
}

func (repo *forumRepository) GetPost(_ context.Context, id string) (forum.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.post[id]; ok {
		return repo.post(p), nil
	}
	return forum.Post{}, forum.ErrPostNotFound
}

func (repo *forumRepository) CreatePost(_ context.Context, p forum.Post) (forum.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.Answers = nil
	repo.db.post[p.ID] = &p
	return repo.post(&p), nil
}

func (repo *forumRepository) UpdatePost(_ context.Context, p forum.Post) (forum.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.post[p.ID]
	if !ok {
		return forum.Post{}, forum.ErrPostNotFound
	}
	// counters are only written by votes & reports
	orig.Title = p.Title
	orig.Content = p.Content
	orig.Tags = cloneStrings(p.Tags)
	orig.IsDuplicate = p.IsDuplicate
	orig.LastEdited = p.LastEdited
	return repo.post(orig), nil
}

func (repo *forumRepository) DeletePost(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.post[id]; !ok {
		return forum.ErrPostNotFound
	}
	delete(repo.db.post, id)

	// cascade
	for aid, a := range repo.db.postAnswer {
		if a.PostID == id {
			delete(repo.db.postAnswer, aid)
			for k := range repo.db.answerVote {
				if k.targetID == aid {
					delete(repo.db.answerVote, k)
				}
			}
		}
	}
	for k := range repo.db.postVote {
		if k.targetID == id {
			delete(repo.db.postVote, k)
		}
	}
	for k := range repo.db.postReport {
		if k.targetID == id {
			delete(repo.db.postReport, k)
		}
	}
	return nil
}

func (repo *forumRepository) ReportPost(_ context.Context, postID, userID string) (forum.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p, ok := repo.db.post[postID]
	if !ok {
		return forum.Post{}, forum.ErrPostNotFound
	}
	key := voteKey{userID: userID, targetID: postID}
	if _, ok = repo.db.postReport[key]; ok {
		return forum.Post{}, forum.ErrAlreadyReported
	}
	repo.db.postReport[key] = struct{}{}
	p.ReportCount++
	return repo.post(p), nil
}

func (repo *forumRepository) ListAnswers(_ context.Context, postID string) ([]forum.Answer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	answers := make([]forum.Answer, 0)
	for _, a := range repo.db.postAnswer {
		if a.PostID == postID {
			answers = append(answers, repo.answer(a))
		}
	}
	sortBy(answers, []core.DBOrdering{{Field: "created_at", Ascending: true}}, func(a, b forum.Answer, _ string) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return answers, nil
}

func (repo *forumRepository) GetAnswer(_ context.Context, id string) (forum.Answer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if a, ok := repo.db.postAnswer[id]; ok {
		return repo.answer(a), nil
	}
	return forum.Answer{}, forum.ErrAnswerNotFound
}

func (repo *forumRepository) CreateAnswer(_ context.Context, a forum.Answer) (forum.Answer, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.post[a.PostID]; !ok {
		return forum.Answer{}, forum.ErrPostNotFound
	}
	repo.db.postAnswer[a.ID] = &a
	return repo.answer(&a), nil
}

func (repo *forumRepository) DeleteAnswer(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.postAnswer[id]; !ok {
		return forum.ErrAnswerNotFound
	}
	delete(repo.db.postAnswer, id)
	for k := range repo.db.answerVote {
		if k.targetID == id {
			delete(repo.db.answerVote, k)
		}
	}
	return nil
}

// Vote holds the write lock for the whole read-tally-write cycle.
func (repo *forumRepository) Vote(_ context.Context, target forum.Target, id, userID string, cast forum.VoteType) (forum.VoteResult, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var (
		upvote, downvote *int
		votes            map[voteKey]forum.VoteType
	)
	switch target {
	case forum.TargetPost:
		p, ok := repo.db.post[id]
		if !ok {
			return forum.VoteResult{}, forum.ErrPostNotFound
		}
		upvote, downvote, votes = &p.Upvote, &p.Downvote, repo.db.postVote
	case forum.TargetAnswer:
		a, ok := repo.db.postAnswer[id]
		if !ok {
			return forum.VoteResult{}, forum.ErrAnswerNotFound
		}
		upvote, downvote, votes = &a.Upvote, &a.Downvote, repo.db.answerVote
	default:
		return forum.VoteResult{}, forum.ErrInvalidVote
	}

	key := voteKey{userID: userID, targetID: id}
	tally, userVote := forum.ApplyVote(forum.Tally{Upvote: *upvote, Downvote: *downvote}, votes[key], cast)
	if userVote == forum.NoVote {
		delete(votes, key)
	} else {
		votes[key] = userVote
	}
	*upvote, *downvote = tally.Upvote, tally.Downvote
	return forum.NewVoteResult(tally, userVote), nil
}

func (repo *forumRepository) GetVote(_ context.Context, target forum.Target, id, userID string) (forum.VoteType, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	key := voteKey{userID: userID, targetID: id}
	switch target {
	case forum.TargetPost:
		return repo.db.postVote[key], nil
	case forum.TargetAnswer:
		return repo.db.answerVote[key], nil
	}
	return forum.NoVote, forum.ErrInvalidVote
}
