package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core/forum"
)

const (
	postSelect = `SELECT p.id, p.user_id, COALESCE(u.username, '') AS author, p.title, p.content, p.upvote, p.downvote,
	p.report_count, p.image_urls, p.tags, p.is_duplicate, p.created_at, p.last_edited
	FROM post p LEFT JOIN "user" u ON u.id = p.user_id`

	answerSelect = `SELECT a.id, a.post_id, a.user_id, COALESCE(u.username, '') AS author, a.answer, a.upvote, a.downvote,
	a.created_at FROM post_answer a LEFT JOIN "user" u ON u.id = a.user_id`
)

type postRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Author      string         `db:"author"`
	Title       string         `db:"title"`
	Content     string         `db:"content"`
	Upvote      int            `db:"upvote"`
	Downvote    int            `db:"downvote"`
	ReportCount int            `db:"report_count"`
	ImageURLs   pq.StringArray `db:"image_urls"`
	Tags        pq.StringArray `db:"tags"`
	IsDuplicate bool           `db:"is_duplicate"`
	CreatedAt   time.Time      `db:"created_at"`
	LastEdited  sql.NullTime   `db:"last_edited"`
}

func (r postRow) post() forum.Post {
	p := forum.Post{
		ID:          r.ID,
		UserID:      r.UserID,
		Author:      r.Author,
		Title:       r.Title,
		Content:     r.Content,
		Upvote:      r.Upvote,
		Downvote:    r.Downvote,
		ReportCount: r.ReportCount,
		ImageURLs:   []string(r.ImageURLs),
		Tags:        []string(r.Tags),
		IsDuplicate: r.IsDuplicate,
		CreatedAt:   r.CreatedAt.UTC(),
	}
	if r.LastEdited.Valid {
		le := r.LastEdited.Time.UTC()
		p.LastEdited = &le
	}
	if p.ImageURLs == nil {
		p.ImageURLs = []string{}
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return p
}

type forumRepository struct {
	db *sqlx.DB
}

func NewForumRepository(db *sqlx.DB) forum.Repository {
	return &forumRepository{db: db}
}

func (repo *forumRepository) ListPosts(ctx context.Context, filter forum.ListFilter) ([]forum.Post, error) {
	q := postSelect + ` WHERE TRUE`
	var args []interface{}
	if !filter.IncludeDuplicates {
		q += ` AND NOT p.is_duplicate`
	}
	if filter.Tag != "" {
		args = append(args, filter.Tag)
		q += ` AND $` + strconv.Itoa(len(args)) + ` = ANY(p.tags)`
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		n := strconv.Itoa(len(args))
		q += ` AND (p.title ILIKE $` + n + ` OR p.content ILIKE $` + n + `)`
	}
	q += ` ORDER BY p.created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		q += ` OFFSET $` + strconv.Itoa(len(args))
	}

	var rows []postRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting posts")
	}
	posts := make([]forum.Post, len(rows))
	for i, r := range rows {
		posts[i] = r.post()
	}
	return posts, nil
}

func (repo *forumRepository) GetPost(ctx context.Context, id string) (forum.Post, error) {
	var row postRow
	if err := repo.db.GetContext(ctx, &row, postSelect+` WHERE p.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return forum.Post{}, forum.ErrPostNotFound
		}
		return forum.Post{}, errors.Wrap(err, "selecting post")
	}
	return row.post(), nil
}

func (repo *forumRepository) CreatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	q := `INSERT INTO post (id, user_id, title, content, image_urls, tags, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := repo.db.ExecContext(ctx, q, p.ID, p.UserID, p.Title, p.Content, stringArray(p.ImageURLs), stringArray(p.Tags), p.CreatedAt)
	if err != nil {
		return forum.Post{}, errors.Wrap(err, "inserting post")
	}
	return repo.GetPost(ctx, p.ID)
}

func (repo *forumRepository) UpdatePost(ctx context.Context, p forum.Post) (forum.Post, error) {
	var lastEdited sql.NullTime
	if p.LastEdited != nil {
		lastEdited = sql.NullTime{Time: *p.LastEdited, Valid: true}
	}
	q := `UPDATE post SET title = $2, content = $3, tags = $4, is_duplicate = $5, last_edited = $6 WHERE id = $1`
	res, err := repo.db.ExecContext(ctx, q, p.ID, p.Title, p.Content, stringArray(p.Tags), p.IsDuplicate, lastEdited)
	if err != nil {
		return forum.Post{}, errors.Wrap(err, "updating post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return forum.Post{}, forum.ErrPostNotFound
	}
	return repo.GetPost(ctx, p.ID)
}

func (repo *forumRepository) DeletePost(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM post WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting post")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return forum.ErrPostNotFound
	}
	return nil
}

func (repo *forumRepository) ReportPost(ctx context.Context, postID, userID string) (forum.Post, error) {
	err := repo.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO post_report (user_id, post_id) SELECT $1, id FROM post WHERE id = $2 ON CONFLICT DO NOTHING`,
			userID, postID,
		)
		if err != nil {
			return errors.Wrap(err, "inserting report")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			var exists bool
			if err = tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM post WHERE id = $1)`, postID); err != nil {
				return errors.Wrap(err, "checking post")
			}
			if !exists {
				return forum.ErrPostNotFound
			}
			return forum.ErrAlreadyReported
		}
		_, err = tx.ExecContext(ctx, `UPDATE post SET report_count = report_count + 1 WHERE id = $1`, postID)
		return errors.Wrap(err, "counting report")
	})
	if err != nil {
		return forum.Post{}, err
	}
	return repo.GetPost(ctx, postID)
}

func (repo *forumRepository) ListAnswers(ctx context.Context, postID string) ([]forum.Answer, error) {
	answers := make([]forum.Answer, 0)
	if err := repo.db.SelectContext(ctx, &answers, answerSelect+` WHERE a.post_id = $1 ORDER BY a.created_at`, postID); err != nil {
		return nil, errors.Wrap(err, "selecting answers")
	}
	return answers, nil
}

func (repo *forumRepository) GetAnswer(ctx context.Context, id string) (forum.Answer, error) {
	var a forum.Answer
	if err := repo.db.GetContext(ctx, &a, answerSelect+` WHERE a.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return forum.Answer{}, forum.ErrAnswerNotFound
		}
		return forum.Answer{}, errors.Wrap(err, "selecting answer")
	}
	return a, nil
}

func (repo *forumRepository) CreateAnswer(ctx context.Context, a forum.Answer) (forum.Answer, error) {
	q := `INSERT INTO post_answer (id, post_id, user_id, answer, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := repo.db.ExecContext(ctx, q, a.ID, a.PostID, a.UserID, a.Answer, a.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
			return forum.Answer{}, forum.ErrPostNotFound
		}
		return forum.Answer{}, errors.Wrap(err, "inserting answer")
	}
	return repo.GetAnswer(ctx, a.ID)
}

func (repo *forumRepository) DeleteAnswer(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM post_answer WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting answer")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return forum.ErrAnswerNotFound
	}
	return nil
}

// voteTables returns the counters table, the votes table and its target column.
func voteTables(target forum.Target) (counters, votes, column string, notFound error, err error) {
	switch target {
	case forum.TargetPost:
		return "post", "post_vote", "post_id", forum.ErrPostNotFound, nil
	case forum.TargetAnswer:
		return "post_answer", "answer_vote", "answer_id", forum.ErrAnswerNotFound, nil
	}
	return "", "", "", nil, forum.ErrInvalidVote
}

// Vote locks the target row for the duration of the transaction, so concurrent votes on the same
// target are applied one after the other.
func (repo *forumRepository) Vote(ctx context.Context, target forum.Target, id, userID string, cast forum.VoteType) (forum.VoteResult, error) {
	counters, votes, column, notFound, err := voteTables(target)
	if err != nil {
		return forum.VoteResult{}, err
	}

	var res forum.VoteResult
	err = repo.inTx(ctx, func(tx *sqlx.Tx) error {
		var tally forum.Tally
		q := `SELECT upvote, downvote FROM ` + counters + ` WHERE id = $1 FOR UPDATE`
		if err := tx.GetContext(ctx, &tally, q, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFound
			}
			return errors.Wrap(err, "locking vote target")
		}

		var prev string
		q = `SELECT vote_type FROM ` + votes + ` WHERE user_id = $1 AND ` + column + ` = $2`
		if err := tx.GetContext(ctx, &prev, q, userID, id); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(err, "selecting vote")
		}

		newTally, userVote := forum.ApplyVote(tally, forum.VoteType(prev), cast)
		if userVote == forum.NoVote {
			q = `DELETE FROM ` + votes + ` WHERE user_id = $1 AND ` + column + ` = $2`
			if _, err := tx.ExecContext(ctx, q, userID, id); err != nil {
				return errors.Wrap(err, "deleting vote")
			}
		} else {
			q = `INSERT INTO ` + votes + ` (user_id, ` + column + `, vote_type) VALUES ($1, $2, $3)
				ON CONFLICT (user_id, ` + column + `) DO UPDATE SET vote_type = EXCLUDED.vote_type`
			if _, err := tx.ExecContext(ctx, q, userID, id, string(userVote)); err != nil {
				return errors.Wrap(err, "saving vote")
			}
		}

		q = `UPDATE ` + counters + ` SET upvote = $2, downvote = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, q, id, newTally.Upvote, newTally.Downvote); err != nil {
			return errors.Wrap(err, "updating tally")
		}
		res = forum.NewVoteResult(newTally, userVote)
		return nil
	})
	return res, err
}

func (repo *forumRepository) GetVote(ctx context.Context, target forum.Target, id, userID string) (forum.VoteType, error) {
	_, votes, column, _, err := voteTables(target)
	if err != nil {
		return forum.NoVote, err
	}
	var vt string
	q := `SELECT vote_type FROM ` + votes + ` WHERE user_id = $1 AND ` + column + ` = $2`
	if err = repo.db.GetContext(ctx, &vt, q, userID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return forum.NoVote, nil
		}
		return forum.NoVote, errors.Wrap(err, "selecting vote")
	}
	return forum.VoteType(vt), nil
}

func (repo *forumRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
