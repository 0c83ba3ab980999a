package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core/task"
)

const taskColumns = `id, user_id, title, description, deadline, labels, completed, created_at, updated_at`

type taskRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Deadline    sql.NullTime   `db:"deadline"`
	Labels      pq.StringArray `db:"labels"`
	Completed   bool           `db:"completed"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func newTaskRow(t task.Task) taskRow {
	row := taskRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Labels:      stringArray(t.Labels),
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Deadline != nil {
		row.Deadline = sql.NullTime{Time: *t.Deadline, Valid: true}
	}
	return row
}

func (r taskRow) task() task.Task {
	t := task.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Labels:      []string(r.Labels),
		Completed:   r.Completed,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.Deadline.Valid {
		d := r.Deadline.Time.UTC()
		t.Deadline = &d
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
	return t
}

type taskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) ListTasks(ctx context.Context, userID string, filter task.ListFilter) ([]task.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM task WHERE user_id = $1`
	args := []interface{}{userID}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		q += ` AND completed = $` + strconv.Itoa(len(args))
	}
	if filter.OverdueAt != nil {
		args = append(args, filter.OverdueAt.UTC())
		q += ` AND NOT completed AND deadline < $` + strconv.Itoa(len(args))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		n := strconv.Itoa(len(args))
		q += ` AND (title ILIKE $` + n + ` OR description ILIKE $` + n + `)`
	}
	q += orderBy(filter.Ordering, "deadline")

	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	tasks := make([]task.Task, len(rows))
	for i, r := range rows {
		tasks[i] = r.task()
	}
	return tasks, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, userID, id string) (task.Task, error) {
	var row taskRow
	q := `SELECT ` + taskColumns + ` FROM task WHERE id = $1 AND user_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, errors.Wrap(err, "selecting task")
	}
	return row.task(), nil
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	q := `INSERT INTO task (` + taskColumns + `)
		VALUES (:id, :user_id, :title, :description, :deadline, :labels, :completed, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, newTaskRow(t)); err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo *taskRepository) UpdateTask(ctx context.Context, t task.Task) (task.Task, error) {
	var row taskRow
	q := `UPDATE task SET title = :title, description = :description, deadline = :deadline, labels = :labels,
		completed = :completed, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id RETURNING ` + taskColumns
	stmt, err := repo.db.PrepareNamedContext(ctx, q)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "preparing task update")
	}
	defer func() { _ = stmt.Close() }()

	if err = stmt.GetContext(ctx, &row, newTaskRow(t)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.Task{}, task.ErrNotFound
		}
		return task.Task{}, errors.Wrap(err, "updating task")
	}
	return row.task(), nil
}

func (repo *taskRepository) DeleteTask(ctx context.Context, userID, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM task WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return errors.Wrap(err, "deleting task")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return task.ErrNotFound
	}
	return nil
}
