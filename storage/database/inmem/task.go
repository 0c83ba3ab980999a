package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/etudier/etudier/core/task"
)

type taskRepository struct {
	db *DB
}

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) ListTasks(_ context.Context, userID string, filter task.ListFilter) ([]task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tasks := make([]task.Task, 0)
	for _, t := range repo.db.task {
		if t.UserID == userID && filter.Matches(*t) {
			tasks = append(tasks, *t)
		}
	}

	// deadlines sort NULLS LAST whatever the direction
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		for _, ord := range filter.Ordering {
			var c int
			switch ord.Field {
			case "deadline":
				switch {
				case a.Deadline == nil && b.Deadline == nil:
					c = 0
				case a.Deadline == nil:
					return false
				case b.Deadline == nil:
					return true
				default:
					c = a.Deadline.Compare(*b.Deadline)
				}
			case "created_at":
				c = a.CreatedAt.Compare(b.CreatedAt)
			case "title":
				c = strings.Compare(a.Title, b.Title)
			}
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return tasks, nil
}

func (repo *taskRepository) GetTask(_ context.Context, userID, id string) (task.Task, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.task[id]; ok && t.UserID == userID {
		return *t, nil
	}
	return task.Task{}, task.ErrNotFound
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	t.Labels = cloneStrings(t.Labels)
	repo.db.task[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) UpdateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.task[t.ID]
	if !ok || orig.UserID != t.UserID {
		return task.Task{}, task.ErrNotFound
	}
	t.CreatedAt = orig.CreatedAt
	t.Labels = cloneStrings(t.Labels)
	repo.db.task[t.ID] = &t
	return t, nil
}

func (repo *taskRepository) DeleteTask(_ context.Context, userID, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if t, ok := repo.db.task[id]; !ok || t.UserID != userID {
		return task.ErrNotFound
	}
	delete(repo.db.task, id)
	return nil
}
