package task

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/etudier/etudier/core"
)

// Table is the name tasks are published under on the change feed.
const Table = "task"

var (
	// errors
	ErrNotFound = core.NewNotFoundError("task")

	// OrderingFields are the fields a task list may be ordered by.
	OrderingFields = []string{"deadline", "created_at", "title"}
	// DefaultOrdering puts the closest deadlines first.
	DefaultOrdering = []core.DBOrdering{{Field: "deadline", Ascending: true}, {Field: "created_at", Ascending: false}}
)

type (
	// Repository stores tasks; every method is scoped to the owner.
	Repository interface {
		ListTasks(ctx context.Context, userID string, filter ListFilter) ([]Task, error)
		GetTask(ctx context.Context, userID, id string) (Task, error)
		CreateTask(ctx context.Context, t Task) (Task, error)
		UpdateTask(ctx context.Context, t Task) (Task, error)
		DeleteTask(ctx context.Context, userID, id string) error
	}

	Service struct {
		repo   Repository
		pub    core.ChangePublisher
		logger core.Logger
	}
)

func NewService(repo Repository, pub core.ChangePublisher, logger core.Logger) *Service {
	return &Service{repo: repo, pub: pub, logger: logger}
}

func (svc *Service) List(ctx context.Context, userID string, filter ListFilter) ([]Task, error) {
	if len(filter.Ordering) == 0 {
		filter.Ordering = DefaultOrdering
	}
	tasks, err := svc.repo.ListTasks(ctx, userID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "listing tasks")
	}
	return tasks, nil
}

func (svc *Service) Get(ctx context.Context, userID, id string) (Task, error) {
	return svc.repo.GetTask(ctx, userID, id)
}

func (svc *Service) Create(ctx context.Context, userID string, nt NewTask) (Task, error) {
	now := time.Now().UTC()
	t := Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       nt.Title,
		Description: nt.Description,
		Deadline:    utc(nt.Deadline),
		Labels:      nt.Labels,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}

	t, err := svc.repo.CreateTask(ctx, t)
	if err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}
	svc.publish(ctx, core.ChangeInsert, t)
	return t, nil
}

func (svc *Service) Update(ctx context.Context, t Task, ut UpdateTask) (Task, error) {
	if ut.Title != nil {
		t.Title = *ut.Title
	}
	if ut.Description != nil {
		t.Description = *ut.Description
	}
	if ut.ClearDeadline {
		t.Deadline = nil
	} else if ut.Deadline != nil {
		t.Deadline = utc(ut.Deadline)
	}
	if ut.Labels != nil {
		t.Labels = ut.Labels
	}
	if ut.Completed != nil {
		t.Completed = *ut.Completed
	}
	return svc.save(ctx, t)
}

// Toggle flips the completion state of the task.
func (svc *Service) Toggle(ctx context.Context, t Task) (Task, error) {
	t.Completed = !t.Completed
	return svc.save(ctx, t)
}

func (svc *Service) Delete(ctx context.Context, t Task) error {
	if err := svc.repo.DeleteTask(ctx, t.UserID, t.ID); err != nil {
		return errors.Wrap(err, "deleting task")
	}
	svc.publish(ctx, core.ChangeDelete, Task{ID: t.ID, UserID: t.UserID})
	return nil
}

func (svc *Service) save(ctx context.Context, t Task) (Task, error) {
	t.UpdatedAt = time.Now().UTC()
	t, err := svc.repo.UpdateTask(ctx, t)
	if err != nil {
		return Task{}, errors.Wrap(err, "updating task")
	}
	svc.publish(ctx, core.ChangeUpdate, t)
	return t, nil
}

func (svc *Service) publish(ctx context.Context, typ core.ChangeType, t Task) {
	var record interface{}
	if typ != core.ChangeDelete {
		record = t
	}
	core.PublishChange(ctx, svc.pub, svc.logger, core.NewChange(Table, typ, t.ID, t.UserID, false /* public */, record))
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
