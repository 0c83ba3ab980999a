// Package testutil holds fixtures shared by the test suites.
package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr := user.User{
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// ChangeRecorder is a core.ChangePublisher keeping every published change.
type ChangeRecorder struct {
	mu      sync.Mutex
	changes []core.Change
	Err     error // returned by Publish when set
}

func (r *ChangeRecorder) Publish(_ context.Context, change core.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return r.Err
}

func (r *ChangeRecorder) Changes() []core.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.Change(nil), r.changes...)
}

// Last returns the last published change, or the zero Change.
func (r *ChangeRecorder) Last() core.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return core.Change{}
	}
	return r.changes[len(r.changes)-1]
}

func (r *ChangeRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = nil
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// MailRecorder is a core.EmailService keeping every sent message.
type MailRecorder struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *MailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, messages...)
}

func (m *MailRecorder) Messages() []*core.EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*core.EmailMessage(nil), m.messages...)
}

// Objects is an in-memory core.ObjectStore.
type Objects struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Err     error // returned by Put when set
}

func (o *Objects) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return "", o.Err
	}
	if o.Objects == nil {
		o.Objects = make(map[string][]byte)
	}
	o.Objects[key] = data
	return "http://objects.test/" + key, nil
}

func (o *Objects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.Objects, key)
	return nil
}
