// Package inmemdb implements every repository in memory. It backs the HTTP and CLI tests.
package inmemdb

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/forum"
	"github.com/etudier/etudier/core/module"
	"github.com/etudier/etudier/core/note"
	"github.com/etudier/etudier/core/quiz"
	"github.com/etudier/etudier/core/task"
	"github.com/etudier/etudier/core/user"
)

type (
	// DB holds every table behind a single lock so multi-table writes (votes, reports) are atomic.
	DB struct {
		mutex sync.RWMutex

		user       map[string]*user.User
		task       map[string]*task.Task
		note       map[string]*note.Note
		flashcard  map[string]*flashcard.Deck
		quiz       map[string]*quiz.Quiz
		module     map[string]*module.Module
		post       map[string]*forum.Post
		postAnswer map[string]*forum.Answer
		postVote   map[voteKey]forum.VoteType
		answerVote map[voteKey]forum.VoteType
		postReport map[voteKey]struct{}
	}

	// voteKey is (user, target).
	voteKey struct {
		userID   string
		targetID string
	}
)

func Open() *DB {
	return &DB{
		user:       make(map[string]*user.User),
		task:       make(map[string]*task.Task),
		note:       make(map[string]*note.Note),
		flashcard:  make(map[string]*flashcard.Deck),
		quiz:       make(map[string]*quiz.Quiz),
		module:     make(map[string]*module.Module),
		post:       make(map[string]*forum.Post),
		postAnswer: make(map[string]*forum.Answer),
		postVote:   make(map[voteKey]forum.VoteType),
		answerVote: make(map[voteKey]forum.VoteType),
		postReport: make(map[voteKey]struct{}),
	}
}

// Truncate empties every table.
func (db *DB) Truncate() {
	fresh := Open()
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.user = fresh.user
	db.task = fresh.task
	db.note = fresh.note
	db.flashcard = fresh.flashcard
	db.quiz = fresh.quiz
	db.module = fresh.module
	db.post = fresh.post
	db.postAnswer = fresh.postAnswer
	db.postVote = fresh.postVote
	db.answerVote = fresh.answerVote
	db.postReport = fresh.postReport
}

// username must be called with the lock held.
func (db *DB) username(userID string) string {
	if usr, ok := db.user[userID]; ok {
		return usr.Username
	}
	return ""
}

func newID() string { return uuid.NewString() }

func cloneStrings(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return append([]string{}, ss...)
}

// sortBy orders items following `orderings`; the comparison of a field is done by `cmp`
// which returns <0, 0 or >0.
func sortBy[T any](items []T, orderings []core.DBOrdering, cmp func(a, b T, field string) int) {
	sort.SliceStable(items, func(i, j int) bool {
		for _, ord := range orderings {
			c := cmp(items[i], items[j], ord.Field)
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
}
