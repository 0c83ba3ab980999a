package logsvc

import (
	"io"
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/user"
)

// RollbarLogger writes structured entries through logrus and reports them to Rollbar when enabled.
type RollbarLogger struct {
	entry *logrus.Entry
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger returns a logger tagging every entry with component (eg. API, DB, ADMIN).
func NewRollbarLogger(out io.Writer, component string, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug)

	log := logrus.New()
	log.SetOutput(out)
	if conf.Debug {
		log.SetLevel(logrus.DebugLevel)
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	return &RollbarLogger{entry: log.WithField("component", component)}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// Logrus exposes the underlying logger, for the HTTP request logs.
func (l RollbarLogger) Logrus() *logrus.Entry { return l.entry }

// expected fmt: msg | error, map[string]interface{}, user.User
func (l RollbarLogger) prepare(msg string, args []interface{}) (*logrus.Entry, []interface{}) {
	var usrSet bool
	entry := l.entry
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)

	for i, arg := range args {
		switch a := arg.(type) {
		case user.User:
			// only set one User
			if !usrSet {
				rollbar.SetPerson(a.ID, a.Username, a.Email)
				entry = entry.WithField("user_id", a.ID)
				usrSet = true
			}
		case error:
			entry = entry.WithError(a)
			rbArgs = append(rbArgs, a)
		case map[string]interface{}:
			entry = entry.WithFields(a)
			rbArgs = append(rbArgs, a)
		default:
			entry = entry.WithField("arg"+strconv.Itoa(i), a)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return entry, rbArgs
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	entry.Debug(msg)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	entry.Info(msg)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	entry.Warn(msg)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	entry.Error(msg)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	entry, rbArgs := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	entry.Fatal(msg)
}

// Close flushes the pending Rollbar reports.
func (l RollbarLogger) Close() {
	rollbar.Close()
}
