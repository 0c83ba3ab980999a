package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/forum"
	"github.com/etudier/etudier/core/generate"
	"github.com/etudier/etudier/core/module"
	"github.com/etudier/etudier/core/note"
	"github.com/etudier/etudier/core/quiz"
	"github.com/etudier/etudier/core/task"
	"github.com/etudier/etudier/core/user"
	"github.com/etudier/etudier/services/realtime"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		RequestLog *logrus.Entry // request logs are disabled when nil
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc      *user.Service
		TaskSvc      *task.Service
		NoteSvc      *note.Service
		FlashcardSvc *flashcard.Service
		QuizSvc      *quiz.Service
		ModuleSvc    *module.Service
		ForumSvc     *forum.Service
		GenerateSvc  *generate.Service // nil when no model is configured
		Hub          *realtime.Hub

		MediaDir string // served under /media when set
	}

	Server struct {
		app      *echo.Echo
		deps     ServerDeps
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		app:      echo.New(),
		deps:     deps,
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.JSONSerializer = sonicJSONSerializer{}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.deps.RequestLog != nil {
		s.app.Use(requestLogger(s.deps.RequestLog))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: conf.Server.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	if conf.Server.BodyLimit != "" {
		s.app.Use(middleware.BodyLimit(conf.Server.BodyLimit))
	}

	s.app.GET("/", s.home)
	if s.deps.MediaDir != "" {
		s.app.Static("/media", s.deps.MediaDir)
	}

	v1 := s.app.Group("/v1")
	jwt := jwtMiddleware(conf, false /* allowQuery */)
	ctxUsr := contextUserMiddleware(s.deps.UserSvc)

	registerUserAPI(v1, jwt, ctxUsr, s.deps.UserSvc, s.deps.Validate, conf)
	registerTaskAPI(v1, jwt, s.deps.TaskSvc, s.deps.Validate)
	registerNoteAPI(v1, jwt, s.deps.NoteSvc, s.deps.Validate)
	registerFlashcardAPI(v1, jwt, s.deps.FlashcardSvc, s.deps.Validate)
	registerQuizAPI(v1, jwt, s.deps.QuizSvc, s.deps.Validate)
	registerModuleAPI(v1, jwt, s.deps.ModuleSvc, s.deps.Validate)
	registerForumAPI(v1, jwt, ctxUsr, s.deps.ForumSvc, s.deps.Validate, conf)
	registerGenerateAPI(v1, jwt, s.deps.GenerateSvc, s.deps.Validate, conf)
	registerStreamAPI(v1, jwtMiddleware(conf, true /* allowQuery */), s.deps.Hub)
}

// Start listens on the configured address; failures are sent on Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors delivers the error that stopped the server.
func (s *Server) Errors() <-chan error { return s.errors }

// ShutdownSignal delivers SIGINT, SIGTERM or a shutdown requested by the error handler.
func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops the server gracefully, waiting for the open requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	if s.deps.Hub != nil {
		s.deps.Hub.Close() // ends the open change streams
	}
	return errors.Wrap(s.app.Shutdown(ctx), "shutting down")
}

// Close stops the server immediately.
func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
