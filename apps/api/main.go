package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	echoapi "github.com/etudier/etudier/apps/api/echo"
	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/flashcard"
	"github.com/etudier/etudier/core/forum"
	"github.com/etudier/etudier/core/generate"
	"github.com/etudier/etudier/core/module"
	"github.com/etudier/etudier/core/note"
	"github.com/etudier/etudier/core/quiz"
	"github.com/etudier/etudier/core/task"
	"github.com/etudier/etudier/core/user"
	emailsvc "github.com/etudier/etudier/services/email"
	genaisvc "github.com/etudier/etudier/services/genai"
	logsvc "github.com/etudier/etudier/services/logger"
	"github.com/etudier/etudier/services/objstore"
	"github.com/etudier/etudier/services/realtime"
	"github.com/etudier/etudier/storage/cache"
	"github.com/etudier/etudier/storage/database"
	sqlxrepos "github.com/etudier/etudier/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up loggers
	logger := logsvc.NewRollbarLogger(os.Stdout, "API", conf)
	dbLogger := logsvc.NewRollbarLogger(os.Stdout, "DB", conf)

	// set up DB
	db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up the change feed: local hub, shared between instances through Redis when configured
	hub := realtime.NewHub(logger)
	var (
		publisher   core.ChangePublisher = hub
		searchCache generate.SearchCache
	)
	if conf.Redis.URL != "" {
		opts, err := redis.ParseURL(conf.Redis.URL)
		if err != nil {
			logger.Fatal(fmt.Sprintf("parsing redis url: %v", err), err)
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()

		broker := realtime.NewRedisBroker(rdb, conf.Redis.ChangeChannel, hub, logger)
		go broker.Run(ctx)
		publisher = broker
		searchCache = cache.NewSearchCache(rdb, conf.Redis.SearchCacheTTL, logger)
	}

	objects, mediaDir, err := setUpObjectStore(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up object store: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(os.Stdout, conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var genSvc *generate.Service
	gemini, err := genaisvc.NewGemini(ctx, conf)
	switch {
	case err == nil:
		genSvc = generate.NewService(gemini, searchCache, logger, conf.Uploads.MaxPDFSize)
	case errors.Is(err, genaisvc.ErrNoAPIKey):
		logger.Warn("GENAI_API_KEY is not set: content generation is disabled")
	default:
		logger.Fatal(fmt.Sprintf("setting up genai: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("stream_subscribers", expvar.Func(func() interface{} { return hub.Len() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:         conf,
			Logger:       logger,
			RequestLog:   logger.Logrus(),
			Validate:     validate,
			Translator:   translator,
			UserSvc:      user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf),
			TaskSvc:      task.NewService(sqlxrepos.NewTaskRepository(db), publisher, logger),
			NoteSvc:      note.NewService(sqlxrepos.NewNoteRepository(db), publisher, logger),
			FlashcardSvc: flashcard.NewService(sqlxrepos.NewFlashcardRepository(db), publisher, logger),
			QuizSvc:      quiz.NewService(sqlxrepos.NewQuizRepository(db), publisher, logger),
			ModuleSvc:    module.NewService(sqlxrepos.NewModuleRepository(db), publisher, logger),
			ForumSvc:     forum.NewService(sqlxrepos.NewForumRepository(db), objects, publisher, logger),
			GenerateSvc:  genSvc,
			Hub:          hub,
			MediaDir:     mediaDir,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		cancel() // stop relaying changes

		// give outstanding requests a deadline for completion
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancelShutdown()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(shutdownCtx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// setUpObjectStore returns the store of uploaded images, and the directory to serve under /media for the fs driver.
func setUpObjectStore(ctx context.Context, conf *core.Config) (core.ObjectStore, string, error) {
	switch conf.Storage.Driver {
	case "azblob":
		store, err := objstore.NewAzureBlob(ctx, conf.Storage.AzureConnectionString, conf.Storage.Container)
		return store, "", err
	case "fs", "":
		store, err := objstore.NewFS(conf.Storage.Dir, conf.Storage.BaseURL)
		if err != nil {
			return nil, "", err
		}
		return store, store.Dir(), nil
	default:
		return nil, "", errors.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}
