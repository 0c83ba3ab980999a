package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

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
	"github.com/etudier/etudier/services/realtime"
	inmemdb "github.com/etudier/etudier/storage/database/inmem"
	testutil "github.com/etudier/etudier/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	conf    *core.Config
	db      *inmemdb.DB
	usrRepo user.Repository
	mails   *testutil.MailRecorder
	objects *testutil.Objects
	hub     *realtime.Hub
	gen     *fakeGenerator
}

func testConfig() *core.Config {
	conf := &core.Config{
		Env:             "TEST",
		Debug:           true,
		TestMode:        true,
		AppName:         "etudier",
		SecretKey:       "secret",
		FrontendBaseURL: "http://localhost:3000",
	}
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 24 * time.Hour
	conf.Server.PasswordResetTimeoutDelta = 3 * 24 * time.Hour
	conf.Server.CORSOrigins = []string{"*"}
	conf.Server.BodyLimit = "4M"
	conf.Uploads.MaxPDFSize = 1 << 20
	conf.Uploads.MaxImageSize = 1 << 20
	conf.Uploads.MaxImages = 2
	return conf
}

// setup builds the API on in-memory repositories; opts may tweak the dependencies before the server is built.
func setup(t *testing.T, opts ...func(*echoapi.ServerDeps)) *testApp {
	t.Helper()

	conf := testConfig()
	logger := testutil.NopLogger{}
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)

	// set up services
	app := &testApp{
		conf:    conf,
		db:      db,
		usrRepo: usrRepo,
		mails:   &testutil.MailRecorder{},
		objects: &testutil.Objects{},
		hub:     realtime.NewHub(logger),
		gen:     &fakeGenerator{},
	}
	deps := echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Validate:     validate,
		Translator:   translator,
		UserSvc:      user.NewService(usrRepo, app.mails, conf),
		TaskSvc:      task.NewService(inmemdb.NewTaskRepository(db), app.hub, logger),
		NoteSvc:      note.NewService(inmemdb.NewNoteRepository(db), app.hub, logger),
		FlashcardSvc: flashcard.NewService(inmemdb.NewFlashcardRepository(db), app.hub, logger),
		QuizSvc:      quiz.NewService(inmemdb.NewQuizRepository(db), app.hub, logger),
		ModuleSvc:    module.NewService(inmemdb.NewModuleRepository(db), app.hub, logger),
		ForumSvc:     forum.NewService(inmemdb.NewForumRepository(db), app.objects, app.hub, logger),
		GenerateSvc:  generate.NewService(app.gen, nil, logger, conf.Uploads.MaxPDFSize),
		Hub:          app.hub,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	// set up server
	app.Server = echoapi.NewServer(deps)
	t.Cleanup(app.hub.Close)
	return app
}

// fakeGenerator answers every prompt with text.
type fakeGenerator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, _ ...core.Part) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.text, g.err
}

func (g *fakeGenerator) answer(text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.text = text
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(app.conf, usr)
	token, err := echoapi.GenerateToken(app.conf, claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func (app *testApp) createUser(t *testing.T, uname, email string, admin bool) user.User {
	var roles []string
	if admin {
		roles = []string{user.RoleAdmin}
	}
	return testutil.CreateUser(t, app.usrRepo, uname, email, "Pa55w0rd!", roles, true)
}

// do serves the request and returns the recorder.
func (app *testApp) do(method, path, token string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body...)
	app.ServeHTTP(rec, req)
	return rec
}

func (app *testApp) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

// checkCodeAndData checks the status code and, when tt.wantData is set, the JSON body.
func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
