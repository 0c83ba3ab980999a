package emailsvc

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etudier/etudier/core"
	testutil "github.com/etudier/etudier/tests"
)

func testConfig() *core.Config {
	return &core.Config{
		AppName:          "etudier",
		TestMode:         true,
		FrontendBaseURL:  "http://front.test",
		DefaultFromEmail: mail.Address{Name: "etudier", Address: "noreply@etudier.test"},
		SendgridAPIKey:   "sg-key",
	}
}

func resetMessage() *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: "jane_doe", Address: "jane@test.cd"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{"Username": "jane_doe", "UID": "uid", "Token": "tok"},
	}
}

func TestConsoleServiceMock(t *testing.T) {
	conf := testConfig()
	core.ParseEmailTemplates(conf, testutil.NopLogger{})
	svc := NewConsoleServiceMock(conf, testutil.NopLogger{})

	svc.SendMessages(resetMessage(), &core.EmailMessage{Subject: "nobody to send to", BodyStr: "hi"})

	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "http://front.test/password-reset/uid/tok")
	assert.Contains(t, sent[0].HTMLContent, "http://front.test/password-reset/uid/tok")
}

func TestConsoleService_send(t *testing.T) {
	conf := testConfig()
	var out strings.Builder
	svc := NewConsoleService(&out, conf, testutil.NopLogger{})

	msg := core.EmailMessage{
		To:          []mail.Address{{Address: "a@test.cd"}, {Address: "b@test.cd"}},
		Subject:     "Hello",
		TextContent: "plain body",
	}
	require.NoError(t, svc.send(msg))
	assert.Contains(t, out.String(), "Subject: [etudier] Hello")
	assert.Contains(t, out.String(), "To: <a@test.cd>, <b@test.cd>")
	assert.Contains(t, out.String(), "plain body")
	assert.NotContains(t, out.String(), "text/html")
}

func TestSendgridService_send(t *testing.T) {
	var gotAuth, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if strings.Contains(gotBody, "fail@test.cd") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	conf := testConfig()
	core.ParseEmailTemplates(conf, testutil.NopLogger{})
	svc := NewSendgridService(conf, testutil.NopLogger{})
	svc.host = srv.URL

	require.NoError(t, svc.sendMessage(resetMessage()))
	assert.Equal(t, "Bearer sg-key", gotAuth)
	assert.Contains(t, gotBody, `"subject":"[etudier] Password Reset"`)
	assert.Contains(t, gotBody, "jane@test.cd")

	failing := resetMessage()
	failing.To = []mail.Address{{Address: "fail@test.cd"}}
	assert.Error(t, svc.sendMessage(failing))
}
