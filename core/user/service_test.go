package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etudier/etudier/core"
	"github.com/etudier/etudier/core/user"
	inmemdb "github.com/etudier/etudier/storage/database/inmem"
	testutil "github.com/etudier/etudier/tests"
)

func setup(t *testing.T) (*user.Service, user.Repository, *testutil.MailRecorder) {
	t.Helper()
	conf := &core.Config{SecretKey: "secret"}
	conf.Server.PasswordResetTimeoutDelta = 3 * 24 * time.Hour
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	mails := &testutil.MailRecorder{}
	return user.NewService(repo, mails, conf), repo, mails
}

func newValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

func fieldErrors(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		tags := make([]string, len(vErrs))
		for i, fe := range vErrs {
			tags[i] = fe.Field() + ":" + fe.Tag()
		}
		return tags
	}
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "unexpected error %v", err)
	fields := make([]string, len(vErr.Fields))
	for i, fe := range vErr.Fields {
		fields[i] = fe.Field
	}
	return fields
}

func TestNewUser_Validate(t *testing.T) {
	svc, repo, _ := setup(t)
	testutil.CreateUser(t, repo, "existing", "existing@test.cd", "", nil, true)
	validate := newValidator()

	tests := []struct {
		name string
		nu   user.NewUser
		want []string
	}{
		{
			name: "valid",
			nu:   user.NewUser{Username: " NewStudent ", Email: "NEW@test.cd ", Password: "s3cure-Pa55", PasswordConfirm: "s3cure-Pa55"},
		},
		{
			name: "short username",
			nu:   user.NewUser{Username: "short", Email: "new@test.cd", Password: "s3cure-Pa55", PasswordConfirm: "s3cure-Pa55"},
			want: []string{"username:min"},
		},
		{
			name: "bad characters",
			nu:   user.NewUser{Username: "new-student", Email: "new@test.cd", Password: "s3cure-Pa55", PasswordConfirm: "s3cure-Pa55"},
			want: []string{"username:alphanum_"},
		},
		{
			name: "password mismatch",
			nu:   user.NewUser{Username: "newstudent", Email: "new@test.cd", Password: "s3cure-Pa55", PasswordConfirm: "other-Pa55"},
			want: []string{"password_confirm:eqfield"},
		},
		{
			name: "short password",
			nu:   user.NewUser{Username: "newstudent", Email: "new@test.cd", Password: "abc1", PasswordConfirm: "abc1"},
			want: []string{"password:pwdminlen"},
		},
		{
			name: "numeric password",
			nu:   user.NewUser{Username: "newstudent", Email: "new@test.cd", Password: "1234567890", PasswordConfirm: "1234567890"},
			want: []string{"password:pwdnotallnum"},
		},
		{
			name: "password with space",
			nu:   user.NewUser{Username: "newstudent", Email: "new@test.cd", Password: "s3cure Pa55", PasswordConfirm: "s3cure Pa55"},
			want: []string{"password:pwdnospace"},
		},
		{
			name: "password like username",
			nu:   user.NewUser{Username: "newstudent", Email: "new@test.cd", Password: "NewStudent1", PasswordConfirm: "NewStudent1"},
			want: []string{"password:pwdtoosim"},
		},
		{
			name: "username taken",
			nu:   user.NewUser{Username: "Existing", Email: "new@test.cd", Password: "s3cure-Pa55", PasswordConfirm: "s3cure-Pa55"},
			want: []string{"username"},
		},
		{
			name: "email taken",
			nu:   user.NewUser{Username: "newstudent", Email: "existing@test.cd", Password: "s3cure-Pa55", PasswordConfirm: "s3cure-Pa55"},
			want: []string{"email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.nu.Validate(validate, svc)
			assert.Equal(t, tt.want, fieldErrors(t, err))
		})
	}
}

func TestService_RegisterAuthenticate(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Register(ctx, user.NewUser{Username: "newstudent", Email: "new@test.cd", Password: "s3cure-Pa55"})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.LastLogin.IsZero())

	inactive := testutil.CreateUser(t, repo, "inactive", "inactive@test.cd", "s3cure-Pa55", nil, false)

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{name: "by username", uname: "newstudent", pwd: "s3cure-Pa55"},
		{name: "by email", uname: " NEW@test.cd", pwd: "s3cure-Pa55"},
		{name: "wrong password", uname: "newstudent", pwd: "nope", wantErr: user.ErrInvalidCredentials},
		{name: "unknown", uname: "ghost", pwd: "s3cure-Pa55", wantErr: user.ErrInvalidCredentials},
		{name: "inactive", uname: inactive.Username, pwd: "s3cure-Pa55", wantErr: user.ErrAccountDeactivated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Authenticate(ctx, tt.uname, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.False(t, got.LastLogin.IsZero())
		})
	}
}

func TestService_UpdateProfile(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "student1", "s1@test.cd", "", nil, true)
	testutil.CreateUser(t, repo, "student2", "s2@test.cd", "", nil, true)
	validate := newValidator()

	up := user.UpdateProfile{Username: "student2"}
	assert.Equal(t, []string{"username"}, fieldErrors(t, up.Validate(usr, validate, svc)))

	bio := "  maths & physics  "
	up = user.UpdateProfile{Bio: &bio}
	require.NoError(t, up.Validate(usr, validate, svc))
	assert.Equal(t, "student1", up.Username, "an empty username keeps the current one")

	updated, err := svc.UpdateProfile(ctx, usr, up)
	require.NoError(t, err)
	assert.Equal(t, "maths & physics", updated.Bio)

	profiles, err := svc.Profiles(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Profile{ID: usr.ID, Username: "student1"}, profiles[usr.ID])
}

func TestService_ChangePassword(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "student1", "s1@test.cd", "old-Pa55word", nil, true)

	_, err := svc.ChangePassword(ctx, usr, user.ChangePassword{OldPassword: "wrong", Password: "new-Pa55word"})
	assert.Equal(t, []string{"old_password"}, fieldErrors(t, err))

	usr, err = svc.ChangePassword(ctx, usr, user.ChangePassword{OldPassword: "old-Pa55word", Password: "new-Pa55word"})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("new-Pa55word"))
}

func TestService_PasswordReset(t *testing.T) {
	svc, repo, mails := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, repo, "student1", "s1@test.cd", "old-Pa55word", nil, true)

	err := svc.RequestPasswordReset(ctx, "ghost@test.cd")
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, svc.RequestPasswordReset(ctx, "S1@test.cd"))
	msgs := mails.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "s1@test.cd", msgs[0].To[0].Address)
	assert.Equal(t, "password_reset", msgs[0].TemplateName)
	data := msgs[0].TemplateData.(map[string]interface{})

	rp := user.ResetUserPassword{UID: data["UID"].(string), Token: "bad-token", Password: "new-Pa55word"}
	var vErr *core.ValidationError
	assert.True(t, errors.As(svc.ResetPassword(ctx, rp), &vErr))

	rp.UID = user.EncodeUID(user.User{ID: "unknown"})
	assert.True(t, errors.As(svc.ResetPassword(ctx, rp), &vErr))

	rp.UID = data["UID"].(string)
	rp.Token = data["Token"].(string)
	require.NoError(t, svc.ResetPassword(ctx, rp))

	got, err := svc.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword("new-Pa55word"))

	// the token is bound to the old password hash
	assert.True(t, errors.As(svc.ResetPassword(ctx, rp), &vErr))

	inactive := testutil.CreateUser(t, repo, "inactive", "inactive@test.cd", "", nil, false)
	require.NoError(t, svc.RequestPasswordReset(ctx, inactive.Email))
	assert.Len(t, mails.Messages(), 1, "inactive users get no mail")
}

func TestService_Save(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	usr, err := svc.Save(ctx, "AdminUser", "admin@test.cd", "adm1n-Pa55", true)
	require.NoError(t, err)
	assert.True(t, usr.IsAdmin())
	assert.Equal(t, "adminuser", usr.Username)

	again, err := svc.Save(ctx, "adminuser", "", "other-Pa55", true)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, again.ID)
	assert.Equal(t, []string{user.RoleAdmin}, again.Roles)

	require.NoError(t, svc.SetPassword(ctx, "admin@test.cd", "third-Pa55"))
	_, err = svc.Authenticate(ctx, "adminuser", "third-Pa55")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, usr.ID))
	_, err = svc.GetByID(ctx, usr.ID)
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}
