package user_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
	"github.com/orgalumni/alumni/testutil"
)

func TestNewUser_Validate(t *testing.T) {
	s := testutil.NewServices(t)

	tests := []struct {
		name    string
		nu      user.NewUser
		wantTag string
	}{
		{name: "email required", nu: user.NewUser{Password: "a", PasswordConfirm: "a"}, wantTag: "required"},
		{name: "bad email", nu: user.NewUser{Email: "lol", Password: "a", PasswordConfirm: "a"}, wantTag: "email"},
		{name: "confirm mismatch", nu: user.NewUser{Email: "a@alumni.io", Password: "Sup3r-S3cret!", PasswordConfirm: "x"}, wantTag: "eqfield"},
		{name: "too short", nu: user.NewUser{Email: "a@alumni.io", Password: "Ab1!", PasswordConfirm: "Ab1!"}, wantTag: "pwdminlen"},
		{name: "whitespace", nu: user.NewUser{Email: "a@alumni.io", Password: "Ab1! abcdef", PasswordConfirm: "Ab1! abcdef"}, wantTag: "pwdnospace"},
		{name: "all numeric", nu: user.NewUser{Email: "a@alumni.io", Password: "1234567890", PasswordConfirm: "1234567890"}, wantTag: "pwdnotallnum"},
		{name: "not complex", nu: user.NewUser{Email: "a@alumni.io", Password: "abcdefgh1", PasswordConfirm: "abcdefgh1"}, wantTag: "pwdcplx"},
		{
			name:    "similar to name",
			nu:      user.NewUser{Name: "Margaret Hamilton", Email: "m@alumni.io", Password: "Margaret-Hamilton1", PasswordConfirm: "Margaret-Hamilton1"},
			wantTag: "pwdtoosim",
		},
		{name: "common", nu: user.NewUser{Email: "a@alumni.io", Password: "P@ssw0rd", PasswordConfirm: "P@ssw0rd"}, wantTag: "pwdnocommon"},
		{name: "bad employee id", nu: user.NewUser{Email: "a@alumni.io", EmployeeID: "a b", Password: testutil.StrongPassword, PasswordConfirm: testutil.StrongPassword}, wantTag: "identifier"},
		{name: "valid", nu: user.NewUser{Email: " A@Alumni.io ", Password: testutil.StrongPassword, PasswordConfirm: testutil.StrongPassword}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := tt.nu
			err := nu.Validate(s.Validate)
			if tt.wantTag == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@alumni.io", nu.Email)
				assert.Equal(t, "a", nu.Name)
				return
			}
			var verrs validator.ValidationErrors
			require.ErrorAs(t, err, &verrs)
			tags := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				tags = append(tags, fe.Tag())
			}
			assert.Contains(t, tags, tt.wantTag)
		})
	}
}

func TestService_RegisterAuthenticate(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	sub := s.Hub.Subscribe()

	nu := user.NewUser{Name: "Alice", Email: "Alice@Alumni.io", Password: testutil.StrongPassword, PasswordConfirm: testutil.StrongPassword}
	usr, err := user.ValidateAndRegister(ctx, s.Users, s.Validate, nu)
	require.NoError(t, err)
	assert.Equal(t, "alice@alumni.io", usr.Email)
	assert.False(t, usr.IsVerified)
	assert.False(t, usr.IsAdmin)
	assert.Equal(t, user.StatusPending, usr.Status())

	change := <-sub.C()
	assert.Equal(t, core.Change{Collection: core.CollectionUsers, Op: core.OpCreate, ID: usr.ID, At: change.At}, change)

	_, err = user.ValidateAndRegister(ctx, s.Users, s.Validate, nu)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, user.ErrEmailExists, verr.Err)

	_, err = s.Users.Authenticate(ctx, "alice@alumni.io", "wrong")
	assert.Equal(t, user.ErrInvalidCredentials, err)
	_, err = s.Users.Authenticate(ctx, "nobody@alumni.io", testutil.StrongPassword)
	assert.Equal(t, user.ErrInvalidCredentials, err)

	// pending accounts may log in, the API restricts what they reach
	got, err := s.Users.Authenticate(ctx, " ALICE@alumni.io", testutil.StrongPassword)
	require.NoError(t, err)
	assert.False(t, got.LastLogin.IsZero())

	_, err = s.Users.SetBlocked(ctx, usr.ID, true)
	require.NoError(t, err)
	_, err = s.Users.Authenticate(ctx, usr.Email, testutil.StrongPassword)
	assert.Equal(t, user.ErrAccountBlocked, err)
}

func TestService_Query(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	alice := testutil.CreateMember(t, s.UserRepo, "Alice", "alice@alumni.io")
	bob := testutil.CreateUser(t, s.UserRepo, "Bob", "bob@corp.io")
	carol := testutil.CreateUser(t, s.UserRepo, "Carol", "carol@alumni.io", testutil.UserOpts{Verified: true, Blocked: true})

	byName := []core.DBOrdering{{Field: "display_name", Ascending: true}}
	tests := []struct {
		name   string
		filter *user.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{alice.ID, bob.ID, carol.ID}},
		{name: "pending", filter: &user.QueryFilter{Status: "Pending"}, want: []string{bob.ID}},
		{name: "active", filter: &user.QueryFilter{Status: user.StatusActive}, want: []string{alice.ID}},
		{name: "blocked", filter: &user.QueryFilter{Status: user.StatusBlocked}, want: []string{carol.ID}},
		{name: "search", filter: &user.QueryFilter{Search: " ALUMNI.io "}, want: []string{alice.ID, carol.ID}},
		{name: "members", filter: user.Members("a"), want: []string{alice.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := s.Users.Query(ctx, tt.filter, byName)
			require.NoError(t, err)
			ids := make([]string, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.want, ids)

			count, err := s.Users.Count(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), count)
		})
	}

	found, err := s.Users.QueryByIDs(ctx, alice.ID, "", alice.ID, "b5b3c2a4-4b5f-4bb8-9b4b-0e2c7e1f0000")
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, "Alice", found[alice.ID].Name)

	_, err = s.Users.GetByID(ctx, "lol")
	assert.Equal(t, user.ErrNotFound, err)
	_, err = s.Users.GetByEmail(ctx, "  ")
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_Update(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	alice := testutil.CreateMember(t, s.UserRepo, "Alice", "alice@alumni.io")
	testutil.CreateMember(t, s.UserRepo, "Bob", "bob@alumni.io")

	alice.Email = "BOB@alumni.io"
	_, err := s.Users.Update(ctx, alice)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Fields[0].Field)

	alice.Email = "alice@alumni.io"
	alice.Skills = nil
	alice.Bio = "Hi"
	got, err := s.Users.Update(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "Hi", got.Bio)
	assert.NotNil(t, got.Skills)
}

func TestService_PasswordReset(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	usr := testutil.CreateMember(t, s.UserRepo, "Alice", "alice@alumni.io")
	blocked := testutil.CreateUser(t, s.UserRepo, "Blocked", "blocked@alumni.io", testutil.UserOpts{Blocked: true})

	assert.Equal(t, user.ErrNotFound, s.Users.RequestPasswordReset(ctx, "nobody@alumni.io"))
	assert.Equal(t, user.ErrNotFound, s.Users.RequestPasswordReset(ctx, blocked.Email))
	assert.Empty(t, s.Mail.SentMessages())

	require.NoError(t, s.Users.RequestPasswordReset(ctx, usr.Email))
	sent := s.Mail.SentMessages()
	require.Len(t, sent, 1)
	link := sent[0].TemplateData.(map[string]string)["URL"]
	parts := strings.Split(strings.TrimPrefix(link, s.Conf.FrontendBaseURL+"/password-reset/"), "/")
	require.Len(t, parts, 2)
	assert.Equal(t, user.EncodeUID(usr), parts[0])
	assert.Contains(t, sent[0].TextContent, link)

	newPwd := "An0ther-S3cret?"
	invalid := []user.ResetUserPassword{
		{UID: "%%%", Token: parts[1], Password: newPwd, PasswordConfirm: newPwd},
		{UID: user.EncodeUID(blocked), Token: parts[1], Password: newPwd, PasswordConfirm: newPwd},
		{UID: parts[0], Token: "lol-lol", Password: newPwd, PasswordConfirm: newPwd},
	}
	for _, data := range invalid {
		err := s.Users.ResetPassword(ctx, data)
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, user.ErrResetLinkInvalid, verr.Err)
	}

	t.Run("similar to the user", func(t *testing.T) {
		pwd := "Alice.alumni1"
		err := s.Users.ResetPassword(ctx, user.ResetUserPassword{UID: parts[0], Token: parts[1], Password: pwd, PasswordConfirm: pwd})
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Len(t, verr.Fields, 1)
		assert.Equal(t, core.FieldError{Field: "password", Error: "password cannot be similar to user attributes"}, verr.Fields[0])
	})

	require.NoError(t, s.Users.ResetPassword(ctx, user.ResetUserPassword{
		UID: parts[0], Token: parts[1], Password: newPwd, PasswordConfirm: newPwd,
	}))
	_, err := s.Users.Authenticate(ctx, usr.Email, newPwd)
	assert.NoError(t, err)

	// the token is bound to the previous password hash
	err = s.Users.ResetPassword(ctx, user.ResetUserPassword{
		UID: parts[0], Token: parts[1], Password: testutil.StrongPassword, PasswordConfirm: testutil.StrongPassword,
	})
	assert.Error(t, err)
}
