package echoapi

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgalumni/alumni/core/user"
	"github.com/orgalumni/alumni/testutil"
)

func Test_accountApi_register(t *testing.T) {
	srv, s := setup(t)
	testutil.CreateMember(t, s.UserRepo, "Taken", "taken@alumni.io")

	body := func(email, pwd, confirm string) []byte {
		return marchallObj(t, user.NewUser{Email: email, Password: pwd, PasswordConfirm: confirm})
	}

	tests := []httpTest{
		{
			name: "email required", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("", testutil.StrongPassword, testutil.StrongPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "password mismatch", method: http.MethodPost, path: "/v1/auth/register",
			body: body("new@alumni.io", testutil.StrongPassword, "Other-Pa55!"), wantCode: http.StatusBadRequest,
		},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/auth/register",
			body: body("new@alumni.io", "12345678", "12345678"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password cannot be entirely numeric"}),
		},
		{
			name: "email taken", method: http.MethodPost, path: "/v1/auth/register",
			body:     body("TAKEN@alumni.io", testutil.StrongPassword, testutil.StrongPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		},
	}
	runHTTPTests(t, srv, tests)

	t.Run("registered", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/v1/auth/register", "",
			body(" Grace@Alumni.io ", testutil.StrongPassword, testutil.StrongPassword))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		decode(t, rec, &usr)
		assert.NotEmpty(t, usr.ID)
		assert.Equal(t, "grace@alumni.io", usr.Email)
		assert.Equal(t, "grace", usr.Name)
		assert.False(t, usr.IsVerified)
		assert.False(t, usr.IsAdmin)
		assert.NotContains(t, rec.Body.String(), "password")
	})
}

func Test_accountApi_login(t *testing.T) {
	srv, s := setup(t)
	member := testutil.CreateMember(t, s.UserRepo, "Ada", "ada@alumni.io")
	testutil.CreateUser(t, s.UserRepo, "Bad", "bad@alumni.io", testutil.UserOpts{
		Password: testutil.StrongPassword, Verified: true, Blocked: true,
	})

	login := func(email, pwd string) []byte {
		return marchallObj(t, LoginRequest{Email: email, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "fields required", method: http.MethodPost, path: "/v1/auth/login", body: login("", ""),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: "/v1/auth/login", body: login("nobody@alumni.io", "x"),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login", body: login("ada@alumni.io", "wrong"),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "blocked", method: http.MethodPost, path: "/v1/auth/login", body: login("bad@alumni.io", testutil.StrongPassword),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account blocked"}),
		},
	}
	runHTTPTests(t, srv, tests)

	t.Run("success", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/v1/auth/login", "", login(" ADA@alumni.io", testutil.StrongPassword))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, member.ID, resp.User.ID)
		assert.False(t, resp.User.LastLogin.IsZero())

		rec = do(srv, http.MethodGet, "/v1/auth/me", resp.Token)
		require.Equal(t, http.StatusOK, rec.Code)
		var me user.User
		decode(t, rec, &me)
		assert.Equal(t, member.ID, me.ID)
	})
}

func Test_accountApi_access(t *testing.T) {
	srv, s := setup(t)
	pending := testutil.CreateUser(t, s.UserRepo, "Pending", "pending@alumni.io", testutil.UserOpts{Password: testutil.StrongPassword})
	blocked := testutil.CreateUser(t, s.UserRepo, "Blocked", "blocked@alumni.io", testutil.UserOpts{Verified: true, Blocked: true})
	member := testutil.CreateMember(t, s.UserRepo, "Member", "member@alumni.io")
	pendingToken := getToken(t, srv, pending)

	tests := []httpTest{
		{name: "auth required", path: "/v1/posts", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "bad token", path: "/v1/posts", token: "not-a-token", wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{name: "pending can see themselves", path: "/v1/auth/me", token: pendingToken, wantCode: http.StatusOK},
		{
			name: "pending cannot see the feed", path: "/v1/posts", token: pendingToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account pending verification"}),
		},
		{
			name: "pending cannot see alumni", path: "/v1/alumni", token: pendingToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account pending verification"}),
		},
		{
			name: "blocked token", path: "/v1/auth/me", token: getToken(t, srv, blocked), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account blocked"}),
		},
		{
			name: "deleted user token", path: "/v1/auth/me", token: getToken(t, srv, user.User{ID: "2f7a3a8e-0d2f-4d39-a0a4-5e0c6b4ad3c1"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{name: "member sees the feed", path: "/v1/posts", token: getToken(t, srv, member), wantCode: http.StatusOK, wantData: []byte("[]")},
	}
	runHTTPTests(t, srv, tests)
}

func Test_accountApi_refreshToken(t *testing.T) {
	srv, s := setup(t)
	member := testutil.CreateMember(t, s.UserRepo, "Member", "member@alumni.io")

	t.Run("refreshed", func(t *testing.T) {
		rec := do(srv, http.MethodPost, "/v1/auth/token-refresh", getToken(t, srv, member))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp TokenResponse
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
	})

	t.Run("refresh expired", func(t *testing.T) {
		claims := srv.Auth().GetUserClaims(member, 1 /* long ago */)
		token, err := srv.Auth().GenerateToken(claims)
		require.NoError(t, err)

		rec := do(srv, http.MethodPost, "/v1/auth/token-refresh", token)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})}, rec)
	})
}

func Test_accountApi_passwordReset(t *testing.T) {
	srv, s := setup(t)
	member := testutil.CreateMember(t, s.UserRepo, "Member", "member@alumni.io")
	successMsg := "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."

	for _, email := range []string{"nobody@alumni.io", "member@alumni.io"} {
		req, rec := newRequest(http.MethodPost, "/v1/auth/password-reset", marchallObj(t, PasswordResetRequest{Email: email}))
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: successMsg})}, rec)
	}

	sent := s.Mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, member.Email, sent[0].To[0].Address)

	url := sent[0].TemplateData.(map[string]string)["URL"]
	parts := strings.Split(url, "/")
	require.True(t, len(parts) >= 2, url)
	uid, token := parts[len(parts)-2], parts[len(parts)-1]
	newPwd := "N3w-Passw0rd?"

	confirm := func(uid, token string) []byte {
		return marchallObj(t, user.ResetUserPassword{UID: uid, Token: token, Password: newPwd, PasswordConfirm: newPwd})
	}

	tests := []httpTest{
		{
			name: "invalid token", method: http.MethodPost, path: "/v1/auth/password-reset-confirm", body: confirm(uid, "abc-def"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrResetLinkInvalid.Error()}),
		},
		{
			name: "invalid uid", method: http.MethodPost, path: "/v1/auth/password-reset-confirm", body: confirm("bG9s", token),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrResetLinkInvalid.Error()}),
		},
		{
			name: "reset", method: http.MethodPost, path: "/v1/auth/password-reset-confirm", body: confirm(uid, token),
			wantCode: http.StatusOK, wantData: marchallObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token used", method: http.MethodPost, path: "/v1/auth/password-reset-confirm", body: confirm(uid, token),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: user.ErrResetLinkInvalid.Error()}),
		},
	}
	runHTTPTests(t, srv, tests)

	rec := do(srv, http.MethodPost, "/v1/auth/login", "", marchallObj(t, LoginRequest{Email: member.Email, Password: newPwd}))
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
