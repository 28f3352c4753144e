package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
	"github.com/orgalumni/alumni/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Services) {
	s := testutil.NewServices(t)
	return &commandLine{
		db:       s.DB,
		logger:   s.Logger,
		validate: s.Validate,
		out:      new(bytes.Buffer),
		usrSvc:   s.Users,
		postSvc:  s.Posts,
		eventSvc: s.Events,
		jobSvc:   s.Jobs,
	}, s
}

// mockPasswords makes the password prompts return pwds in order.
func mockPasswords(t *testing.T, pwds ...string) {
	orig := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = orig })
	readPasswordFunc = func(int) ([]byte, error) {
		if len(pwds) == 0 {
			return nil, nil
		}
		pwd := pwds[0]
		pwds = pwds[1:]
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwds    []string
	wantErr error
}

func runCLITests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPasswords(t, tt.pwds...)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _ := setup(t)
	runCLITests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate without subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "createadmin without email", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "resetpassword without email", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "verifyuser without email", args: []string{"verifyuser"}, wantErr: errHelp},
		{name: "seed without file", args: []string{"seed"}, wantErr: errHelp},
	})
	assert.Contains(t, cli.out.(*bytes.Buffer).String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	var gotCmd string
	var gotArgs []string
	orig := migrateFunc
	t.Cleanup(func() { migrateFunc = orig })
	migrateFunc = func(db *sqlx.DB, logger core.Logger, command string, args ...string) error {
		gotCmd, gotArgs = command, args
		return nil
	}

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "2"}))
	assert.Equal(t, "up-to", gotCmd)
	assert.Equal(t, []string{"2"}, gotArgs)

	require.NoError(t, cli.run([]string{"admin", "migrate", "status"}))
	assert.Equal(t, "status", gotCmd)
	assert.Empty(t, gotArgs)

	// the real runner against the migrated test database
	migrateFunc = orig
	assert.NoError(t, cli.run([]string{"admin", "migrate", "version"}))
	assert.Error(t, cli.run([]string{"admin", "migrate", "lol"}))
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli, s := setup(t)
	ctx := context.Background()
	member := testutil.CreateUser(t, s.UserRepo, "Member", "member@alumni.io", testutil.UserOpts{Password: testutil.StrongPassword})

	t.Run("weak password", func(t *testing.T) {
		mockPasswords(t, "12345678", "12345678")
		err := cli.run([]string{"admin", "createadmin", "-email", "root@alumni.io"})
		require.Error(t, err)
		_, err = s.Users.GetByEmail(ctx, "root@alumni.io")
		assert.True(t, core.IsNotFound(err))
	})

	runCLITests(t, cli, []cliTest{
		{name: "new admin", args: []string{"createadmin", "-email", "Root@alumni.io", "-name", "Root"},
			pwds: []string{testutil.StrongPassword, testutil.StrongPassword}},
		{name: "promote existing", args: []string{"createadmin", "-email", member.Email}, pwds: []string{"ignored", "ignored"}},
	})

	root, err := s.Users.GetByEmail(ctx, "root@alumni.io")
	require.NoError(t, err)
	assert.True(t, root.IsAdmin)
	assert.True(t, root.IsVerified)
	assert.Equal(t, "Root", root.Name)
	assert.NoError(t, root.CheckPassword(testutil.StrongPassword))

	promoted, err := s.Users.GetByEmail(ctx, member.Email)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)
	assert.True(t, promoted.IsVerified)
	assert.NoError(t, promoted.CheckPassword(testutil.StrongPassword))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, s := setup(t)
	usr := testutil.CreateMember(t, s.UserRepo, "User", "user@alumni.io")

	runCLITests(t, cli, []cliTest{
		{name: "no password", args: []string{"resetpassword", "-email", usr.Email}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@alumni.io"}, pwds: []string{"lol"},
			wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "USER@alumni.io"}, pwds: []string{"lmao"}},
	})

	refreshed, err := s.Users.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_verifyUser(t *testing.T) {
	cli, s := setup(t)
	usr := testutil.CreateUser(t, s.UserRepo, "User", "user@alumni.io")

	runCLITests(t, cli, []cliTest{
		{name: "user not found", args: []string{"verifyuser", "-email", "lol@alumni.io"}, wantErr: user.ErrNotFound},
		{name: "verify", args: []string{"verifyuser", "-email", usr.Email}},
		{name: "already verified", args: []string{"verifyuser", "-email", usr.Email}},
	})

	refreshed, err := s.Users.GetByID(context.Background(), usr.ID)
	require.NoError(t, err)
	assert.True(t, refreshed.IsVerified)
	assert.Len(t, s.Mail.SentMessages(), 1)
}

func Test_commandLine_seed(t *testing.T) {
	cli, s := setup(t)
	ctx := context.Background()
	fixture := filepath.Join("testdata", "seed.yaml")

	require.NoError(t, cli.run([]string{"admin", "seed", "-file", fixture}))
	assert.Contains(t, cli.out.(*bytes.Buffer).String(), "users: 3 created")

	grace, err := s.Users.GetByEmail(ctx, "grace@alumni.test")
	require.NoError(t, err)
	assert.True(t, grace.IsAdmin)
	assert.True(t, grace.IsVerified)

	newcomer, err := s.Users.GetByEmail(ctx, "newcomer@alumni.test")
	require.NoError(t, err)
	assert.False(t, newcomer.IsVerified)

	posts, err := s.Posts.List(ctx, grace)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Hello alumni", posts[0].Title)

	events, err := s.Events.List(ctx, grace)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].IsAttending)

	jobs, err := s.Jobs.List(ctx, grace, false)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"Assembly", "Patience"}, jobs[0].Requirements)

	t.Run("users are not duplicated", func(t *testing.T) {
		cli.out = new(bytes.Buffer)
		require.NoError(t, cli.run([]string{"admin", "seed", "-file", fixture}))
		assert.Contains(t, cli.out.(*bytes.Buffer).String(), "users: 0 created")
		count, err := s.Users.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, cli.run([]string{"admin", "seed", "-file", filepath.Join(t.TempDir(), "none.yaml")}))
	})
}
