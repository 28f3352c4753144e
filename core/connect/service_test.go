package connect_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/connect"
	"github.com/orgalumni/alumni/core/media"
	"github.com/orgalumni/alumni/core/user"
	"github.com/orgalumni/alumni/testutil"
)

func TestService_Directory(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	zoe := testutil.CreateMember(t, s.UserRepo, "Zoe", "zoe@alumni.io")
	adam := testutil.CreateMember(t, s.UserRepo, "Adam", "adam@corp.io")
	pending := testutil.CreateUser(t, s.UserRepo, "Pending", "pending@alumni.io")
	blocked := testutil.CreateUser(t, s.UserRepo, "Blocked", "blocked@alumni.io", testutil.UserOpts{Verified: true, Blocked: true})

	alumni, err := s.Connect.ListAlumni(ctx)
	require.NoError(t, err)
	require.Len(t, alumni, 2)
	assert.Equal(t, adam.ID, alumni[0].ID)
	assert.Equal(t, zoe.ID, alumni[1].ID)

	tests := []struct {
		q    string
		want []string
	}{
		{q: "ZO", want: []string{zoe.ID}},
		{q: "corp.io", want: []string{adam.ID}},
		{q: "pending", want: []string{}},
		{q: "  ", want: []string{adam.ID, zoe.ID}},
	}
	for _, tt := range tests {
		t.Run("search "+tt.q, func(t *testing.T) {
			got, err := s.Connect.SearchAlumni(ctx, tt.q)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, u := range got {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	got, err := s.Connect.GetAlumni(ctx, zoe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zoe", got.Name)
	for _, id := range []string{pending.ID, blocked.ID, "lol"} {
		_, err = s.Connect.GetAlumni(ctx, id)
		assert.Equal(t, user.ErrNotFound, err)
	}
}

func TestService_UpdateProfile(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	member := testutil.CreateMember(t, s.UserRepo, "Member", "member@alumni.io")
	other := testutil.CreateMember(t, s.UserRepo, "Other", "other@alumni.io")
	admin := testutil.CreateAdmin(t, s.UserRepo, "Admin", "admin@alumni.io")

	photo := s.Upload(t, member.ID, media.KindAvatars, "me.png")

	_, err := s.Connect.UpdateProfile(ctx, other, member.ID, connect.AlumniProfile{Name: "Hijacked"})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = s.Connect.UpdateProfile(ctx, member, member.ID, connect.AlumniProfile{Name: "Member", GraduationYear: 1800})
	assert.Error(t, err)

	got, err := s.Connect.UpdateProfile(ctx, member, member.ID, connect.AlumniProfile{
		Name:           " New Name ",
		PhotoURL:       photo.URL,
		Bio:            "Hello",
		Skills:         []string{"Go", " Go ", "", "SQL"},
		CurrentCompany: "Acme",
		GraduationYear: 2010,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, []string{"Go", "SQL"}, got.Skills)
	assert.Equal(t, photo.URL, got.PhotoURL)

	// full replacement: omitted fields are cleared and the old photo is discarded
	got, err = s.Connect.UpdateProfile(ctx, admin, member.ID, connect.AlumniProfile{Name: "Moderated"})
	require.NoError(t, err)
	assert.Empty(t, got.PhotoURL)
	assert.Empty(t, got.Bio)
	assert.Empty(t, got.Skills)
	assert.False(t, s.Stored(t, photo.Key))

	stored, err := s.Users.GetByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, "Moderated", stored.Name)
}

func TestService_UpdateContactInfo(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	member := testutil.CreateMember(t, s.UserRepo, "Member", "member@alumni.io")
	other := testutil.CreateMember(t, s.UserRepo, "Other", "other@alumni.io")

	_, err := s.Connect.UpdateContactInfo(ctx, other, member.ID, connect.ContactInfo{PhoneNumber: "123"})
	assert.Equal(t, core.ErrForbidden, err)
	_, err = s.Connect.UpdateContactInfo(ctx, member, member.ID, connect.ContactInfo{LinkedinURL: "linkedin"})
	assert.Error(t, err)

	got, err := s.Connect.UpdateContactInfo(ctx, member, member.ID, connect.ContactInfo{
		PhoneNumber: " +33 6 00 00 00 00 ",
		LinkedinURL: "https://linkedin.com/in/member",
	})
	require.NoError(t, err)
	assert.Equal(t, "+33 6 00 00 00 00", got.PhoneNumber)
	assert.Equal(t, "https://linkedin.com/in/member", got.LinkedinURL)
	assert.Empty(t, got.TwitterURL)
	assert.Equal(t, "Member", got.Name)
}
