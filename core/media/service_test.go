package media_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/media"
	"github.com/orgalumni/alumni/testutil"
)

// smallest valid PNG header followed by padding
var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"photo.png", "photo.png"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\my photo (1).png`, "my_photo_1_.png"},
		{"...", "image"},
		{"", "image"},
		{strings.Repeat("a", 150) + ".png", strings.Repeat("a", 96) + ".png"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, media.SanitizeFilename(tt.in))
		})
	}
}

func TestService_UploadImage(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	member := testutil.CreateMember(t, s.UserRepo, "Member", "member@alumni.io")

	tests := []struct {
		name      string
		kind      string
		data      []byte
		wantField string
	}{
		{name: "unknown kind", kind: "docs", data: pngData, wantField: "kind"},
		{name: "empty file", kind: media.KindPosts, wantField: "file"},
		{name: "not an image", kind: media.KindPosts, data: []byte("just some text"), wantField: "file"},
		{name: "too large", kind: media.KindPosts, data: append(pngData, make([]byte, 5*1024*1024)...), wantField: "file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Media.UploadImage(ctx, member.ID, tt.kind, "a.png", tt.data)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			assert.Equal(t, tt.wantField, verr.Fields[0].Field)
		})
	}

	t.Run("png", func(t *testing.T) {
		up, err := s.Media.UploadImage(ctx, member.ID, media.KindAvatars, "my photo.png", pngData)
		require.NoError(t, err)
		assert.Equal(t, "image/png", up.ContentType)
		assert.Equal(t, len(pngData), up.Size)
		assert.True(t, strings.HasPrefix(up.Key, "avatars/"), up.Key)
		assert.True(t, strings.HasSuffix(up.Key, "_my_photo.png"), up.Key)
		assert.Equal(t, s.Conf.Storage.BaseURL+"/"+up.Key, up.URL)
		assert.Equal(t, member.ID, up.UploaderID)

		stored, err := s.UploadRepo.GetUpload(ctx, up.URL)
		require.NoError(t, err)
		assert.Equal(t, up.Key, stored.Key)
		assert.Equal(t, member.ID, stored.UploaderID)

		require.NoError(t, s.Media.Delete(ctx, up.URL))
		assert.False(t, s.Stored(t, up.Key))
		_, err = s.UploadRepo.GetUpload(ctx, up.URL)
		assert.Equal(t, media.ErrNotFound, err)
	})

	t.Run("foreign url", func(t *testing.T) {
		err := s.Media.Delete(ctx, "https://elsewhere.io/avatars/1_a.png")
		var verr *core.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "url", verr.Fields[0].Field)
	})
}

func TestService_Release(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	owner := testutil.CreateMember(t, s.UserRepo, "Owner", "owner@alumni.io")
	other := testutil.CreateMember(t, s.UserRepo, "Other", "other@alumni.io")

	t.Run("not the uploader", func(t *testing.T) {
		up := s.Upload(t, owner.ID, media.KindPosts, "a.png")
		s.Media.Release(ctx, other.ID, up.URL)
		assert.True(t, s.Stored(t, up.Key))
	})

	t.Run("still referenced", func(t *testing.T) {
		up := s.Upload(t, owner.ID, media.KindAvatars, "b.png")
		other.PhotoURL = up.URL
		_, err := s.Users.Update(ctx, other)
		require.NoError(t, err)

		s.Media.Release(ctx, owner.ID, up.URL)
		assert.True(t, s.Stored(t, up.Key))
	})

	t.Run("unknown url", func(t *testing.T) {
		s.Media.Release(ctx, owner.ID, "https://elsewhere.io/posts/1_c.png")
		s.Media.Release(ctx, owner.ID, "")
	})

	t.Run("released", func(t *testing.T) {
		up := s.Upload(t, owner.ID, media.KindEvents, "d.png")
		s.Media.Release(ctx, owner.ID, up.URL)
		assert.False(t, s.Stored(t, up.Key))
		_, err := s.UploadRepo.GetUpload(ctx, up.URL)
		assert.Equal(t, media.ErrNotFound, err)
	})

	t.Run("all of an uploader", func(t *testing.T) {
		mine := s.Upload(t, other.ID, media.KindPosts, "e.png")
		require.NoError(t, s.Media.ReleaseAll(ctx, other.ID))
		assert.False(t, s.Stored(t, mine.Key))

		urls, err := s.UploadRepo.UploadURLsByUploader(ctx, owner.ID)
		require.NoError(t, err)
		assert.Len(t, urls, 2)
	})
}
