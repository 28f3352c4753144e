package post_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/media"
	"github.com/orgalumni/alumni/core/post"
	"github.com/orgalumni/alumni/testutil"
)

func nextChange(t *testing.T, ch <-chan core.Change) core.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("no change published")
		return core.Change{}
	}
}

func TestService_Create(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	author := testutil.CreateMember(t, s.UserRepo, "Author", "author@alumni.io")
	sub := s.Hub.Subscribe()

	tests := []struct {
		name    string
		np      post.NewPost
		wantErr bool
	}{
		{name: "title too short", np: post.NewPost{Title: "  ab  ", Content: "long enough content"}, wantErr: true},
		{name: "content too short", np: post.NewPost{Title: "Title", Content: "short"}, wantErr: true},
		{name: "bad image url", np: post.NewPost{Title: "Title", Content: "long enough content", ImageURL: "ftp://x"}, wantErr: true},
		{name: "valid", np: post.NewPost{Title: "  Title ", Content: "long enough content"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Posts.Create(ctx, author, tt.np)
			if tt.wantErr {
				require.Error(t, err)
				assert.IsType(t, validator.ValidationErrors{}, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "Title", got.Title)
			assert.Equal(t, author.ID, got.AuthorID)
			require.NotNil(t, got.Author)
			assert.Equal(t, author.Email, got.Author.Email)

			change := nextChange(t, sub.C())
			assert.Equal(t, core.CollectionPosts, change.Collection)
			assert.Equal(t, core.OpCreate, change.Op)
			assert.Equal(t, got.ID, change.ID)
		})
	}
}

func TestService_ListAndLikes(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	alice := testutil.CreateMember(t, s.UserRepo, "Alice", "alice@alumni.io")
	bob := testutil.CreateMember(t, s.UserRepo, "Bob", "bob@alumni.io")

	first, err := s.Posts.Create(ctx, alice, post.NewPost{Title: "First", Content: "the first post content"})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.Posts.Create(ctx, bob, post.NewPost{Title: "Second", Content: "the second post content"})
	require.NoError(t, err)

	state, err := s.Posts.ToggleLike(ctx, bob, first.ID)
	require.NoError(t, err)
	assert.Equal(t, post.LikeState{Liked: true, LikeCount: 1}, state)
	state, err = s.Posts.ToggleLike(ctx, alice, first.ID)
	require.NoError(t, err)
	assert.Equal(t, post.LikeState{Liked: true, LikeCount: 2}, state)
	state, err = s.Posts.ToggleLike(ctx, alice, first.ID)
	require.NoError(t, err)
	assert.Equal(t, post.LikeState{Liked: false, LikeCount: 1}, state)

	_, err = s.Posts.AddComment(ctx, alice, first.ID, post.NewComment{Content: "nice"})
	require.NoError(t, err)

	feed, err := s.Posts.List(ctx, bob)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, second.ID, feed[0].ID)
	assert.Equal(t, first.ID, feed[1].ID)
	assert.Equal(t, 1, feed[1].LikeCount)
	assert.Equal(t, 1, feed[1].CommentCount)
	assert.True(t, feed[1].IsLiked)
	require.NotNil(t, feed[1].Author)
	assert.Equal(t, alice.ID, feed[1].Author.ID)

	byAlice, err := s.Posts.ListByAuthor(ctx, alice, alice.ID)
	require.NoError(t, err)
	require.Len(t, byAlice, 1)
	assert.False(t, byAlice[0].IsLiked)

	count, err := s.Posts.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = s.Posts.ToggleLike(ctx, bob, "not-a-uuid")
	assert.Equal(t, post.ErrNotFound, err)
	_, err = s.Posts.Get(ctx, bob, "c8a1b1e4-7d0c-4cbb-9c86-2f8e6e4f0000")
	assert.True(t, core.IsNotFound(err))
}

func TestService_UpdateDelete(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	author := testutil.CreateMember(t, s.UserRepo, "Author", "author@alumni.io")
	other := testutil.CreateMember(t, s.UserRepo, "Other", "other@alumni.io")
	admin := testutil.CreateAdmin(t, s.UserRepo, "Admin", "admin@alumni.io")

	oldImage := s.Upload(t, author.ID, media.KindPosts, "old.png")
	p, err := s.Posts.Create(ctx, author, post.NewPost{Title: "Title", Content: "some content here", ImageURL: oldImage.URL})
	require.NoError(t, err)

	_, err = s.Posts.Update(ctx, other, p.ID, post.NewPost{Title: "Hijacked", Content: "some content here"})
	assert.Equal(t, core.ErrForbidden, err)
	assert.Equal(t, core.ErrForbidden, s.Posts.Delete(ctx, other, p.ID))

	updated, err := s.Posts.Update(ctx, author, p.ID, post.NewPost{Title: "New title", Content: "some other content"})
	require.NoError(t, err)
	assert.Equal(t, "New title", updated.Title)
	assert.Empty(t, updated.ImageURL)
	assert.True(t, updated.UpdatedAt.After(p.UpdatedAt) || updated.UpdatedAt.Equal(p.UpdatedAt))
	assert.False(t, s.Stored(t, oldImage.Key), "replaced image should be deleted")

	c, err := s.Posts.AddComment(ctx, other, p.ID, post.NewComment{Content: "first!"})
	require.NoError(t, err)
	_, err = s.Posts.ToggleLike(ctx, other, p.ID)
	require.NoError(t, err)

	// admins moderate any post
	require.NoError(t, s.Posts.Delete(ctx, admin, p.ID))
	_, err = s.Posts.Get(ctx, author, p.ID)
	assert.Equal(t, post.ErrNotFound, err)
	_, err = s.PostRepo.GetComment(ctx, c.ID)
	assert.True(t, core.IsNotFound(err))
	assert.Equal(t, post.ErrNotFound, s.Posts.Delete(ctx, admin, p.ID))
}

func TestService_ImagesOfOthersAreKept(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	alice := testutil.CreateMember(t, s.UserRepo, "Alice", "alice@alumni.io")
	mallory := testutil.CreateMember(t, s.UserRepo, "Mallory", "mallory@alumni.io")

	img := s.Upload(t, alice.ID, media.KindPosts, "alice.png")
	own, err := s.Posts.Create(ctx, alice, post.NewPost{Title: "Mine", Content: "my picture", ImageURL: img.URL})
	require.NoError(t, err)

	t.Run("someone else's upload", func(t *testing.T) {
		borrowed, err := s.Posts.Create(ctx, mallory, post.NewPost{Title: "Borrowed", Content: "not my picture", ImageURL: img.URL})
		require.NoError(t, err)
		require.NoError(t, s.Posts.Delete(ctx, mallory, borrowed.ID))
		assert.True(t, s.Stored(t, img.Key))

		borrowed, err = s.Posts.Create(ctx, mallory, post.NewPost{Title: "Borrowed", Content: "not my picture", ImageURL: img.URL})
		require.NoError(t, err)
		_, err = s.Posts.Update(ctx, mallory, borrowed.ID, post.NewPost{Title: "Borrowed", Content: "no picture now"})
		require.NoError(t, err)
		assert.True(t, s.Stored(t, img.Key))
	})

	t.Run("still referenced", func(t *testing.T) {
		again, err := s.Posts.Create(ctx, alice, post.NewPost{Title: "Again", Content: "same picture", ImageURL: img.URL})
		require.NoError(t, err)
		require.NoError(t, s.Posts.Delete(ctx, alice, own.ID))
		assert.True(t, s.Stored(t, img.Key))

		require.NoError(t, s.Posts.Delete(ctx, alice, again.ID))
		assert.False(t, s.Stored(t, img.Key))
		_, err = s.UploadRepo.GetUpload(ctx, img.URL)
		assert.Equal(t, media.ErrNotFound, err)
	})
}

func TestService_Comments(t *testing.T) {
	s := testutil.NewServices(t)
	ctx := context.Background()
	author := testutil.CreateMember(t, s.UserRepo, "Author", "author@alumni.io")
	other := testutil.CreateMember(t, s.UserRepo, "Other", "other@alumni.io")
	p, err := s.Posts.Create(ctx, author, post.NewPost{Title: "Title", Content: "some content here"})
	require.NoError(t, err)
	sub := s.Hub.Subscribe()

	_, err = s.Posts.AddComment(ctx, other, p.ID, post.NewComment{Content: "   "})
	assert.Error(t, err)
	_, err = s.Posts.AddComment(ctx, other, "c8a1b1e4-7d0c-4cbb-9c86-2f8e6e4f0000", post.NewComment{Content: "hello"})
	assert.Equal(t, post.ErrNotFound, err)

	c1, err := s.Posts.AddComment(ctx, other, p.ID, post.NewComment{Content: "first"})
	require.NoError(t, err)
	change := nextChange(t, sub.C())
	assert.Equal(t, core.CollectionComments, change.Collection)
	assert.Equal(t, p.ID, change.ParentID)

	time.Sleep(5 * time.Millisecond)
	c2, err := s.Posts.AddComment(ctx, author, p.ID, post.NewComment{Content: "second"})
	require.NoError(t, err)

	comments, err := s.Posts.ListComments(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, c1.ID, comments[0].ID)
	assert.Equal(t, c2.ID, comments[1].ID)
	require.NotNil(t, comments[0].Author)
	assert.Equal(t, other.ID, comments[0].Author.ID)

	_, err = s.Posts.UpdateComment(ctx, author, c1.ID, post.NewComment{Content: "edited"})
	assert.Equal(t, core.ErrForbidden, err)
	edited, err := s.Posts.UpdateComment(ctx, other, c1.ID, post.NewComment{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Content)

	assert.Equal(t, post.ErrCommentNotFound, s.Posts.DeleteComment(ctx, other, "lol"))
	require.NoError(t, s.Posts.DeleteComment(ctx, other, c1.ID))
	comments, err = s.Posts.ListComments(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
}
