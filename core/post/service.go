package post

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("post not found")
	ErrCommentNotFound = core.NewNotFoundError("comment not found")
)

type (
	Repository interface {
		CreatePost(ctx context.Context, p Post, exec ...core.DBExecutor) (Post, error)
		GetPost(ctx context.Context, id string, exec ...core.DBExecutor) (Post, error)
		// QueryPostViews returns posts newest first, with their counters computed for viewerID. Authors are not joined.
		QueryPostViews(ctx context.Context, viewerID string, filter QueryFilter, exec ...core.DBExecutor) ([]PostView, error)
		UpdatePost(ctx context.Context, p Post, exec ...core.DBExecutor) (Post, error)
		DeletePost(ctx context.Context, id string, exec ...core.DBExecutor) error
		CountPosts(ctx context.Context, exec ...core.DBExecutor) (int, error)

		HasLike(ctx context.Context, postID, userID string, exec ...core.DBExecutor) (bool, error)
		AddLike(ctx context.Context, postID, userID string, at time.Time, exec ...core.DBExecutor) error
		RemoveLike(ctx context.Context, postID, userID string, exec ...core.DBExecutor) error
		CountLikes(ctx context.Context, postID string, exec ...core.DBExecutor) (int, error)

		CreateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) (Comment, error)
		GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (Comment, error)
		// QueryComments returns the comments of a post oldest first.
		QueryComments(ctx context.Context, postID string, exec ...core.DBExecutor) ([]Comment, error)
		UpdateComment(ctx context.Context, c Comment, exec ...core.DBExecutor) (Comment, error)
		DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		List(ctx context.Context, viewer user.User) ([]PostView, error)
		ListByAuthor(ctx context.Context, viewer user.User, authorID string) ([]PostView, error)
		Get(ctx context.Context, viewer user.User, id string) (PostView, error)
		Create(ctx context.Context, author user.User, np NewPost) (PostView, error)
		Update(ctx context.Context, actor user.User, id string, up NewPost) (PostView, error)
		Delete(ctx context.Context, actor user.User, id string) error
		ToggleLike(ctx context.Context, viewer user.User, id string) (LikeState, error)
		Count(ctx context.Context) (int, error)

		ListComments(ctx context.Context, postID string) ([]CommentView, error)
		AddComment(ctx context.Context, author user.User, postID string, nc NewComment) (CommentView, error)
		UpdateComment(ctx context.Context, actor user.User, id string, uc NewComment) (CommentView, error)
		DeleteComment(ctx context.Context, actor user.User, id string) error
	}

	Options struct {
		Repo      Repository
		DB        core.DB
		UserSvc   user.Service
		Media     core.FileReleaser
		Publisher core.Publisher
		Validate  *validator.Validate
	}

	service struct {
		Options
	}
)

var _ Service = (*service)(nil)

func NewService(opts Options) Service {
	if opts.Publisher == nil {
		opts.Publisher = core.NopPublisher
	}
	if opts.Media == nil {
		opts.Media = core.NopReleaser
	}
	return &service{Options: opts}
}

func (svc *service) attachAuthors(ctx context.Context, views []PostView) ([]PostView, error) {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.AuthorID)
	}
	authors, err := svc.UserSvc.QueryByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying authors")
	}
	for i := range views {
		if author, ok := authors[views[i].AuthorID]; ok {
			views[i].Author = &author
		}
	}
	return views, nil
}

func (svc *service) query(ctx context.Context, viewer user.User, filter QueryFilter) ([]PostView, error) {
	views, err := svc.Repo.QueryPostViews(ctx, viewer.ID, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying posts")
	}
	return svc.attachAuthors(ctx, views)
}

// List returns the feed, newest first.
func (svc *service) List(ctx context.Context, viewer user.User) ([]PostView, error) {
	return svc.query(ctx, viewer, QueryFilter{})
}

func (svc *service) ListByAuthor(ctx context.Context, viewer user.User, authorID string) ([]PostView, error) {
	return svc.query(ctx, viewer, QueryFilter{AuthorID: authorID})
}

func (svc *service) Get(ctx context.Context, viewer user.User, id string) (PostView, error) {
	if _, err := uuid.Parse(id); err != nil {
		return PostView{}, ErrNotFound
	}
	views, err := svc.query(ctx, viewer, QueryFilter{ID: id})
	if err != nil {
		return PostView{}, err
	}
	if len(views) == 0 {
		return PostView{}, ErrNotFound
	}
	return views[0], nil
}

func (svc *service) getEditable(ctx context.Context, actor user.User, id string) (Post, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Post{}, ErrNotFound
	}
	p, err := svc.Repo.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !actor.CanEdit(p.AuthorID) {
		return Post{}, core.ErrForbidden
	}
	return p, nil
}

func (svc *service) Create(ctx context.Context, author user.User, np NewPost) (PostView, error) {
	if err := np.Validate(svc.Validate); err != nil {
		return PostView{}, err
	}

	now := time.Now().UTC()
	p, err := svc.Repo.CreatePost(ctx, Post{
		ID:        uuid.NewString(),
		Title:     np.Title,
		Content:   np.Content,
		AuthorID:  author.ID,
		ImageURL:  np.ImageURL,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return PostView{}, errors.Wrap(err, "creating post")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionPosts, core.OpCreate, p.ID))
	return PostView{Post: p, Author: &author}, nil
}

// Update replaces the editable fields of a post. A replaced or removed image is released.
func (svc *service) Update(ctx context.Context, actor user.User, id string, up NewPost) (PostView, error) {
	p, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return PostView{}, err
	}
	if err = up.Validate(svc.Validate); err != nil {
		return PostView{}, err
	}

	oldImage := p.ImageURL
	p.Title = up.Title
	p.Content = up.Content
	p.ImageURL = up.ImageURL
	p.UpdatedAt = time.Now().UTC()
	if _, err = svc.Repo.UpdatePost(ctx, p); err != nil {
		return PostView{}, errors.Wrap(err, "updating post")
	}
	if oldImage != p.ImageURL {
		svc.Media.Release(ctx, p.AuthorID, oldImage)
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionPosts, core.OpUpdate, p.ID))
	return svc.Get(ctx, actor, p.ID)
}

// Delete removes a post with its comments, likes and image.
func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	p, err := svc.getEditable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.Repo.DeletePost(ctx, p.ID); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	svc.Media.Release(ctx, p.AuthorID, p.ImageURL)
	svc.Publisher.Publish(core.NewChange(core.CollectionPosts, core.OpDelete, p.ID))
	return nil
}

// ToggleLike likes the post if the viewer did not yet, unlikes it otherwise.
func (svc *service) ToggleLike(ctx context.Context, viewer user.User, id string) (LikeState, error) {
	if _, err := uuid.Parse(id); err != nil {
		return LikeState{}, ErrNotFound
	}

	var state LikeState
	err := core.RunInTx(ctx, svc.DB, func(tx core.DBExecutor) error {
		if _, err := svc.Repo.GetPost(ctx, id, tx); err != nil {
			return err
		}
		liked, err := svc.Repo.HasLike(ctx, id, viewer.ID, tx)
		if err != nil {
			return errors.Wrap(err, "checking like")
		}
		if liked {
			err = svc.Repo.RemoveLike(ctx, id, viewer.ID, tx)
		} else {
			err = svc.Repo.AddLike(ctx, id, viewer.ID, time.Now().UTC(), tx)
		}
		if err != nil {
			return errors.Wrap(err, "toggling like")
		}
		state.Liked = !liked
		state.LikeCount, err = svc.Repo.CountLikes(ctx, id, tx)
		return errors.Wrap(err, "counting likes")
	})
	if err != nil {
		return LikeState{}, err
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionPosts, core.OpUpdate, id))
	return state, nil
}

func (svc *service) Count(ctx context.Context) (int, error) {
	return svc.Repo.CountPosts(ctx)
}

// Comments

func (svc *service) commentViews(ctx context.Context, comments []Comment) ([]CommentView, error) {
	ids := make([]string, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.AuthorID)
	}
	authors, err := svc.UserSvc.QueryByIDs(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying comment authors")
	}

	views := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		view := CommentView{Comment: c}
		if author, ok := authors[c.AuthorID]; ok {
			view.Author = &author
		}
		views = append(views, view)
	}
	return views, nil
}

// ListComments returns the comments of a post, oldest first.
func (svc *service) ListComments(ctx context.Context, postID string) ([]CommentView, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return nil, ErrNotFound
	}
	if _, err := svc.Repo.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	comments, err := svc.Repo.QueryComments(ctx, postID)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	return svc.commentViews(ctx, comments)
}

func (svc *service) AddComment(ctx context.Context, author user.User, postID string, nc NewComment) (CommentView, error) {
	if _, err := uuid.Parse(postID); err != nil {
		return CommentView{}, ErrNotFound
	}
	if err := nc.Validate(svc.Validate); err != nil {
		return CommentView{}, err
	}
	if _, err := svc.Repo.GetPost(ctx, postID); err != nil {
		return CommentView{}, err
	}

	now := time.Now().UTC()
	c, err := svc.Repo.CreateComment(ctx, Comment{
		ID:        uuid.NewString(),
		PostID:    postID,
		AuthorID:  author.ID,
		Content:   nc.Content,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return CommentView{}, errors.Wrap(err, "creating comment")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionComments, core.OpCreate, c.ID, c.PostID))
	return CommentView{Comment: c, Author: &author}, nil
}

func (svc *service) getEditableComment(ctx context.Context, actor user.User, id string) (Comment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Comment{}, ErrCommentNotFound
	}
	c, err := svc.Repo.GetComment(ctx, id)
	if err != nil {
		return Comment{}, err
	}
	if !actor.CanEdit(c.AuthorID) {
		return Comment{}, core.ErrForbidden
	}
	return c, nil
}

func (svc *service) UpdateComment(ctx context.Context, actor user.User, id string, uc NewComment) (CommentView, error) {
	c, err := svc.getEditableComment(ctx, actor, id)
	if err != nil {
		return CommentView{}, err
	}
	if err = uc.Validate(svc.Validate); err != nil {
		return CommentView{}, err
	}

	c.Content = uc.Content
	c.UpdatedAt = time.Now().UTC()
	if c, err = svc.Repo.UpdateComment(ctx, c); err != nil {
		return CommentView{}, errors.Wrap(err, "updating comment")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionComments, core.OpUpdate, c.ID, c.PostID))

	views, err := svc.commentViews(ctx, []Comment{c})
	if err != nil {
		return CommentView{}, err
	}
	return views[0], nil
}

func (svc *service) DeleteComment(ctx context.Context, actor user.User, id string) error {
	c, err := svc.getEditableComment(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.Repo.DeleteComment(ctx, c.ID); err != nil {
		return errors.Wrap(err, "deleting comment")
	}
	svc.Publisher.Publish(core.NewChange(core.CollectionComments, core.OpDelete, c.ID, c.PostID))
	return nil
}
