package post

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"author_id"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// PostView is a Post joined with its author and the viewer related counters.
type PostView struct {
	Post
	Author       *user.User `json:"author"`
	CommentCount int        `json:"comment_count"`
	LikeCount    int        `json:"like_count"`
	IsLiked      bool       `json:"is_liked_by_current_user"`
}

type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type CommentView struct {
	Comment
	Author *user.User `json:"author"`
}

type LikeState struct {
	Liked     bool `json:"liked"`
	LikeCount int  `json:"like_count"`
}

// NewPost is used to create a Post, and to replace its editable fields.
// An empty ImageURL on update removes the image.
type NewPost struct {
	Title    string `json:"title" validate:"required,min=3,max=100"`
	Content  string `json:"content" validate:"required,min=10,max=5000"`
	ImageURL string `json:"image_url" validate:"omitempty,httpurl"`
}

func (np *NewPost) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Content = core.CleanString(np.Content)
	np.ImageURL = core.CleanString(np.ImageURL)
	return validate.Struct(np)
}

type NewComment struct {
	Content string `json:"content" validate:"required,max=1000"`
}

func (nc *NewComment) Validate(validate *validator.Validate) error {
	nc.Content = core.CleanString(nc.Content)
	return validate.Struct(nc)
}

// QueryFilter selects posts. Zero fields are ignored.
type QueryFilter struct {
	ID       string
	AuthorID string
}
