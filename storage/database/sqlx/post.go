package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/post"
)

const (
	postColumns    = "id, title, content, author_id, image_url, created_at, updated_at"
	commentColumns = "id, post_id, author_id, content, created_at, updated_at"
)

type postRow struct {
	ID        string      `db:"id"`
	Title     string      `db:"title"`
	Content   string      `db:"content"`
	AuthorID  string      `db:"author_id"`
	ImageURL  null.String `db:"image_url"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
}

type postViewRow struct {
	postRow
	CommentCount int  `db:"comment_count"`
	LikeCount    int  `db:"like_count"`
	IsLiked      bool `db:"is_liked"`
}

type commentRow struct {
	ID        string    `db:"id"`
	PostID    string    `db:"post_id"`
	AuthorID  string    `db:"author_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type postRepository struct {
	baseRepository
}

var _ post.Repository = (*postRepository)(nil) // interface compliance check

func NewPostRepository(exec core.DBExecutor) post.Repository {
	return &postRepository{baseRepository{exec: exec}}
}

func (repo postRepository) toRow(p post.Post) postRow {
	return postRow{
		ID:        p.ID,
		Title:     p.Title,
		Content:   p.Content,
		AuthorID:  p.AuthorID,
		ImageURL:  null.NewString(p.ImageURL, p.ImageURL != ""),
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (repo postRepository) fromRow(row postRow) post.Post {
	return post.Post{
		ID:        row.ID,
		Title:     row.Title,
		Content:   row.Content,
		AuthorID:  row.AuthorID,
		ImageURL:  row.ImageURL.String,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo postRepository) CreatePost(ctx context.Context, p post.Post, exec ...core.DBExecutor) (post.Post, error) {
	query := "INSERT INTO posts (" + postColumns + ") VALUES (:id, :title, :content, :author_id, :image_url, :created_at, :updated_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toRow(p)); err != nil {
		return post.Post{}, errors.Wrap(err, "inserting post")
	}
	return p, nil
}

func (repo postRepository) GetPost(ctx context.Context, id string, exec ...core.DBExecutor) (post.Post, error) {
	db := repo.getExec(exec)
	var row postRow
	if err := sqlx.GetContext(ctx, db, &row, db.Rebind("SELECT "+postColumns+" FROM posts WHERE id = ?"), id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return post.Post{}, post.ErrNotFound
		}
		return post.Post{}, errors.Wrap(err, "selecting post")
	}
	return repo.fromRow(row), nil
}

func (repo postRepository) QueryPostViews(
	ctx context.Context,
	viewerID string,
	filter post.QueryFilter,
	exec ...core.DBExecutor,
) ([]post.PostView, error) {
	db := repo.getExec(exec)

	var conds []string
	args := []interface{}{viewerID}
	if filter.ID != "" {
		conds = append(conds, "p.id = ?")
		args = append(args, filter.ID)
	}
	if filter.AuthorID != "" {
		conds = append(conds, "p.author_id = ?")
		args = append(args, filter.AuthorID)
	}

	query := `SELECT p.id, p.title, p.content, p.author_id, p.image_url, p.created_at, p.updated_at,
		(SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id) AS comment_count,
		(SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.id) AS like_count,
		EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = ?) AS is_liked
		FROM posts p` + whereClause(conds) + " ORDER BY p.created_at DESC, p.id"

	var rows []postViewRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting posts")
	}

	views := make([]post.PostView, 0, len(rows))
	for _, row := range rows {
		views = append(views, post.PostView{
			Post:         repo.fromRow(row.postRow),
			CommentCount: row.CommentCount,
			LikeCount:    row.LikeCount,
			IsLiked:      row.IsLiked,
		})
	}
	return views, nil
}

func (repo postRepository) UpdatePost(ctx context.Context, p post.Post, exec ...core.DBExecutor) (post.Post, error) {
	query := "UPDATE posts SET title = :title, content = :content, image_url = :image_url, updated_at = :updated_at WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toRow(p))
	if err != nil {
		return post.Post{}, errors.Wrap(err, "updating post")
	}
	if n, err := rowsAffected(res); err != nil {
		return post.Post{}, err
	} else if n == 0 {
		return post.Post{}, post.ErrNotFound
	}
	return p, nil
}

func (repo postRepository) DeletePost(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	_, err := db.ExecContext(ctx, db.Rebind("DELETE FROM posts WHERE id = ?"), id)
	return errors.Wrap(err, "deleting post")
}

func (repo postRepository) CountPosts(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, repo.getExec(exec), &count, "SELECT COUNT(*) FROM posts")
	return count, errors.Wrap(err, "counting posts")
}

// Likes

func (repo postRepository) HasLike(ctx context.Context, postID, userID string, exec ...core.DBExecutor) (bool, error) {
	db := repo.getExec(exec)
	var count int
	query := db.Rebind("SELECT COUNT(*) FROM post_likes WHERE post_id = ? AND user_id = ?")
	if err := sqlx.GetContext(ctx, db, &count, query, postID, userID); err != nil {
		return false, errors.Wrap(err, "counting like")
	}
	return count > 0, nil
}

func (repo postRepository) AddLike(ctx context.Context, postID, userID string, at time.Time, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	query := db.Rebind("INSERT INTO post_likes (post_id, user_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING")
	_, err := db.ExecContext(ctx, query, postID, userID, at.UTC())
	return errors.Wrap(err, "inserting like")
}

func (repo postRepository) RemoveLike(ctx context.Context, postID, userID string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	_, err := db.ExecContext(ctx, db.Rebind("DELETE FROM post_likes WHERE post_id = ? AND user_id = ?"), postID, userID)
	return errors.Wrap(err, "deleting like")
}

func (repo postRepository) CountLikes(ctx context.Context, postID string, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)
	var count int
	err := sqlx.GetContext(ctx, db, &count, db.Rebind("SELECT COUNT(*) FROM post_likes WHERE post_id = ?"), postID)
	return count, errors.Wrap(err, "counting likes")
}

// Comments

func (repo postRepository) fromCommentRow(row commentRow) post.Comment {
	return post.Comment{
		ID:        row.ID,
		PostID:    row.PostID,
		AuthorID:  row.AuthorID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo postRepository) toCommentRow(c post.Comment) commentRow {
	return commentRow{
		ID:        c.ID,
		PostID:    c.PostID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt.UTC(),
		UpdatedAt: c.UpdatedAt.UTC(),
	}
}

func (repo postRepository) CreateComment(ctx context.Context, c post.Comment, exec ...core.DBExecutor) (post.Comment, error) {
	query := "INSERT INTO comments (" + commentColumns + ") VALUES (:id, :post_id, :author_id, :content, :created_at, :updated_at)"
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toCommentRow(c)); err != nil {
		return post.Comment{}, errors.Wrap(err, "inserting comment")
	}
	return c, nil
}

func (repo postRepository) GetComment(ctx context.Context, id string, exec ...core.DBExecutor) (post.Comment, error) {
	db := repo.getExec(exec)
	var row commentRow
	if err := sqlx.GetContext(ctx, db, &row, db.Rebind("SELECT "+commentColumns+" FROM comments WHERE id = ?"), id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return post.Comment{}, post.ErrCommentNotFound
		}
		return post.Comment{}, errors.Wrap(err, "selecting comment")
	}
	return repo.fromCommentRow(row), nil
}

func (repo postRepository) QueryComments(ctx context.Context, postID string, exec ...core.DBExecutor) ([]post.Comment, error) {
	db := repo.getExec(exec)
	var rows []commentRow
	query := db.Rebind("SELECT " + commentColumns + " FROM comments WHERE post_id = ? ORDER BY created_at ASC, id")
	if err := sqlx.SelectContext(ctx, db, &rows, query, postID); err != nil {
		return nil, errors.Wrap(err, "selecting comments")
	}
	comments := make([]post.Comment, 0, len(rows))
	for _, row := range rows {
		comments = append(comments, repo.fromCommentRow(row))
	}
	return comments, nil
}

func (repo postRepository) UpdateComment(ctx context.Context, c post.Comment, exec ...core.DBExecutor) (post.Comment, error) {
	query := "UPDATE comments SET content = :content, updated_at = :updated_at WHERE id = :id"
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toCommentRow(c))
	if err != nil {
		return post.Comment{}, errors.Wrap(err, "updating comment")
	}
	if n, err := rowsAffected(res); err != nil {
		return post.Comment{}, err
	} else if n == 0 {
		return post.Comment{}, post.ErrCommentNotFound
	}
	return c, nil
}

func (repo postRepository) DeleteComment(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	_, err := db.ExecContext(ctx, db.Rebind("DELETE FROM comments WHERE id = ?"), id)
	return errors.Wrap(err, "deleting comment")
}
