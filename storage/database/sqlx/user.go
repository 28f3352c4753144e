package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/user"
)

const userColumns = `id, display_name, email, employee_id, photo_url, phone_number, linkedin_url, twitter_url,
	bio, skills, current_company, current_position, years_at_organization, graduation_year,
	is_verified, is_admin, is_blocked, password_hash, created_at, updated_at, last_login`

var userOrderings = map[string]string{
	"display_name": "display_name",
	"email":        "email",
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"last_login":   "last_login",
}

type userRow struct {
	ID                  string    `db:"id"`
	Name                string    `db:"display_name"`
	Email               string    `db:"email"`
	EmployeeID          string    `db:"employee_id"`
	PhotoURL            string    `db:"photo_url"`
	PhoneNumber         string    `db:"phone_number"`
	LinkedinURL         string    `db:"linkedin_url"`
	TwitterURL          string    `db:"twitter_url"`
	Bio                 string    `db:"bio"`
	Skills              jsonList  `db:"skills"`
	CurrentCompany      string    `db:"current_company"`
	CurrentPosition     string    `db:"current_position"`
	YearsAtOrganization null.Int  `db:"years_at_organization"`
	GraduationYear      null.Int  `db:"graduation_year"`
	IsVerified          bool      `db:"is_verified"`
	IsAdmin             bool      `db:"is_admin"`
	IsBlocked           bool      `db:"is_blocked"`
	PasswordHash        string    `db:"password_hash"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	LastLogin           null.Time `db:"last_login"`
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) user.Repository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) toRow(usr user.User) userRow {
	return userRow{
		ID:                  usr.ID,
		Name:                usr.Name,
		Email:               usr.Email,
		EmployeeID:          usr.EmployeeID,
		PhotoURL:            usr.PhotoURL,
		PhoneNumber:         usr.PhoneNumber,
		LinkedinURL:         usr.LinkedinURL,
		TwitterURL:          usr.TwitterURL,
		Bio:                 usr.Bio,
		Skills:              usr.Skills,
		CurrentCompany:      usr.CurrentCompany,
		CurrentPosition:     usr.CurrentPosition,
		YearsAtOrganization: null.NewInt(usr.YearsAtOrganization, usr.YearsAtOrganization != 0),
		GraduationYear:      null.NewInt(usr.GraduationYear, usr.GraduationYear != 0),
		IsVerified:          usr.IsVerified,
		IsAdmin:             usr.IsAdmin,
		IsBlocked:           usr.IsBlocked,
		PasswordHash:        string(usr.PasswordHash),
		CreatedAt:           usr.CreatedAt.UTC(),
		UpdatedAt:           usr.UpdatedAt.UTC(),
		LastLogin:           null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (repo userRepository) fromRow(row userRow) user.User {
	skills := []string(row.Skills)
	if skills == nil {
		skills = []string{}
	}
	usr := user.User{
		ID:                  row.ID,
		Name:                row.Name,
		Email:               row.Email,
		EmployeeID:          row.EmployeeID,
		PhotoURL:            row.PhotoURL,
		PhoneNumber:         row.PhoneNumber,
		LinkedinURL:         row.LinkedinURL,
		TwitterURL:          row.TwitterURL,
		Bio:                 row.Bio,
		Skills:              skills,
		CurrentCompany:      row.CurrentCompany,
		CurrentPosition:     row.CurrentPosition,
		YearsAtOrganization: row.YearsAtOrganization.Int,
		GraduationYear:      row.GraduationYear.Int,
		IsVerified:          row.IsVerified,
		IsAdmin:             row.IsAdmin,
		IsBlocked:           row.IsBlocked,
		PasswordHash:        []byte(row.PasswordHash),
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

func (repo userRepository) fromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, repo.fromRow(row))
	}
	return users
}

func (repo userRepository) CheckEmailUniqueness(
	ctx context.Context,
	email string,
	excludedIDs []string,
	exec ...core.DBExecutor,
) error {
	db := repo.getExec(exec)

	query := "SELECT COUNT(*) FROM users WHERE email = ?"
	args := []interface{}{strings.ToLower(email)}
	if len(excludedIDs) > 0 {
		q, inArgs, err := sqlx.In(" AND id NOT IN (?)", excludedIDs)
		if err != nil {
			return errors.Wrap(err, "expanding excluded IDs")
		}
		query += q
		args = append(args, inArgs...)
	}

	var count int
	if err := sqlx.GetContext(ctx, db, &count, db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "counting users by email")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := repo.getExec(exec)
	row := repo.toRow(usr)
	query := `INSERT INTO users (` + userColumns + `) VALUES (
		:id, :display_name, :email, :employee_id, :photo_url, :phone_number, :linkedin_url, :twitter_url,
		:bio, :skills, :current_company, :current_position, :years_at_organization, :graduation_year,
		:is_verified, :is_admin, :is_blocked, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, db, query, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	db := repo.getExec(exec)

	var (
		cond string
		arg  interface{}
	)
	switch {
	case filter.ID != "":
		cond, arg = "id = ?", filter.ID
	case filter.Email != "":
		cond, arg = "email = ?", strings.ToLower(filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	query := db.Rebind("SELECT " + userColumns + " FROM users WHERE " + cond)
	if err := sqlx.GetContext(ctx, db, &row, query, arg); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) QueryUsersByIDs(ctx context.Context, ids []string, exec ...core.DBExecutor) ([]user.User, error) {
	if len(ids) == 0 {
		return []user.User{}, nil
	}
	db := repo.getExec(exec)

	query, args, err := sqlx.In("SELECT "+userColumns+" FROM users WHERE id IN (?)", ids)
	if err != nil {
		return nil, errors.Wrap(err, "expanding IDs")
	}
	var rows []userRow
	if err = sqlx.SelectContext(ctx, db, &rows, db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting users by IDs")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) filterConditions(filter *user.QueryFilter) ([]string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter == nil {
		return conds, args
	}
	if filter.Search != "" {
		pattern := containsPattern(filter.Search)
		conds = append(conds, "(LOWER(display_name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(employee_id) LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	if filter.IsVerified != nil {
		conds = append(conds, "is_verified = ?")
		args = append(args, *filter.IsVerified)
	}
	if filter.IsBlocked != nil {
		conds = append(conds, "is_blocked = ?")
		args = append(args, *filter.IsBlocked)
	}
	if filter.IsAdmin != nil {
		conds = append(conds, "is_admin = ?")
		args = append(args, *filter.IsAdmin)
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.CreatedTo.UTC())
	}
	return conds, args
}

func (repo userRepository) FilterUsers(
	ctx context.Context,
	filter *user.QueryFilter,
	ordering []core.DBOrdering,
	exec ...core.DBExecutor,
) ([]user.User, error) {
	db := repo.getExec(exec)
	conds, args := repo.filterConditions(filter)
	query := "SELECT " + userColumns + " FROM users" + whereClause(conds) +
		orderBy(ordering, userOrderings, "created_at DESC")

	var rows []userRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return repo.fromRows(rows), nil
}

func (repo userRepository) CountUsers(ctx context.Context, filter *user.QueryFilter, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)
	conds, args := repo.filterConditions(filter)

	var count int
	if err := sqlx.GetContext(ctx, db, &count, db.Rebind("SELECT COUNT(*) FROM users"+whereClause(conds)), args...); err != nil {
		return 0, errors.Wrap(err, "counting users")
	}
	return count, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	db := repo.getExec(exec)
	row := repo.toRow(usr)
	query := `UPDATE users SET
		display_name = :display_name, email = :email, employee_id = :employee_id, photo_url = :photo_url,
		phone_number = :phone_number, linkedin_url = :linkedin_url, twitter_url = :twitter_url, bio = :bio,
		skills = :skills, current_company = :current_company, current_position = :current_position,
		years_at_organization = :years_at_organization, graduation_year = :graduation_year,
		is_verified = :is_verified, is_admin = :is_admin, is_blocked = :is_blocked,
		password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id`

	res, err := sqlx.NamedExecContext(ctx, db, query, row)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return user.User{}, err
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.fromRow(row), nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	db := repo.getExec(exec)
	query, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "expanding IDs")
	}
	_, err = db.ExecContext(ctx, db.Rebind(query), args...)
	return errors.Wrap(err, "deleting users")
}
