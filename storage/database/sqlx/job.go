package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/job"
)

const (
	jobColumns = `id, title, company, location, description, requirements, salary, application_url,
		contact_email, posted_by, is_active, posted_at, updated_at`
	referralColumns = "id, job_id, user_id, referred_name, referred_email, referred_phone, notes, created_at"
)

type jobRow struct {
	ID             string      `db:"id"`
	Title          string      `db:"title"`
	Company        string      `db:"company"`
	Location       string      `db:"location"`
	Description    string      `db:"description"`
	Requirements   jsonList    `db:"requirements"`
	Salary         null.String `db:"salary"`
	ApplicationURL null.String `db:"application_url"`
	ContactEmail   string      `db:"contact_email"`
	PostedBy       string      `db:"posted_by"`
	IsActive       bool        `db:"is_active"`
	PostedAt       time.Time   `db:"posted_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

type jobViewRow struct {
	jobRow
	ApplicantCount int  `db:"applicant_count"`
	ReferralCount  int  `db:"referral_count"`
	HasApplied     bool `db:"has_applied"`
}

type referralRow struct {
	ID            string    `db:"id"`
	JobID         string    `db:"job_id"`
	UserID        string    `db:"user_id"`
	ReferredName  string    `db:"referred_name"`
	ReferredEmail string    `db:"referred_email"`
	ReferredPhone string    `db:"referred_phone"`
	Notes         string    `db:"notes"`
	CreatedAt     time.Time `db:"created_at"`
}

type jobRepository struct {
	baseRepository
}

var _ job.Repository = (*jobRepository)(nil) // interface compliance check

func NewJobRepository(exec core.DBExecutor) job.Repository {
	return &jobRepository{baseRepository{exec: exec}}
}

func (repo jobRepository) toRow(j job.Job) jobRow {
	return jobRow{
		ID:             j.ID,
		Title:          j.Title,
		Company:        j.Company,
		Location:       j.Location,
		Description:    j.Description,
		Requirements:   j.Requirements,
		Salary:         null.NewString(j.Salary, j.Salary != ""),
		ApplicationURL: null.NewString(j.ApplicationURL, j.ApplicationURL != ""),
		ContactEmail:   j.ContactEmail,
		PostedBy:       j.PostedBy,
		IsActive:       j.IsActive,
		PostedAt:       j.PostedAt.UTC(),
		UpdatedAt:      j.UpdatedAt.UTC(),
	}
}

func (repo jobRepository) fromRow(row jobRow) job.Job {
	reqs := []string(row.Requirements)
	if reqs == nil {
		reqs = []string{}
	}
	return job.Job{
		ID:             row.ID,
		Title:          row.Title,
		Company:        row.Company,
		Location:       row.Location,
		Description:    row.Description,
		Requirements:   reqs,
		Salary:         row.Salary.String,
		ApplicationURL: row.ApplicationURL.String,
		ContactEmail:   row.ContactEmail,
		PostedBy:       row.PostedBy,
		IsActive:       row.IsActive,
		PostedAt:       row.PostedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
}

func (repo jobRepository) CreateJob(ctx context.Context, j job.Job, exec ...core.DBExecutor) (job.Job, error) {
	query := "INSERT INTO jobs (" + jobColumns + `) VALUES (:id, :title, :company, :location, :description,
		:requirements, :salary, :application_url, :contact_email, :posted_by, :is_active, :posted_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toRow(j)); err != nil {
		return job.Job{}, errors.Wrap(err, "inserting job")
	}
	return j, nil
}

func (repo jobRepository) GetJob(ctx context.Context, id string, exec ...core.DBExecutor) (job.Job, error) {
	db := repo.getExec(exec)
	var row jobRow
	if err := sqlx.GetContext(ctx, db, &row, db.Rebind("SELECT "+jobColumns+" FROM jobs WHERE id = ?"), id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, errors.Wrap(err, "selecting job")
	}
	return repo.fromRow(row), nil
}

func (repo jobRepository) QueryJobViews(
	ctx context.Context,
	viewerID string,
	filter job.QueryFilter,
	exec ...core.DBExecutor,
) ([]job.JobView, error) {
	db := repo.getExec(exec)

	var conds []string
	args := []interface{}{viewerID}
	if filter.ID != "" {
		conds = append(conds, "j.id = ?")
		args = append(args, filter.ID)
	}
	if !filter.IncludeInactive {
		conds = append(conds, "j.is_active = ?")
		args = append(args, true)
	}

	query := `SELECT j.id, j.title, j.company, j.location, j.description, j.requirements, j.salary,
		j.application_url, j.contact_email, j.posted_by, j.is_active, j.posted_at, j.updated_at,
		(SELECT COUNT(*) FROM job_applicants a WHERE a.job_id = j.id) AS applicant_count,
		(SELECT COUNT(*) FROM job_referrals r WHERE r.job_id = j.id) AS referral_count,
		EXISTS (SELECT 1 FROM job_applicants a WHERE a.job_id = j.id AND a.user_id = ?) AS has_applied
		FROM jobs j` + whereClause(conds) + " ORDER BY j.posted_at DESC, j.id"

	var rows []jobViewRow
	if err := sqlx.SelectContext(ctx, db, &rows, db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting jobs")
	}

	views := make([]job.JobView, 0, len(rows))
	for _, row := range rows {
		views = append(views, job.JobView{
			Job:            repo.fromRow(row.jobRow),
			ApplicantCount: row.ApplicantCount,
			ReferralCount:  row.ReferralCount,
			HasApplied:     row.HasApplied,
		})
	}
	return views, nil
}

func (repo jobRepository) UpdateJob(ctx context.Context, j job.Job, exec ...core.DBExecutor) (job.Job, error) {
	query := `UPDATE jobs SET title = :title, company = :company, location = :location,
		description = :description, requirements = :requirements, salary = :salary,
		application_url = :application_url, contact_email = :contact_email, is_active = :is_active,
		updated_at = :updated_at
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, repo.toRow(j))
	if err != nil {
		return job.Job{}, errors.Wrap(err, "updating job")
	}
	if n, err := rowsAffected(res); err != nil {
		return job.Job{}, err
	} else if n == 0 {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (repo jobRepository) DeleteJob(ctx context.Context, id string, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	_, err := db.ExecContext(ctx, db.Rebind("DELETE FROM jobs WHERE id = ?"), id)
	return errors.Wrap(err, "deleting job")
}

func (repo jobRepository) CountJobs(ctx context.Context, activeOnly bool, exec ...core.DBExecutor) (int, error) {
	db := repo.getExec(exec)
	query := "SELECT COUNT(*) FROM jobs"
	var args []interface{}
	if activeOnly {
		query += " WHERE is_active = ?"
		args = append(args, true)
	}

	var count int
	err := sqlx.GetContext(ctx, db, &count, db.Rebind(query), args...)
	return count, errors.Wrap(err, "counting jobs")
}

// Applicants

func (repo jobRepository) AddApplicant(ctx context.Context, jobID, userID string, at time.Time, exec ...core.DBExecutor) error {
	db := repo.getExec(exec)
	query := db.Rebind("INSERT INTO job_applicants (job_id, user_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING")
	_, err := db.ExecContext(ctx, query, jobID, userID, at.UTC())
	return errors.Wrap(err, "inserting applicant")
}

func (repo jobRepository) QueryApplicantIDs(ctx context.Context, jobID string, exec ...core.DBExecutor) ([]string, error) {
	db := repo.getExec(exec)
	var ids []string
	query := db.Rebind("SELECT user_id FROM job_applicants WHERE job_id = ? ORDER BY created_at ASC, user_id")
	if err := sqlx.SelectContext(ctx, db, &ids, query, jobID); err != nil {
		return nil, errors.Wrap(err, "selecting applicants")
	}
	return ids, nil
}

// Referrals

func (repo jobRepository) CreateReferral(ctx context.Context, r job.Referral, exec ...core.DBExecutor) (job.Referral, error) {
	row := referralRow{
		ID:            r.ID,
		JobID:         r.JobID,
		UserID:        r.UserID,
		ReferredName:  r.ReferredName,
		ReferredEmail: r.ReferredEmail,
		ReferredPhone: r.ReferredPhone,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	query := "INSERT INTO job_referrals (" + referralColumns + `) VALUES (:id, :job_id, :user_id,
		:referred_name, :referred_email, :referred_phone, :notes, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.getExec(exec), query, row); err != nil {
		return job.Referral{}, errors.Wrap(err, "inserting referral")
	}
	return r, nil
}

func (repo jobRepository) QueryReferrals(ctx context.Context, jobID string, exec ...core.DBExecutor) ([]job.Referral, error) {
	db := repo.getExec(exec)
	var rows []referralRow
	query := db.Rebind("SELECT " + referralColumns + " FROM job_referrals WHERE job_id = ? ORDER BY created_at ASC, id")
	if err := sqlx.SelectContext(ctx, db, &rows, query, jobID); err != nil {
		return nil, errors.Wrap(err, "selecting referrals")
	}

	referrals := make([]job.Referral, 0, len(rows))
	for _, row := range rows {
		referrals = append(referrals, job.Referral{
			ID:            row.ID,
			JobID:         row.JobID,
			UserID:        row.UserID,
			ReferredName:  row.ReferredName,
			ReferredEmail: row.ReferredEmail,
			ReferredPhone: row.ReferredPhone,
			Notes:         row.Notes,
			CreatedAt:     row.CreatedAt.UTC(),
		})
	}
	return referrals, nil
}
