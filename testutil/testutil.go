// Package testutil builds the database and services used by the tests.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/admin"
	"github.com/orgalumni/alumni/core/connect"
	"github.com/orgalumni/alumni/core/event"
	"github.com/orgalumni/alumni/core/job"
	"github.com/orgalumni/alumni/core/media"
	"github.com/orgalumni/alumni/core/post"
	"github.com/orgalumni/alumni/core/user"
	emailsvc "github.com/orgalumni/alumni/services/email"
	filestoresvc "github.com/orgalumni/alumni/services/filestore"
	logsvc "github.com/orgalumni/alumni/services/logger"
	realtimesvc "github.com/orgalumni/alumni/services/realtime"
	"github.com/orgalumni/alumni/storage/database"
	sqlxrepos "github.com/orgalumni/alumni/storage/database/sqlx"
)

// StrongPassword satisfies the password policy.
const StrongPassword = "Sup3r-S3cret!"

// PrepareDB opens a migrated in-memory database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, NewLogger(conf)); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

// NewLogger returns a logger that discards everything.
func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zap.NewNop(), conf)
}

// NewValidator returns a validator with every rule of the app registered.
func NewValidator(logger core.Logger) (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	return validate, translator
}

// Services holds a full set of services sharing one test database.
type Services struct {
	Conf       *core.Config
	DB         *sqlx.DB
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       *emailsvc.ConsoleServiceMock
	Storage    *filestoresvc.DiskStorage
	Hub        *realtimesvc.Hub

	UserRepo   user.Repository
	PostRepo   post.Repository
	EventRepo  event.Repository
	JobRepo    job.Repository
	UploadRepo media.Repository

	Users   user.Service
	Connect connect.Service
	Posts   post.Service
	Events  event.Service
	Jobs    job.Service
	Admin   admin.Service
	Media   media.Service
}

// NewServices wires every service on a fresh database. The hub is closed when the test ends.
func NewServices(t *testing.T) *Services {
	t.Helper()
	conf := core.NewTestConfig()
	db := PrepareDB(t)
	logger := NewLogger(conf)
	validate, translator := NewValidator(logger)

	conf.Storage.Dir = t.TempDir()
	storage, err := filestoresvc.NewDiskStorage(conf.Storage.Dir, conf.Storage.BaseURL)
	if err != nil {
		t.Fatalf("NewServices() failed: %v", err)
	}
	hub := realtimesvc.NewHub()
	t.Cleanup(hub.Close)

	s := &Services{
		Conf:       conf,
		DB:         db,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Mail:       emailsvc.NewConsoleServiceMock(conf, logger),
		Storage:    storage,
		Hub:        hub,
		UserRepo:   sqlxrepos.NewUserRepository(db),
		PostRepo:   sqlxrepos.NewPostRepository(db),
		EventRepo:  sqlxrepos.NewEventRepository(db),
		JobRepo:    sqlxrepos.NewJobRepository(db),
		UploadRepo: sqlxrepos.NewUploadRepository(db),
	}

	s.Media = media.NewService(s.UploadRepo, storage, conf, logger)
	s.Users = user.NewService(s.UserRepo, conf, s.Mail, hub)
	s.Connect = connect.NewService(s.Users, s.Media, validate)
	s.Posts = post.NewService(post.Options{
		Repo:      s.PostRepo,
		DB:        db,
		UserSvc:   s.Users,
		Media:     s.Media,
		Publisher: hub,
		Validate:  validate,
	})
	s.Events = event.NewService(event.Options{
		Repo:      s.EventRepo,
		DB:        db,
		UserSvc:   s.Users,
		Media:     s.Media,
		Publisher: hub,
		Validate:  validate,
	})
	s.Jobs = job.NewService(job.Options{
		Repo:      s.JobRepo,
		UserSvc:   s.Users,
		MailSvc:   s.Mail,
		Publisher: hub,
		Validate:  validate,
		Conf:      conf,
	})
	s.Admin = admin.NewService(admin.Options{
		UserSvc:  s.Users,
		PostSvc:  s.Posts,
		EventSvc: s.Events,
		JobSvc:   s.Jobs,
		MediaSvc: s.Media,
		Logger:   logger,
	})
	return s
}

// UserOpts are the optional attributes of CreateUser.
type UserOpts struct {
	Password  string
	Verified  bool
	Admin     bool
	Blocked   bool
	CreatedAt time.Time
}

// CreateUser stores a user directly through the repository.
func CreateUser(t *testing.T, repo user.Repository, name, email string, opts ...UserOpts) user.User {
	t.Helper()
	var o UserOpts
	if len(opts) > 0 {
		o = opts[0]
	}
	tstamp := time.Now().UTC()
	if !o.CreatedAt.IsZero() {
		tstamp = o.CreatedAt.UTC()
	}
	usr := user.User{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Skills:     []string{},
		IsVerified: o.Verified,
		IsAdmin:    o.Admin,
		IsBlocked:  o.Blocked,
		CreatedAt:  tstamp,
		UpdatedAt:  tstamp,
	}
	if o.Password != "" {
		if err := usr.SetPassword(o.Password); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateMember stores a verified user.
func CreateMember(t *testing.T, repo user.Repository, name, email string) user.User {
	t.Helper()
	return CreateUser(t, repo, name, email, UserOpts{Password: StrongPassword, Verified: true})
}

// CreateAdmin stores a verified admin.
func CreateAdmin(t *testing.T, repo user.Repository, name, email string) user.User {
	t.Helper()
	return CreateUser(t, repo, name, email, UserOpts{Password: StrongPassword, Verified: true, Admin: true})
}

// PNGImage is the smallest content sniffed as image/png.
var PNGImage = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

// Upload stores a PNG image uploaded by uploaderID.
func (s *Services) Upload(t *testing.T, uploaderID, kind, filename string) media.Upload {
	t.Helper()
	up, err := s.Media.UploadImage(context.Background(), uploaderID, kind, filename, PNGImage)
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	return up
}

// Stored reports whether the object behind key is still in the disk storage.
func (s *Services) Stored(t *testing.T, key string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(s.Storage.Dir(), filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("Stored() failed: %v", err)
	}
	return err == nil
}
