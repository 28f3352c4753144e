package dig_container

import (
	"context"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/orgalumni/alumni/apps/api/echo"
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

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// ServiceParams are the dependencies shared by the domain services.
type ServiceParams struct {
	dig.In

	Conf      *core.Config
	DB        core.DB
	Logger    core.Logger
	Validate  *validator.Validate
	MailSvc   core.EmailService
	Media     media.Service
	Publisher core.Publisher
	UserSvc   user.Service
}

type ServerParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Hub        *realtimesvc.Hub

	UserSvc    user.Service
	ConnectSvc connect.Service
	PostSvc    post.Service
	EventSvc   event.Service
	JobSvc     job.Service
	AdminSvc   admin.Service
	MediaSvc   media.Service
}

func newLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newDBLogger(zl *zap.Logger, conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("db"), conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, core.DB, core.DBExecutor, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, nil, nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "opening database")
	}
	if err = database.Migrate(db, loggerParam.Logger); err != nil {
		_ = db.Close()
		return nil, nil, nil, errors.Wrap(err, "migrating database")
	}
	return db, db, db, nil
}

func newValidator(logger core.Logger) (*validator.Validate, ut.Translator) {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)
	return validate, translator
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newFileStorage(conf *core.Config) (core.FileStorage, error) {
	return filestoresvc.New(context.Background(), conf)
}

func newHub() (*realtimesvc.Hub, core.Publisher) {
	hub := realtimesvc.NewHub()
	return hub, hub
}

func newUserService(repo user.Repository, conf *core.Config, mailSvc core.EmailService, publisher core.Publisher) user.Service {
	return user.NewService(repo, conf, mailSvc, publisher)
}

func newConnectService(p ServiceParams) connect.Service {
	return connect.NewService(p.UserSvc, p.Media, p.Validate)
}

func newPostService(repo post.Repository, p ServiceParams) post.Service {
	return post.NewService(post.Options{
		Repo:      repo,
		DB:        p.DB,
		UserSvc:   p.UserSvc,
		Media:     p.Media,
		Publisher: p.Publisher,
		Validate:  p.Validate,
	})
}

func newEventService(repo event.Repository, p ServiceParams) event.Service {
	return event.NewService(event.Options{
		Repo:      repo,
		DB:        p.DB,
		UserSvc:   p.UserSvc,
		Media:     p.Media,
		Publisher: p.Publisher,
		Validate:  p.Validate,
	})
}

func newJobService(repo job.Repository, p ServiceParams) job.Service {
	return job.NewService(job.Options{
		Repo:      repo,
		UserSvc:   p.UserSvc,
		MailSvc:   p.MailSvc,
		Publisher: p.Publisher,
		Validate:  p.Validate,
		Conf:      p.Conf,
	})
}

func newAdminService(p ServiceParams, postSvc post.Service, eventSvc event.Service, jobSvc job.Service) admin.Service {
	return admin.NewService(admin.Options{
		UserSvc:  p.UserSvc,
		PostSvc:  postSvc,
		EventSvc: eventSvc,
		JobSvc:   jobSvc,
		MediaSvc: p.Media,
		Logger:   p.Logger,
	})
}

func newServer(p ServerParams) echoapi.Server {
	return echoapi.NewServer(echoapi.Options{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Validate:   p.Validate,
		Translator: p.Translator,
		Hub:        p.Hub,
		UserSvc:    p.UserSvc,
		ConnectSvc: p.ConnectSvc,
		PostSvc:    p.PostSvc,
		EventSvc:   p.EventSvc,
		JobSvc:     p.JobSvc,
		AdminSvc:   p.AdminSvc,
		MediaSvc:   p.MediaSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newValidator))
	must(c.Provide(newEmailService))
	must(c.Provide(newFileStorage))
	must(c.Provide(newHub))

	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewPostRepository))
	must(c.Provide(sqlxrepos.NewEventRepository))
	must(c.Provide(sqlxrepos.NewJobRepository))
	must(c.Provide(sqlxrepos.NewUploadRepository))

	must(c.Provide(newUserService))
	must(c.Provide(newConnectService))
	must(c.Provide(newPostService))
	must(c.Provide(newEventService))
	must(c.Provide(newJobService))
	must(c.Provide(newAdminService))
	must(c.Provide(media.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
