package main

import (
	"fmt"
	"log"
	"os"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/event"
	"github.com/orgalumni/alumni/core/job"
	"github.com/orgalumni/alumni/core/post"
	"github.com/orgalumni/alumni/core/user"
	emailsvc "github.com/orgalumni/alumni/services/email"
	logsvc "github.com/orgalumni/alumni/services/logger"
	"github.com/orgalumni/alumni/storage/database"
	sqlxrepos "github.com/orgalumni/alumni/storage/database/sqlx"
)

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer logger.Sync()

	// set up DB
	if err = database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer func() { _ = db.Close() }()

	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(logger)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), conf, mailSvc, nil)

	// start CLI
	cli := commandLine{
		db:       db,
		logger:   logger,
		validate: validate,
		out:      os.Stdout,
		usrSvc:   usrSvc,
		postSvc: post.NewService(post.Options{
			Repo: sqlxrepos.NewPostRepository(db), DB: db, UserSvc: usrSvc, Validate: validate,
		}),
		eventSvc: event.NewService(event.Options{
			Repo: sqlxrepos.NewEventRepository(db), DB: db, UserSvc: usrSvc, Validate: validate,
		}),
		jobSvc: job.NewService(job.Options{
			Repo: sqlxrepos.NewJobRepository(db), UserSvc: usrSvc, MailSvc: mailSvc, Validate: validate, Conf: conf,
		}),
	}
	if err = cli.run(os.Args); err != nil {
		if err != errHelp {
			_, _ = fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		logger.Sync()
		_ = db.Close()
		os.Exit(1)
	}
}
