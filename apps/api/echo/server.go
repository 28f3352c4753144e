package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/orgalumni/alumni/core"
	"github.com/orgalumni/alumni/core/admin"
	"github.com/orgalumni/alumni/core/connect"
	"github.com/orgalumni/alumni/core/event"
	"github.com/orgalumni/alumni/core/job"
	"github.com/orgalumni/alumni/core/media"
	"github.com/orgalumni/alumni/core/post"
	"github.com/orgalumni/alumni/core/user"
	filestoresvc "github.com/orgalumni/alumni/services/filestore"
	realtimesvc "github.com/orgalumni/alumni/services/realtime"
)

type (
	Options struct {
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

	Server interface {
		http.Handler
		Auth() *Auth
		Start()
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
		Shutdown(context.Context) error
		Close() error
	}

	server struct {
		opts     Options
		app      *echo.Echo
		auth     *Auth
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		auth:     NewAuth(opts.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	s.app.Use(middleware.BodyLimit(bodyLimit(conf)))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if conf.Storage.Backend == filestoresvc.BackendDisk && conf.Storage.Dir != "" {
		s.app.Static("/media", conf.Storage.Dir)
	}

	v1 := s.app.Group("/v1")
	authed := v1.Group("", s.auth.Middleware(), currentUserMiddleware(s.opts.UserSvc))
	members := authed.Group("", verifiedMiddleware)

	registerAccountAPI(v1, authed, &accountApi{
		svc:      s.opts.UserSvc,
		auth:     s.auth,
		validate: s.opts.Validate,
		logger:   s.opts.Logger,
	})
	registerStreamAPI(v1, &streamApi{
		hub:      s.opts.Hub,
		auth:     s.auth,
		userSvc:  s.opts.UserSvc,
		logger:   s.opts.Logger,
		upgrader: newUpgrader(),
	})
	registerAlumniAPI(members, &alumniApi{svc: s.opts.ConnectSvc, postSvc: s.opts.PostSvc})
	registerPostAPI(members, &postApi{svc: s.opts.PostSvc})
	registerEventAPI(members, &eventApi{svc: s.opts.EventSvc})
	registerJobAPI(members, &jobApi{svc: s.opts.JobSvc})
	registerAdminAPI(members, &adminApi{svc: s.opts.AdminSvc, validate: s.opts.Validate})
	registerUploadAPI(members, &uploadApi{svc: s.opts.MediaSvc, maxSize: conf.Storage.MaxImageSize})
}

// bodyLimit leaves room for the multipart envelope around the largest image.
func bodyLimit(conf *core.Config) string {
	mb := conf.Storage.MaxImageSize/(1<<20) + 1
	if mb < 2 {
		mb = 2
	}
	return strconv.FormatInt(mb, 10) + "M"
}

func (s *server) Auth() *Auth { return s.auth }

func (s *server) Start() {
	s.opts.Logger.Info("API listening on " + s.opts.Conf.Server.Address)
	if err := s.app.Start(s.opts.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
