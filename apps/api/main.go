package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/stackschool/academy/apps/api/echo"
	"github.com/stackschool/academy/core"
	"github.com/stackschool/academy/core/course"
	"github.com/stackschool/academy/core/notification"
	"github.com/stackschool/academy/core/progress"
	"github.com/stackschool/academy/core/streak"
	"github.com/stackschool/academy/core/tasks"
	"github.com/stackschool/academy/core/user"
	emailsvc "github.com/stackschool/academy/services/email"
	gradersvc "github.com/stackschool/academy/services/grader"
	logsvc "github.com/stackschool/academy/services/logger"
	"github.com/stackschool/academy/storage/database"
	sqlxrepos "github.com/stackschool/academy/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("failed to close DB", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var grader progress.Grader
	if conf.Grader.BaseURL != "" {
		grader = gradersvc.NewHTTPService(conf, logger)
	} else {
		grader = gradersvc.NewConsoleService(logger)
	}

	runner := tasks.NewRunner(logger)
	runner.Start()

	usrRepo := sqlxrepos.NewUserRepository(db)
	courseRepo := sqlxrepos.NewCourseRepository(db)

	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	courseSvc := course.NewService(courseRepo)
	streakSvc := streak.NewService(sqlxrepos.NewStreakRepository(db))
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), usrRepo, mailSvc)
	progressSvc := progress.NewService(
		sqlxrepos.NewProgressRepository(db),
		courseRepo,
		streakSvc,
		notifSvc,
		grader,
		runner,
		logger,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(conf, logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err = http.ListenAndServe(conf.Server.DebugAddr, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			UserSvc:     usrSvc,
			CourseSvc:   courseSvc,
			ProgressSvc: progressSvc,
			StreakSvc:   streakSvc,
			NotifSvc:    notifSvc,
			Validate:    validate,
			Translator:  translator,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// let queued tasks drain before the listener goes away
		if err = runner.Stop(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not drain task runner: %v", err), err)
		}

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		return nil, err
	}
	return sqlx.NewDb(db, conf.Database.Engine), nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
