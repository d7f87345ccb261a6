package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/robfig/cron/v3"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/reminder"
	emailsvc "github.com/kasolo/mafunzo/services/email"
	logsvc "github.com/kasolo/mafunzo/services/logger"
	"github.com/kasolo/mafunzo/storage/database"
	sqlxrepos "github.com/kasolo/mafunzo/storage/database/sqlx"
)

// The scheduler runs the reminder engine on a cron spec, by default every
// morning. Reruns are harmless: the quiet interval makes the pass a no-op
// until the next reminder is actually due.
func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "SCHED : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}
	dbx := sqlx.NewDb(db, conf.Database.Engine)

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	engine := reminder.NewEngine(
		sqlxrepos.NewReminderRepository(dbx),
		sqlxrepos.NewPersonRepository(dbx),
		sqlxrepos.NewCourseRepository(dbx),
		mailSvc, conf, logger,
	)

	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))
	_, err = c.AddFunc(conf.Reminder.CronSpec, func() {
		res, err := engine.Run(0)
		if err != nil {
			logger.Error(fmt.Sprintf("reminder run failed: %v", err), err)
			return
		}
		logger.Info(fmt.Sprintf("reminder run: sent=%d failed=%d cap_reached=%d final_notices=%d",
			res.Sent, res.Failed, res.CapReached, res.FinalNotices))
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("scheduling reminder run: %v", err), err)
	}

	logger.Info(fmt.Sprintf("Scheduler started : spec %q", conf.Reminder.CronSpec))
	c.Start()
	defer c.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit
	logger.Info(fmt.Sprintf("%v: Scheduler stopping", sig))
}
