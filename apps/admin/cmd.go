package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term"

	"github.com/kasolo/mafunzo/core"
	"github.com/kasolo/mafunzo/core/person"
	"github.com/kasolo/mafunzo/core/reminder"
	emailsvc "github.com/kasolo/mafunzo/services/email"
	"github.com/kasolo/mafunzo/storage/database"
	sqlxrepos "github.com/kasolo/mafunzo/storage/database/sqlx"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf   *core.Config
	logger core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                     - apply pending database migrations")
	fmt.Println("  remind [-course ID] [-kind KIND] [-force]   - run the reminder engine now")
	fmt.Println("  invite -course ID                           - email pending invitations for a course")
	fmt.Println("  hashpassword                                - hash an admin password for the config")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	remindCmd := flag.NewFlagSet("remind", flag.ExitOnError)
	remindCourse := remindCmd.Int("course", 0, "Limit the run to one course ID. 0 means all courses.")
	remindKind := remindCmd.String("kind", "", "Run a single kind: RSVP, INFO or HOTEL. Empty runs all.")
	remindForce := remindCmd.Bool("force", false, "Skip the quiet-interval check. The cap still applies.")

	inviteCmd := flag.NewFlagSet("invite", flag.ExitOnError)
	inviteCourse := inviteCmd.Int("course", 0, "The course ID to send invitations for.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "remind":
		if err := remindCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.remind(*remindCourse, *remindKind, *remindForce)
	case "invite":
		if err := inviteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *inviteCourse == 0 {
			inviteCmd.Usage()
			return errHelp
		}
		return cli.invite(*inviteCourse)
	case "hashpassword":
		return cli.hashPassword()
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate() error {
	if err := database.CreateIfNotExist(cli.conf); err != nil {
		return err
	}
	db, err := database.Open(cli.conf)
	if err != nil {
		return err
	}
	defer db.Close()
	return database.Migrate(db)
}

func (cli *commandLine) remind(courseID int, kind string, force bool) error {
	engine, _, cleanup, err := cli.setUpEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	var res reminder.RunResult
	if kind == "" {
		res, err = engine.Run(courseID)
	} else {
		res, err = engine.RunKind(courseID, kind, force)
	}
	if err != nil {
		return err
	}
	return cli.printResult(res)
}

func (cli *commandLine) invite(courseID int) error {
	_, personSvc, cleanup, err := cli.setUpEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := personSvc.SendInvites(courseID)
	if err != nil {
		return err
	}
	return cli.printResult(res)
}

func (cli *commandLine) hashPassword() error {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		return errHelp
	}

	hash, err := bcrypt.GenerateFromPassword(pwd, bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	fmt.Println(string(hash))
	return nil
}

func (cli *commandLine) setUpEngine() (*reminder.Engine, *person.Service, func(), error) {
	db, err := database.Open(cli.conf)
	if err != nil {
		return nil, nil, nil, err
	}
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, nil, errors.Wrap(err, "pinging database")
	}
	dbx := sqlx.NewDb(db, cli.conf.Database.Engine)

	var mailSvc core.EmailService
	if cli.conf.Debug {
		mailSvc = emailsvc.NewConsoleService(cli.conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(cli.conf, cli.logger)
	}
	if err := core.ParseEmailTemplates(cli.conf); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}

	courseRepo := sqlxrepos.NewCourseRepository(dbx)
	personRepo := sqlxrepos.NewPersonRepository(dbx)
	reminderRepo := sqlxrepos.NewReminderRepository(dbx)

	engine := reminder.NewEngine(reminderRepo, personRepo, courseRepo, mailSvc, cli.conf, cli.logger)
	personSvc := person.NewService(personRepo, courseRepo, mailSvc, cli.conf, cli.logger)

	cleanup := func() { _ = db.Close() }
	return engine, personSvc, cleanup, nil
}

func (cli *commandLine) printResult(res interface{}) error {
	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
