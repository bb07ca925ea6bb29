package main

import (
	"log"
	"os"

	"github.com/katembo/kanisa/core"
	"github.com/katembo/kanisa/core/attendance"
	"github.com/katembo/kanisa/core/member"
	"github.com/katembo/kanisa/core/schedule"
	logsvc "github.com/katembo/kanisa/services/logger"
	"github.com/katembo/kanisa/storage/database"
	sqlxrepos "github.com/katembo/kanisa/storage/database/sqlx"
)

var stdLogger *log.Logger

func main() {
	defer os.Exit(0)

	stdLogger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	memberRepo := sqlxrepos.NewMemberRepository(db)
	alertRepo := sqlxrepos.NewAlertRepository(db)
	scheduleRepo := sqlxrepos.NewScheduleRepository(db)
	attendanceRepo := sqlxrepos.NewAttendanceRepository(db)

	tracker := member.NewTracker(memberRepo, alertRepo, attendanceRepo, logger)

	// start CLI
	cli := commandLine{
		db:            db.DB,
		conf:          conf,
		scheduleSvc:   schedule.NewService(scheduleRepo, logger),
		attendanceSvc: attendance.NewService(attendanceRepo, memberRepo, scheduleRepo, alertRepo, tracker, logger),
		tracker:       tracker,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		stdLogger.Fatal(err)
	}
}
