package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/katembo/kanisa/core"
	"github.com/katembo/kanisa/core/attendance"
	"github.com/katembo/kanisa/core/member"
	"github.com/katembo/kanisa/core/schedule"
)

var errHelp = errors.New("help provided")

const dateLayout = "2006-01-02"

type commandLine struct {
	db            *sql.DB
	conf          *core.Config
	scheduleSvc   schedule.Service
	attendanceSvc attendance.Service
	tracker       *member.Tracker
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run database migrations (up|down|status|...)")
	fmt.Println("  generatesessions -template ID -start YYYY-MM-DD -end YYYY-MM-DD - materialize a template's sessions over a date range")
	fmt.Println("  closesession -session ID - mark members without a record as absent")
	fmt.Println("  recompute - rebuild attendance state from the 90-day window")
	fmt.Println("  resolvealert -alert ID [-notes NOTES] - manually resolve an alert")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	generateCmd := flag.NewFlagSet("generatesessions", flag.ExitOnError)
	generateTpl := generateCmd.String("template", "", "The recurring template's ID.")
	generateStart := generateCmd.String("start", "", "Range start date (YYYY-MM-DD).")
	generateEnd := generateCmd.String("end", "", "Range end date (YYYY-MM-DD).")

	closeCmd := flag.NewFlagSet("closesession", flag.ExitOnError)
	closeSession := closeCmd.String("session", "", "The session's ID.")

	resolveCmd := flag.NewFlagSet("resolvealert", flag.ExitOnError)
	resolveAlert := resolveCmd.String("alert", "", "The alert's ID.")
	resolveNotes := resolveCmd.String("notes", "", "Optional resolution notes.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "generatesessions":
		if err := generateCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *generateTpl == "" || *generateStart == "" || *generateEnd == "" {
			generateCmd.Usage()
			return errHelp
		}
		start, err := time.Parse(dateLayout, *generateStart)
		if err != nil {
			return err
		}
		end, err := time.Parse(dateLayout, *generateEnd)
		if err != nil {
			return err
		}
		return cli.generateSessions(*generateTpl, start, end)
	case "closesession":
		if err := closeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *closeSession == "" {
			closeCmd.Usage()
			return errHelp
		}
		return cli.closeSession(*closeSession)
	case "recompute":
		return cli.recompute()
	case "resolvealert":
		if err := resolveCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resolveAlert == "" {
			resolveCmd.Usage()
			return errHelp
		}
		return cli.resolveAlert(*resolveAlert, *resolveNotes)
	default:
		cli.printUsage()
		return errHelp
	}
}
