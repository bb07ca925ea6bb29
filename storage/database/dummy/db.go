package dummydb

import (
	"sync"

	"github.com/katembo/kanisa/core/attendance"
	"github.com/katembo/kanisa/core/member"
	"github.com/katembo/kanisa/core/schedule"
)

type (
	DB struct {
		member     *memberTable
		alert      *alertTable
		contact    *contactTable
		template   *templateTable
		session    *sessionTable
		attendance *attendanceTable
	}

	memberTable struct {
		sync.RWMutex
		table map[string]*member.Member
	}

	alertTable struct {
		sync.RWMutex
		table map[string]*member.Alert
	}

	contactTable struct {
		sync.RWMutex
		table map[string]*member.ContactLog
	}

	templateTable struct {
		sync.RWMutex
		table map[string]*schedule.Template
	}

	sessionTable struct {
		sync.RWMutex
		table map[string]*schedule.Session
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Attendance
	}
)

func Open() (*DB, error) {
	db := &DB{
		member:     &memberTable{table: make(map[string]*member.Member)},
		alert:      &alertTable{table: make(map[string]*member.Alert)},
		contact:    &contactTable{table: make(map[string]*member.ContactLog)},
		template:   &templateTable{table: make(map[string]*schedule.Template)},
		session:    &sessionTable{table: make(map[string]*schedule.Session)},
		attendance: &attendanceTable{table: make(map[string]*attendance.Attendance)},
	}
	return db, nil
}
