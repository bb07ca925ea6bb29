package main

import (
	"context"
	"fmt"
	"time"
)

// generateSessions materializes a recurring template's sessions over the
// given date range. Existing sessions are reused; the run is idempotent.
func (cli *commandLine) generateSessions(templateID string, start, end time.Time) error {
	sessions, err := cli.scheduleSvc.Expand(context.Background(), templateID, start, end)
	if err != nil {
		return err
	}
	fmt.Printf("%d session(s) materialized\n", len(sessions))
	for _, s := range sessions {
		fmt.Printf("  %s  %s\n", s.Date.Format(dateLayout), s.Name)
	}
	return nil
}

// closeSession sweeps the session, marking every member without an
// attendance record as absent.
func (cli *commandLine) closeSession(sessionID string) error {
	count, err := cli.attendanceSvc.CloseSession(context.Background(), sessionID)
	if err != nil {
		return err
	}
	fmt.Printf("%d member(s) marked absent\n", count)
	return nil
}
