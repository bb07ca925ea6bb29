package main

import (
	"context"
	"fmt"
)

// recompute rebuilds every member's attendance state from the rolling
// 90-day absence window.
func (cli *commandLine) recompute() error {
	summary, err := cli.tracker.Recompute(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("%d member(s) processed\n", summary.MembersProcessed)
	fmt.Printf("  early warning alerts created: %d\n", summary.EarlyWarningCreated)
	fmt.Printf("  at risk alerts created:       %d\n", summary.AtRiskCreated)
	fmt.Printf("  critical alerts created:      %d\n", summary.CriticalCreated)
	return nil
}

func (cli *commandLine) resolveAlert(alertID, notes string) error {
	alert, err := cli.tracker.Resolve(context.Background(), alertID, notes)
	if err != nil {
		return err
	}
	fmt.Printf("alert %s (%s) resolved\n", alert.ID, alert.Level)
	return nil
}
