// Copyright 2026 The Workroom Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/workroom-foundation/workroom/lib/schema"
	"github.com/workroom-foundation/workroom/lib/view"
)

func runRequests(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: workroom requests <list|stats|kanban> [flags]")
	}
	switch args[0] {
	case "list":
		return runRequestsList(args[1:])
	case "stats":
		return runRequestsStats(args[1:])
	case "kanban":
		return runRequestsKanban(args[1:])
	default:
		return fmt.Errorf("unknown requests subcommand: %q", args[0])
	}
}

func runRequestsList(args []string) error {
	flags := pflag.NewFlagSet("requests list", pflag.ContinueOnError)
	configPath := configFlag(flags)
	status := flags.String("status", "", "filter by status (open, claimed, ...)")
	assignee := flags.String("assignee", "", "filter by assignee key")
	requester := flags.String("requester", "", "filter by requester key")
	search := flags.String("search", "", "substring match on item, city, notes")
	urgent := flags.Bool("urgent", false, "only urgent requests")
	oldest := flags.Bool("oldest", false, "oldest first instead of newest")
	limit := flags.Int("limit", 0, "maximum rows (0 = all)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	index, err := buildIndex(*configPath)
	if err != nil {
		return err
	}

	filter := view.Filter{
		AssignedTo:  *assignee,
		RequestedBy: *requester,
		Search:      *search,
	}
	if *status != "" {
		s := schema.RequestStatus(*status)
		if !s.IsKnown() {
			return fmt.Errorf("unknown status %q", *status)
		}
		filter.Status = []schema.RequestStatus{s}
	}
	if *urgent {
		filter.Urgent = urgent
	}
	order := view.SortNewest
	if *oldest {
		order = view.SortOldest
	}

	records := index.Filter(filter, order, view.Page{Limit: *limit})
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tSTATUS\tITEM\tQTY\tASSIGNEE\tREQUESTED")
	for _, record := range records {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%d\t%s\t%s\n",
			record.ID, record.Status, record.ItemName, record.Quantity,
			record.AssignedTo, record.RequestedAt)
	}
	return writer.Flush()
}

func runRequestsStats(args []string) error {
	flags := pflag.NewFlagSet("requests stats", pflag.ContinueOnError)
	configPath := configFlag(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	index, err := buildIndex(*configPath)
	if err != nil {
		return err
	}

	stats := index.Stats()
	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "total\t%d\n", stats.Total)
	fmt.Fprintf(writer, "active\t%d\n", stats.Active)
	fmt.Fprintf(writer, "urgent\t%d\n", stats.Urgent)
	for _, status := range []schema.RequestStatus{
		schema.StatusOpen, schema.StatusClaimed, schema.StatusPendingApproval,
		schema.StatusApproved, schema.StatusInProgress, schema.StatusShipped,
		schema.StatusDelivered, schema.StatusCancelled,
	} {
		if count := stats.ByStatus[status]; count > 0 {
			fmt.Fprintf(writer, "%s\t%d\n", status, count)
		}
	}
	return writer.Flush()
}

func runRequestsKanban(args []string) error {
	flags := pflag.NewFlagSet("requests kanban", pflag.ContinueOnError)
	configPath := configFlag(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	index, err := buildIndex(*configPath)
	if err != nil {
		return err
	}

	buckets := index.Kanban()
	for _, status := range []schema.RequestStatus{
		schema.StatusOpen, schema.StatusClaimed, schema.StatusPendingApproval,
		schema.StatusApproved, schema.StatusInProgress, schema.StatusShipped,
		schema.StatusDelivered, schema.StatusCancelled,
	} {
		records := buckets[status]
		if len(records) == 0 {
			continue
		}
		fmt.Printf("%s (%d)\n", status, len(records))
		for _, record := range records {
			marker := " "
			if record.Urgent {
				marker = "!"
			}
			fmt.Printf("  %s %s  %s x%d\n", marker, record.ID, record.ItemName, record.Quantity)
		}
	}
	return nil
}

func buildIndex(configPath string) (*view.Index, error) {
	ws, err := openWorkspace(configPath, newLogger())
	if err != nil {
		return nil, err
	}
	index := view.NewIndex()
	index.Rebuild(ws.Requests.Snapshot())
	return index, nil
}
