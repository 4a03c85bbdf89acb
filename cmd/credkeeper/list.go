package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
)

// list prints every service offered by the keeper along with its credential
// counts.
func list(ctx context.Context, logger *log.Logger, flags clientFlags) error {
	client, err := newClient(ctx, logger, flags, "", false)
	if err != nil {
		return fmt.Errorf("unable to create credkeeper client: %v", err)
	}

	overview, err := client.Overview(ctx)
	if err != nil {
		return fmt.Errorf("unable to retrieve service overview: %v", err)
	}

	names := make([]string, 0, len(overview.Services))
	for name := range overview.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	var inUse, available int
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tIN USE\tAVAILABLE")
	for _, name := range names {
		status := overview.Services[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, status.CredentialsInUse, status.CredentialsAvailable)
		inUse += status.CredentialsInUse
		available += status.CredentialsAvailable
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\n", inUse, available)
	return tw.Flush()
}
