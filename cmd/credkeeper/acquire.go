package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/scjalliance/credkeeper/keeper"
	"github.com/scjalliance/credkeeper/runner"
)

// acquire leases a credential on the given service, prints it, and holds the
// lease until the hold duration lapses or the program is interrupted.
func acquire(ctx context.Context, logger *log.Logger, flags clientFlags, service string, wait, hold time.Duration, export bool) error {
	client, err := newClient(ctx, logger, flags, keeper.AttributedLabel(), false)
	if err != nil {
		return fmt.Errorf("unable to create credkeeper client: %v", err)
	}

	claim, err := client.Acquire(ctx, service, wait)
	if err != nil {
		return fmt.Errorf("unable to lease %s credential: %v", service, err)
	}

	if export {
		fmt.Printf("export %s=%s\n", runner.EnvUser, shellQuote(claim.Credential.User))
		fmt.Printf("export %s=%s\n", runner.EnvPassword, shellQuote(claim.Credential.Password))
		fmt.Printf("export %s=%s\n", runner.EnvExpires, shellQuote(claim.ExpiresOn.Format(time.RFC3339)))
	} else {
		fmt.Printf("user: %s\n", claim.Credential.User)
		fmt.Printf("password: %s\n", claim.Credential.Password)
		fmt.Printf("expires: %s (%s)\n", humanize.Time(claim.ExpiresOn), claim.ExpiresOn.Format(time.RFC3339))
		fmt.Printf("lease: %s\n", claim.Handle())
	}

	if hold > 0 {
		logger.Printf("Holding %s lease for %s", service, hold)
		timer := time.NewTimer(hold)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	} else {
		logger.Printf("Holding %s lease until interrupted", service)
		<-ctx.Done()
	}

	// The command context is already canceled when the hold ended on an
	// interrupt, so the release call gets a fresh one.
	releaseCtx, cancel := context.WithTimeout(context.Background(), *flags.Timeout)
	defer cancel()
	if err := claim.Release(releaseCtx); err != nil {
		return fmt.Errorf("unable to release %s lease: %v", service, err)
	}

	logger.Printf("Released %s lease", service)
	return nil
}

// shellQuote single-quotes a value for safe use in shell export lines.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
