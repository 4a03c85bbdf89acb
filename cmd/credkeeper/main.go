package main

import (
	"log"
	"os"
	"path/filepath"
	"syscall"

	"github.com/gentlemanautomaton/signaler"
	"gopkg.in/alecthomas/kingpin.v2"
)

func main() {
	app := kingpin.New(filepath.Base(os.Args[0]), "Leases pooled service credentials to one holder at a time.")
	app.Interspersed(false)

	var (
		serveCmd          = app.Command("serve", "Runs a credkeeper server.")
		serveConfig       = serveCmd.Flag("config", "Configuration file path.").Short('c').Envar("CREDKEEPER_CONFIG").Default("credkeeper.yaml").String()
		serveListen       = serveCmd.Flag("listen", "Listen address override.").String()
		serveStore        = serveCmd.Flag("leasestore", "Pool storage type.").Envar("LEASE_STORE").Default("auto").Enum("auto", "memory", "bolt")
		serveAuditLog     = serveCmd.Flag("auditlog", "Transaction log file path.").Envar("AUDIT_LOG").String()
		serveSchedule     = serveCmd.Flag("cpschedule", "Transaction checkpoint schedule.").Envar("CHECKPOINT_SCHEDULE").String()
		serveStatHatKey   = serveCmd.Flag("stathatkey", "Optional StatHat key for recording statistics.").Envar("STATHAT_KEY").String()
		serveStatInterval = serveCmd.Flag("statinterval", "Interval for recording statistics.").Envar("STATS_INTERVAL").Default("1m").Duration()
	)

	var (
		listCmd   = app.Command("list", "Lists services with their credential counts.")
		listFlags = addClientFlags(listCmd)
	)

	var (
		acquireCmd     = app.Command("acquire", "Acquires a credential lease and holds it until released.")
		acquireFlags   = addClientFlags(acquireCmd)
		acquireWait    = acquireCmd.Flag("wait", "How long to wait for a free credential.").Short('w').Duration()
		acquireHold    = acquireCmd.Flag("hold", "How long to hold the lease. Zero holds until interrupted.").Duration()
		acquireExport  = acquireCmd.Flag("export", "Print the credential as shell export lines.").Bool()
		acquireService = acquireCmd.Arg("service", "Service to lease a credential on.").Required().String()
	)

	var (
		runCmd     = app.Command("run", "Runs a program with a leased credential in its environment.")
		runFlags   = addClientFlags(runCmd)
		runWait    = runCmd.Flag("wait", "How long to wait for a free credential.").Short('w').Duration()
		runService = runCmd.Arg("service", "Service to lease a credential on.").Required().String()
		runProgram = runCmd.Arg("program", "Program to run.").Required().String()
		runArgs    = runCmd.Arg("arguments", "Program arguments.").Strings()
	)

	command, err := app.Parse(os.Args[1:])
	if err != nil {
		app.Fatalf("%s, try --help", err)
	}

	// Prepare a logger that prints to stderr
	logger := log.New(os.Stderr, "", log.LstdFlags)

	// Shutdown when we receive a termination signal
	shutdown := signaler.New().Capture(os.Interrupt, syscall.SIGTERM)

	// Ensure that we cleanup even if we panic
	defer shutdown.Trigger()

	// Announce termination
	announcement := shutdown.Then(func() { logger.Println("Received termination signal") })

	// Cancel a context after the announcement
	ctx := announcement.Context()

	switch command {
	case serveCmd.FullCommand():
		opts := serveOptions{
			ConfigPath:   *serveConfig,
			Listen:       *serveListen,
			Store:        *serveStore,
			AuditLog:     *serveAuditLog,
			Schedule:     *serveSchedule,
			StatHatKey:   *serveStatHatKey,
			StatInterval: *serveStatInterval,
		}
		if err := serve(ctx, logger, opts); err != nil {
			os.Exit(2)
		}
	case listCmd.FullCommand():
		if err := list(ctx, logger, listFlags); err != nil {
			logger.Print(err)
			os.Exit(2)
		}
	case acquireCmd.FullCommand():
		if err := acquire(ctx, logger, acquireFlags, *acquireService, *acquireWait, *acquireHold, *acquireExport); err != nil {
			logger.Print(err)
			os.Exit(2)
		}
	case runCmd.FullCommand():
		if code := run(ctx, logger, runFlags, *runService, *runWait, *runProgram, *runArgs); code != 0 {
			os.Exit(code)
		}
	}
}
