package main

import (
	"context"
	"log"
	"time"

	"github.com/scjalliance/credkeeper/keeper"
	"gopkg.in/alecthomas/kingpin.v2"
)

// clientFlags holds the keeper connection flags shared by the client
// subcommands.
type clientFlags struct {
	Server   *string
	Token    *string
	Label    *string
	Insecure *bool
	CACert   *string
	Timeout  *time.Duration
}

func addClientFlags(cmd *kingpin.CmdClause) clientFlags {
	return clientFlags{
		Server:   cmd.Flag("server", "Credkeeper server host and port.").Short('s').Envar("CREDKEEPER_SERVER").String(),
		Token:    cmd.Flag("token", "Access token presented to the keeper.").Short('t').Envar("CREDKEEPER_TOKEN").Required().String(),
		Label:    cmd.Flag("label", "Client label reported to the keeper.").String(),
		Insecure: cmd.Flag("insecure", "Skip verification of the keeper's TLS certificate.").Bool(),
		CACert:   cmd.Flag("cacert", "PEM bundle of additional certificate authorities to trust.").String(),
		Timeout:  cmd.Flag("timeout", "Timeout for keeper calls that don't wait on a lease.").Default("30s").Duration(),
	}
}

// newClient creates a keeper client from the given flags. When no server
// was specified it attempts to discover one via DNS service resolution,
// falling back to the default endpoint.
func newClient(ctx context.Context, logger *log.Logger, flags clientFlags, label string, guarded bool) (*keeper.Client, error) {
	endpoint := selectEndpoint(ctx, logger, *flags.Server)

	if *flags.Label != "" {
		label = *flags.Label
	}

	return keeper.NewClient(keeper.ClientConfig{
		Endpoint: endpoint,
		Token:    *flags.Token,
		Label:    label,
		TLS: keeper.TLSConfig{
			InsecureSkipVerify: *flags.Insecure,
			CAFile:             *flags.CACert,
		},
		Timeout:            *flags.Timeout,
		DisableSignalGuard: !guarded,
		Logger:             logger,
	})
}
