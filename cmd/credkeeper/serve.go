package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/scjalliance/credkeeper/config"
	"github.com/scjalliance/credkeeper/credential"
	"github.com/scjalliance/credkeeper/keeper"
	"github.com/scjalliance/credkeeper/provider/boltprov"
	"github.com/scjalliance/credkeeper/provider/logprov"
	"github.com/scjalliance/credkeeper/provider/memprov"
)

// serveOptions holds the flags of the serve subcommand.
type serveOptions struct {
	ConfigPath   string
	Listen       string
	Store        string
	AuditLog     string
	Schedule     string
	StatHatKey   string
	StatInterval time.Duration
}

// serve runs a credkeeper server until ctx is canceled.
func serve(ctx context.Context, logger *log.Logger, opts serveOptions) (err error) {
	const minStatInterval = 5 * time.Second
	if opts.StatInterval < minStatInterval {
		// Don't spam the stats recipient
		opts.StatInterval = minStatInterval
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		logger.Printf("Unable to load configuration: %v", err)
		return err
	}

	if opts.Listen != "" {
		cfg.ListenOn = opts.Listen
	}

	var checkpointSchedule []logprov.Schedule
	if opts.Schedule != "" {
		checkpointSchedule, err = logprov.ParseSchedule(opts.Schedule)
		if err != nil {
			logger.Printf("Unable to parse transaction checkpoint schedule: %v", err)
			return err
		}
	}

	logger.Println("Starting credkeeper daemon")
	defer logger.Printf("Stopped credkeeper daemon")

	auditFile, err := createAuditLog(opts.AuditLog)
	if err != nil {
		logger.Printf("Unable to open audit log: %v", err)
		return err
	}
	if auditFile != nil {
		defer auditFile.Close()
	}

	poolProvider, err := createPoolProvider(opts.Store, cfg.LeaseStore)
	if err != nil {
		logger.Printf("Unable to create pool provider: %v", err)
		return err
	}

	if auditFile != nil {
		auditLogger := log.New(auditFile, "", log.LstdFlags)
		poolProvider = logprov.New(poolProvider, auditLogger, checkpointSchedule...)
	}

	defer closeProvider(poolProvider, "pool", logger)

	services := make(map[string]keeper.ServicePool, len(cfg.Services))
	for name, svc := range cfg.Services {
		services[name] = keeper.ServicePool{
			Queue:   svc.Queue(),
			Expiry:  svc.Expiry(),
			MaxWait: svc.MaxWait(),
		}
	}

	serverCfg := keeper.ServerConfig{
		ListenSpec:      cfg.ListenOn,
		WebPath:         cfg.WebPath,
		AccessTokens:    cfg.AccessTokens,
		Services:        services,
		Provider:        poolProvider,
		ShutdownTimeout: 5 * time.Second,
		CertFile:        cfg.SSL.CertificateChainFile,
		KeyFile:         cfg.SSL.PrivateKeyFile,
		Logger:          logger,
	}

	logger.Printf("Created pool provider: %s", poolProvider.ProviderName())

	count := len(cfg.Services)
	switch count {
	case 1:
		logger.Printf("1 service configured")
	default:
		logger.Printf("%d services configured", count)
	}

	if recipient := createStatRecipient(opts.StatHatKey); recipient != nil {
		stats := NewStatManager(recipient)
		if err := stats.Init(poolProvider); err != nil {
			logger.Printf("Failed to collect pool statistics: %v", err)
			return err
		}

		statsCtx, statsCancel := context.WithCancel(context.Background())
		var wg sync.WaitGroup
		wg.Add(1)

		go func() {
			defer wg.Done()

			t := time.NewTicker(opts.StatInterval)
			defer t.Stop()

			for {
				select {
				case <-statsCtx.Done():
					// Attempt to send a final set of statistics after the
					// the server has stopped
					stats.CollectAndSend(poolProvider)
					return
				case <-t.C:
					if err := stats.CollectAndSend(poolProvider); err != nil {
						logger.Printf("Failed to collect and send pool statistics: %v", err)
					}
				}
			}
		}()

		err = keeper.Run(ctx, serverCfg)

		statsCancel()
		wg.Wait()
	} else {
		err = keeper.Run(ctx, serverCfg)
	}

	if err != nil {
		logger.Printf("Stopped credkeeper daemon due to error: %v", err)
	}
	return err
}

func createStatRecipient(statHatKey string) StatRecipient {
	if statHatKey != "" {
		return NewStatHatRecipient("credkeeper", statHatKey)
	}
	return nil
}

func createAuditLog(path string) (file *os.File, err error) {
	if path == "" {
		return nil, nil
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
}

// createPoolProvider selects the pool storage backend. In auto mode the
// presence of a persistent lease file in the configuration selects bolt.
func createPoolProvider(storage string, boltPath string) (credential.Provider, error) {
	switch strings.ToLower(storage) {
	case "auto":
		if boltPath == "" {
			return memprov.New(), nil
		}
		return openBolt(boltPath)
	case "mem", "memory":
		return memprov.New(), nil
	case "bolt", "boltdb":
		if boltPath == "" {
			return nil, fmt.Errorf("bolt storage selected but no persistent lease file is configured")
		}
		return openBolt(boltPath)
	default:
		return nil, fmt.Errorf("unknown pool storage type: %s", storage)
	}
}

func openBolt(path string) (credential.Provider, error) {
	prov, err := boltprov.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open or create bolt database \"%s\": %v", path, err)
	}
	return prov, nil
}

type closer interface {
	Close() error
}

func closeProvider(prov closer, name string, logger *log.Logger) {
	if err := prov.Close(); err != nil {
		if logger != nil {
			logger.Printf("The %s provider did not shut down correctly: %v", name, err)
		}
	}
}
