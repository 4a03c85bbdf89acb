package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gentlemanautomaton/serviceresolver"
	"github.com/scjalliance/credkeeper/keeper"
)

// DefaultEndpoint is used when no server was specified and DNS service
// resolution fails to locate a keeper.
const DefaultEndpoint = keeper.Endpoint("http://localhost:9992")

// healthCheckTimeout bounds the probe of each candidate endpoint.
const healthCheckTimeout = 2 * time.Second

func collectEndpoints(ctx context.Context) (endpoints []keeper.Endpoint, err error) {
	services, err := serviceresolver.DefaultResolver.Resolve(ctx, "credkeeper")
	if err != nil {
		return nil, fmt.Errorf("failed to locate credkeeper endpoints: %v", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("unable to detect host domain")
	}
	for _, service := range services {
		for _, addr := range service.Addrs {
			endpoint := keeper.Endpoint(fmt.Sprintf("http://%s:%d", strings.TrimSuffix(addr.Target, "."), addr.Port))
			endpoints = append(endpoints, endpoint)
		}
	}
	return endpoints, nil
}

// selectEndpoint returns the keeper endpoint the client subcommands should
// talk to. An explicitly provided server always wins. Otherwise candidates
// from DNS service resolution are probed in order and the first healthy one
// is selected, with DefaultEndpoint as a last resort.
func selectEndpoint(ctx context.Context, logger *log.Logger, server string) keeper.Endpoint {
	if server != "" {
		return keeper.Endpoint(server)
	}

	endpoints, err := collectEndpoints(ctx)
	if err != nil {
		logger.Printf("Endpoint discovery failed: %v", err)
		return DefaultEndpoint
	}

	for _, endpoint := range endpoints {
		if endpoint.Healthy(healthCheckTimeout) {
			return endpoint
		}
		logger.Printf("Endpoint %s is not responding", endpoint)
	}

	return DefaultEndpoint
}
