// Package keeper provides clients and servers for the credkeeper credential
// leasing protocol.
//
// Clients acquire exclusive, time-boxed claims on shared service
// credentials. Each claim is released exactly once, even when the holding
// process is interrupted by a termination signal.
package keeper
