// Package prober resolves targets and probes TCP ports with plain connection
// attempts. The Coordinator bounds the number of probes in flight with a fixed
// worker pool and assembles results in port order once every worker is done.
package prober
