// Package netcheck determines whether the device has a usable network path
// to the cloud endpoints it needs before provisioning begins.
//
// A probe runs four checks in order, short-circuiting on the first failure:
// DNS resolution of a well-known public name, a TLS-verified HTTPS
// reachability check against a fixed reference endpoint, a latency
// measurement of that same request, and finally a sweep over the candidate
// service endpoints stopping at the first success. When an override endpoint
// is configured it fully replaces the candidate list, which allows running
// in controlled environments without real cloud reachability.
//
// All network calls are bounded by explicit timeouts; a probe can never
// hang indefinitely.
package netcheck
