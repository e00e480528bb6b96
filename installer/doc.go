// Package installer drives the host-level installation of the Greengrass
// agent: service account creation, artifact acquisition, systemd unit
// registration and service startup, with best-effort log-based connection
// verification.
//
// All host mutations go through a CommandRunner so the driver can run in
// dry mode for tests and CI, where it records intended commands and
// produces a deterministic synthetic success without touching the system.
package installer
