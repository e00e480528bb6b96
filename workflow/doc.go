// Package workflow sequences a provisioning run: idempotency check,
// connectivity probe, identity lookup, bundle materialization and agent
// installation, publishing every phase transition through the status
// publisher.
//
// A run is one-shot. Already-provisioned and no-connectivity are ordinary
// outcomes, not errors; only failures that leave the device unprovisioned
// surface as errors.
package workflow
