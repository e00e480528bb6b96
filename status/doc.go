// Package status persists the current workflow state for external monitors.
//
// The publisher owns the single mutable WorkflowStatus. Every mutation is
// serialized under a mutex and immediately written to a well-known path
// using a write-to-temporary-then-rename pattern, so a concurrent reader
// never observes a truncated document. The published file is world-readable
// but not world-writable.
package status
