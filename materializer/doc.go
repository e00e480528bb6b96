// Package materializer turns a device identity into an on-disk Greengrass
// configuration bundle: the directory skeleton, the certificate material and
// the nucleus config.yaml.
//
// Materialization is idempotent. Re-running it for the same root overwrites
// the previous bundle, so a device whose identity record changed converges
// to the new configuration on the next run. Private key material is written
// owner-only; everything else is group-readable.
package materializer
