// Package interfaces defines core interfaces and types for the Greengrass
// device provisioner, separating interface definitions from implementations.
//
// The package provides the contract between the workflow components:
//
// # Identity
//
// IdentityStore: Read-only lookup of device enrollment records by device id
// or physical identifier (hardware address, serial number). Implementations
// include a SQLite file store and a Vault KV v2 store.
//
// DeviceIdentity: The enrollment record itself - IoT endpoints, credentials
// in PEM form, role alias and optional agent settings for one device.
//
// # Workflow results
//
// ProvisioningState: Computed view of an installation target directory,
// produced by the detector.
//
// ConnectivityResult: Outcome of the network reachability probe.
//
// ConfigBundle: Paths of the materialized configuration artifacts.
//
// # Error taxonomy
//
// Sentinel errors classify every terminal workflow failure so the CLI can
// map them to exit codes without inspecting message text.
package interfaces
