package interfaces

import "errors"

// Workflow error taxonomy. Every terminal failure wraps exactly one of
// these so callers can classify without parsing message text.
var (
	// ErrConfigurationInvalid indicates bad or missing identity fields, or
	// a corrupted on-disk configuration.
	ErrConfigurationInvalid = errors.New("configuration invalid")

	// ErrIdentityNotFound indicates no enrollment record matched the device.
	ErrIdentityNotFound = errors.New("device identity not found")

	// ErrMaterialization indicates a filesystem or permission error while
	// writing the configuration bundle.
	ErrMaterialization = errors.New("materialization failure")

	// ErrInstallation indicates an account, download, service-manager or
	// verification error during installation.
	ErrInstallation = errors.New("installation failure")

	// ErrNotConnected is returned by identity store operations invoked
	// before Connect.
	ErrNotConnected = errors.New("identity store not connected")
)
