package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgefleet/greengrass-provisioner/installer"
	"github.com/edgefleet/greengrass-provisioner/interfaces"
	"github.com/edgefleet/greengrass-provisioner/status"
)

// Outcome classifies how a run ended without an error.
type Outcome int

const (
	// OutcomeCompleted means the device was provisioned in this run.
	OutcomeCompleted Outcome = iota
	// OutcomeAlreadyProvisioned means the device needed no work.
	OutcomeAlreadyProvisioned
	// OutcomeNoConnectivity means the run stopped at the network probe.
	OutcomeNoConnectivity
)

// StateDetector reports whether the target is already provisioned.
type StateDetector interface {
	Detect() interfaces.ProvisioningState
}

// ConnectivityProbe verifies network reachability.
type ConnectivityProbe interface {
	Check(ctx context.Context) interfaces.ConnectivityResult
}

// BundleMaterializer writes the configuration bundle for an identity.
type BundleMaterializer interface {
	Materialize(identity *interfaces.DeviceIdentity) interfaces.ConfigBundle
}

// AgentInstaller performs the host-level installation.
type AgentInstaller interface {
	SetProgress(fn interfaces.ProgressFunc)
	Provision(ctx context.Context, identity *interfaces.DeviceIdentity) installer.Result
}

// Workflow wires the provisioning stages together.
type Workflow struct {
	Status       *status.Publisher
	Detector     StateDetector
	Probe        ConnectivityProbe
	Store        interfaces.IdentityStore
	Materializer BundleMaterializer
	Driver       AgentInstaller

	// DeviceIdentifier is the lookup key for the identity store, usually a
	// MAC address or serial number.
	DeviceIdentifier string

	Log *slog.Logger
}

// Run executes the provisioning sequence once. Already-provisioned and
// no-connectivity return their outcome with a nil error; any other early
// stop is an error and leaves the published status in the error phase up
// to the caller.
func (w *Workflow) Run(ctx context.Context) (Outcome, error) {
	w.Status.Update(status.PhaseCheckingProvisioning, "", status.ProgressUnset)
	state := w.Detector.Detect()
	if state.Provisioned {
		w.Status.Update(status.PhaseAlreadyProvisioned,
			fmt.Sprintf("Already provisioned as %s", state.ThingName), status.ProgressUnset)
		w.Log.Info("Device is already provisioned",
			slog.String("thingName", state.ThingName),
			slog.String("version", state.AgentVersion))
		return OutcomeAlreadyProvisioned, nil
	}
	w.Log.Info("Device is not provisioned", slog.String("details", state.Details))

	w.Status.Update(status.PhaseCheckingConnectivity, "", status.ProgressUnset)
	connectivity := w.Probe.Check(ctx)
	if !connectivity.IsConnected {
		w.Status.Update(status.PhaseNoConnectivity, connectivity.Error, status.ProgressUnset)
		w.Log.Error("No connectivity, aborting run", slog.String("err", connectivity.Error))
		return OutcomeNoConnectivity, nil
	}

	w.Status.Update(status.PhaseReadingIdentity, "", status.ProgressUnset)
	identity, err := w.lookupIdentity(ctx)
	if err != nil {
		return 0, err
	}
	if err := identity.Validate(); err != nil {
		return 0, fmt.Errorf("device identity for %s is not usable: %w", identity.DeviceID, err)
	}
	w.Log.Info("Loaded device identity",
		slog.String("deviceID", identity.DeviceID),
		slog.String("thingName", identity.ThingName))
	if identity.CustomDomain != "" {
		w.Log.Info("Device uses a custom IoT domain", slog.String("domain", identity.CustomDomain))
	}

	w.Status.Update(status.PhaseGeneratingConfig, "", status.ProgressUnset)
	bundle := w.Materializer.Materialize(identity)
	if !bundle.Success {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrMaterialization, bundle.Error)
	}

	w.Status.Update(status.PhaseInstalling, "", status.ProgressUnset)
	w.Driver.SetProgress(func(step string, percent int, message string) {
		w.Status.Update(status.PhaseInstalling, message, percent)
	})
	result := w.Driver.Provision(ctx, identity)
	if !result.Success {
		return 0, fmt.Errorf("%w: %s", interfaces.ErrInstallation, result.Error)
	}

	w.Status.Update(status.PhaseCompleted, "", status.ProgressUnset)
	w.Log.Info("Provisioning completed", slog.String("thingName", identity.ThingName))
	return OutcomeCompleted, nil
}

// lookupIdentity resolves the device record: first by hardware identifier,
// then treating the identifier as a direct device id, finally the shared
// "default" record.
func (w *Workflow) lookupIdentity(ctx context.Context) (*interfaces.DeviceIdentity, error) {
	if err := w.Store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	defer w.Store.Close()

	identity, err := w.Store.DeviceByIdentifier(ctx, w.DeviceIdentifier)
	if err != nil {
		return nil, fmt.Errorf("identity lookup failed: %w", err)
	}
	if identity == nil {
		identity, err = w.Store.DeviceByID(ctx, w.DeviceIdentifier)
		if err != nil {
			return nil, fmt.Errorf("identity lookup failed: %w", err)
		}
	}
	if identity == nil {
		w.Log.Info("No record for identifier, falling back to default device",
			slog.String("identifier", w.DeviceIdentifier))
		identity, err = w.Store.DeviceByID(ctx, "default")
		if err != nil {
			return nil, fmt.Errorf("identity lookup failed: %w", err)
		}
	}
	if identity == nil {
		return nil, fmt.Errorf("%w: no record for identifier %q and no default device",
			interfaces.ErrIdentityNotFound, w.DeviceIdentifier)
	}
	return identity, nil
}
