package installer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/atomic"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// State identifies a step of the installation sequence.
type State int

const (
	StateInitializing State = iota
	StateAcquiringAgent
	StateInstallingAgent
	StateRegisteringService
	StateStartingService
	StateVerifyingConnection
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAcquiringAgent:
		return "acquiring-agent"
	case StateInstallingAgent:
		return "installing-agent"
	case StateRegisteringService:
		return "registering-service"
	case StateStartingService:
		return "starting-service"
	case StateVerifyingConnection:
		return "verifying-connection"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config controls the installation driver.
type Config struct {
	// Root is the Greengrass installation root.
	Root string

	// ServiceUser and ServiceGroup own the installation and run the agent.
	ServiceUser  string
	ServiceGroup string

	// ServiceName names the systemd unit (without the .service suffix).
	ServiceName string

	// ArtifactURI locates the agent archive mirror, see SourceFor.
	ArtifactURI string

	// JavaHome overrides runtime detection of the JVM location.
	JavaHome string

	// UnitDir is where the systemd unit file is written.
	UnitDir string

	// DryRun records host commands instead of executing them and
	// synthesizes a successful outcome.
	DryRun bool

	// StartWait is the settle delay between starting the service and
	// checking it is active.
	StartWait time.Duration

	// LogWait bounds how long connection verification waits for the agent
	// log file to appear.
	LogWait time.Duration
}

func (c *Config) applyDefaults() {
	if c.ServiceUser == "" {
		c.ServiceUser = "ggc_user"
	}
	if c.ServiceGroup == "" {
		c.ServiceGroup = "ggc_group"
	}
	if c.ServiceName == "" {
		c.ServiceName = "greengrass"
	}
	if c.ArtifactURI == "" {
		c.ArtifactURI = DefaultArtifactBaseURL
	}
	if c.UnitDir == "" {
		c.UnitDir = DefaultUnitDir
	}
	if c.StartWait == 0 {
		c.StartWait = 5 * time.Second
	}
	if c.LogWait == 0 {
		c.LogWait = 30 * time.Second
	}
}

// Result reports the installation outcome.
type Result struct {
	Success       bool
	LastCompleted State
	Error         string
}

// Driver performs the installation sequence on the host.
type Driver struct {
	cfg      Config
	runner   CommandRunner
	source   ArtifactSource
	progress interfaces.ProgressFunc
	running  atomic.Bool
	log      *slog.Logger
}

// New creates an installation driver. In dry mode the runner defaults to a
// recording DryRunner; otherwise commands execute on the host.
func New(cfg Config, log *slog.Logger) (*Driver, error) {
	cfg.applyDefaults()

	source, err := SourceFor(cfg.ArtifactURI, log)
	if err != nil {
		return nil, err
	}

	var runner CommandRunner
	if cfg.DryRun {
		runner = &DryRunner{}
	} else {
		runner = ExecRunner{}
	}

	return &Driver{cfg: cfg, runner: runner, source: source, log: log}, nil
}

// SetProgress registers a callback invoked before each installation step.
func (d *Driver) SetProgress(fn interfaces.ProgressFunc) {
	d.progress = fn
}

// Runner exposes the command runner, mainly so dry-run callers can inspect
// the recorded commands.
func (d *Driver) Runner() CommandRunner {
	return d.runner
}

func (d *Driver) report(state State, percent int, message string) {
	if d.progress != nil {
		d.progress(state.String(), percent, message)
	}
	d.log.Info(message, slog.Int("percent", percent), slog.String("step", state.String()))
}

// Provision runs the installation sequence. Only one run may be in flight
// per driver; concurrent calls fail fast.
func (d *Driver) Provision(ctx context.Context, identity *interfaces.DeviceIdentity) Result {
	if !d.running.CompareAndSwap(false, true) {
		return Result{Error: "installation already in progress"}
	}
	defer d.running.Store(false)

	result := Result{}
	d.log.Info("Starting agent installation",
		slog.String("deviceID", identity.DeviceID),
		slog.Bool("dryRun", d.cfg.DryRun))

	d.report(StateInitializing, 0, "Initializing provisioning process")
	if err := d.ensureServiceAccount(ctx); err != nil {
		result.Error = fmt.Sprintf("failed to create service account: %v", err)
		return result
	}
	result.LastCompleted = StateInitializing

	d.report(StateAcquiringAgent, 20, "Downloading Greengrass nucleus")
	if err := d.acquireAgent(ctx, identity); err != nil {
		result.Error = fmt.Sprintf("failed to acquire agent artifact: %v", err)
		return result
	}
	result.LastCompleted = StateAcquiringAgent

	d.report(StateInstallingAgent, 40, "Installing Greengrass nucleus")
	if err := d.installAgent(ctx); err != nil {
		result.Error = fmt.Sprintf("failed to install agent: %v", err)
		return result
	}
	result.LastCompleted = StateInstallingAgent

	d.report(StateRegisteringService, 60, "Configuring systemd service")
	if err := d.registerService(ctx); err != nil {
		result.Error = fmt.Sprintf("failed to configure systemd service: %v", err)
		return result
	}
	result.LastCompleted = StateRegisteringService

	d.report(StateStartingService, 80, "Starting Greengrass service")
	if err := d.startService(ctx); err != nil {
		result.Error = fmt.Sprintf("failed to start service: %v", err)
		return result
	}
	result.LastCompleted = StateStartingService

	d.report(StateVerifyingConnection, 90, "Verifying Greengrass connection")
	if err := d.verifyConnection(ctx); err != nil {
		result.Error = fmt.Sprintf("failed to verify connection: %v", err)
		return result
	}
	result.LastCompleted = StateVerifyingConnection

	d.report(StateCompleted, 100, "Provisioning completed successfully")
	result.LastCompleted = StateCompleted
	result.Success = true
	return result
}

func (d *Driver) agentJarPath() string {
	return filepath.Join(d.cfg.Root, "lib", "Greengrass.jar")
}

// ensureServiceAccount creates the system user and group unless they exist.
func (d *Driver) ensureServiceAccount(ctx context.Context) error {
	if d.cfg.DryRun {
		d.runner.Run(ctx, "id", "-u", d.cfg.ServiceUser)
		return nil
	}

	if _, err := d.runner.Output(ctx, "id", "-u", d.cfg.ServiceUser); err == nil {
		d.log.Info("Service user already exists", slog.String("user", d.cfg.ServiceUser))
		return nil
	}

	// groupadd fails when the group already exists, which is fine.
	d.runner.Run(ctx, "groupadd", "--system", d.cfg.ServiceGroup)

	if err := d.runner.Run(ctx, "useradd", "--system",
		"--gid", d.cfg.ServiceGroup, "--shell", "/bin/false", d.cfg.ServiceUser); err != nil {
		return err
	}
	d.log.Info("Created service account",
		slog.String("user", d.cfg.ServiceUser),
		slog.String("group", d.cfg.ServiceGroup))
	return nil
}

// acquireAgent fetches the agent archive unless it is already in place.
func (d *Driver) acquireAgent(ctx context.Context, identity *interfaces.DeviceIdentity) error {
	jarPath := d.agentJarPath()
	if _, err := os.Stat(jarPath); err == nil {
		d.log.Info("Agent artifact already present, skipping download", slog.String("path", jarPath))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(jarPath), 0o755); err != nil {
		return err
	}

	if d.cfg.DryRun {
		return os.WriteFile(jarPath, []byte("mock agent artifact\n"), 0o644)
	}

	version := identity.AgentVersion
	if version == "" {
		version = "2.9.0"
	}
	return d.source.Fetch(ctx, version, jarPath)
}

// installAgent hands the installation root over to the service account.
func (d *Driver) installAgent(ctx context.Context) error {
	owner := d.cfg.ServiceUser + ":" + d.cfg.ServiceGroup
	return d.runner.Run(ctx, "chown", "-R", owner, d.cfg.Root)
}

func (d *Driver) registerService(ctx context.Context) error {
	return d.registerUnit(ctx, unitParams{
		Root:     d.cfg.Root,
		User:     d.cfg.ServiceUser,
		Group:    d.cfg.ServiceGroup,
		JavaHome: d.javaHome(ctx),
	})
}

func (d *Driver) javaHome(ctx context.Context) string {
	if d.cfg.JavaHome != "" {
		return d.cfg.JavaHome
	}
	out, err := d.runner.Output(ctx, "sh", "-c", `readlink -f "$(command -v java)"`)
	if err != nil {
		return "/usr"
	}
	home := strings.TrimSuffix(strings.TrimSpace(out), "/bin/java")
	if home == "" {
		return "/usr"
	}
	return home
}

func (d *Driver) startService(ctx context.Context) error {
	unit := d.cfg.ServiceName + ".service"

	// A previous instance may be running from a stale configuration.
	d.runner.Run(ctx, "systemctl", "stop", unit)

	if err := d.runner.Run(ctx, "systemctl", "start", unit); err != nil {
		return err
	}

	if !d.cfg.DryRun {
		select {
		case <-time.After(d.cfg.StartWait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := d.runner.Run(ctx, "systemctl", "is-active", unit); err != nil {
		return fmt.Errorf("service is not active: %w", err)
	}
	return nil
}

var (
	connectionOkPattern  = regexp.MustCompile(`(?i)(connected|established|successful)`)
	connectionErrPattern = regexp.MustCompile(`(?i)(error|failed)`)
)

// verifyConnection inspects the agent log for connection evidence. A missing
// log file or a log without explicit markers is tolerated; explicit error
// markers without a success marker fail the verification.
func (d *Driver) verifyConnection(ctx context.Context) error {
	if d.cfg.DryRun {
		return nil
	}

	logFile := filepath.Join(d.cfg.Root, "logs", "greengrass.log")

	deadline := time.Now().Add(d.cfg.LogWait)
	for {
		if _, err := os.Stat(logFile); err == nil {
			break
		}
		if time.Now().After(deadline) {
			d.log.Warn("Agent log file not found, assuming connection is ok", slog.String("path", logFile))
			return nil
		}
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	tail, err := d.runner.Output(ctx, "tail", "-n", "50", logFile)
	if err != nil {
		d.log.Warn("Could not read agent log, assuming connection is ok", slog.String("err", err.Error()))
		return nil
	}

	if connectionOkPattern.MatchString(tail) {
		d.log.Info("Agent connection verified from logs")
		return nil
	}
	if connectionErrPattern.MatchString(tail) {
		return fmt.Errorf("agent log reports errors")
	}

	d.log.Info("No errors found in agent logs, assuming connection successful")
	return nil
}
