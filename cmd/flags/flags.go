// Package flags holds the CLI flag definitions shared by the provisioner
// commands.
package flags

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/edgefleet/greengrass-provisioner/common"
)

// SetupLogger builds the process logger from the logging flags.
func SetupLogger(cCtx *cli.Context) *slog.Logger {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool(LogDebugFlag.Name) || cCtx.Bool(VerboseFlag.Name),
		JSON:    cCtx.Bool(LogJSONFlag.Name),
		Service: common.PackageName,
		Version: common.Version,
	})

	if cCtx.Bool(LogUIDFlag.Name) {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

var DatabasePathFlag = &cli.StringFlag{
	Name:    "database-path",
	Aliases: []string{"d"},
	Value:   "/opt/greengrass-provisioner/devices.db",
	Usage:   "device identity store location: a SQLite path, sqlite:// or vault:// URI",
	EnvVars: []string{"DATABASE_PATH"},
}

var GreengrassPathFlag = &cli.StringFlag{
	Name:    "greengrass-path",
	Aliases: []string{"g"},
	Value:   "/greengrass/v2",
	Usage:   "Greengrass installation root",
	EnvVars: []string{"GREENGRASS_PATH"},
}

var StatusFileFlag = &cli.StringFlag{
	Name:    "status-file",
	Aliases: []string{"s"},
	Value:   "/var/run/greengrass-provisioning.status",
	Usage:   "path of the shared provisioning status file",
	EnvVars: []string{"STATUS_FILE"},
}

var TestModeFlag = &cli.BoolFlag{
	Name:    "test-mode",
	Value:   false,
	Usage:   "record host commands instead of executing them, and mock the agent artifact",
	EnvVars: []string{"TEST_MODE"},
}

var IoTEndpointFlag = &cli.StringFlag{
	Name:    "iot-endpoint",
	Usage:   "override endpoint for the connectivity check, replaces the default candidates",
	EnvVars: []string{"IOT_ENDPOINT"},
}

var ArtifactURIFlag = &cli.StringFlag{
	Name:    "artifact-uri",
	Value:   "https://d2s8p88vqu9w66.cloudfront.net/releases",
	Usage:   "agent artifact mirror: an https://, s3:// or file:// base URI",
	EnvVars: []string{"ARTIFACT_URI"},
}

var DeviceIdentifierFlag = &cli.StringFlag{
	Name:    "device-identifier",
	Usage:   "identity store lookup key, defaults to the device MAC address or hostname",
	EnvVars: []string{"DEVICE_IDENTIFIER"},
}

var ServiceUserFlag = &cli.StringFlag{
	Name:    "service-user",
	Value:   "ggc_user",
	Usage:   "system user that owns and runs the agent",
	EnvVars: []string{"SERVICE_USER"},
}

var ServiceGroupFlag = &cli.StringFlag{
	Name:    "service-group",
	Value:   "ggc_group",
	Usage:   "system group that owns the agent",
	EnvVars: []string{"SERVICE_GROUP"},
}

var JavaHomeFlag = &cli.StringFlag{
	Name:    "java-home",
	Usage:   "JVM location for the agent service, detected from PATH when empty",
	EnvVars: []string{"JAVA_HOME_OVERRIDE"},
}

var VerboseFlag = &cli.BoolFlag{
	Name:    "verbose",
	Aliases: []string{"v"},
	Value:   false,
	Usage:   "enable verbose output",
}

var LogJSONFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}

var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}

var LogUIDFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
