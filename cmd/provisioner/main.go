package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/edgefleet/greengrass-provisioner/cmd/flags"
	"github.com/edgefleet/greengrass-provisioner/common"
	"github.com/edgefleet/greengrass-provisioner/detector"
	"github.com/edgefleet/greengrass-provisioner/identity"
	"github.com/edgefleet/greengrass-provisioner/installer"
	"github.com/edgefleet/greengrass-provisioner/materializer"
	"github.com/edgefleet/greengrass-provisioner/netcheck"
	"github.com/edgefleet/greengrass-provisioner/status"
	"github.com/edgefleet/greengrass-provisioner/workflow"
)

const (
	exitFatal          = 1
	exitNoConnectivity = 2
)

var appFlags = []cli.Flag{
	flags.DatabasePathFlag,
	flags.GreengrassPathFlag,
	flags.StatusFileFlag,
	flags.TestModeFlag,
	flags.IoTEndpointFlag,
	flags.ArtifactURIFlag,
	flags.DeviceIdentifierFlag,
	flags.ServiceUserFlag,
	flags.ServiceGroupFlag,
	flags.JavaHomeFlag,
	flags.VerboseFlag,
	flags.LogJSONFlag,
	flags.LogDebugFlag,
	flags.LogUIDFlag,
}

func main() {
	app := &cli.App{
		Name:    "greengrass-provisioner",
		Usage:   "Provision this device into an AWS IoT Greengrass fleet",
		Version: common.Version,
		Flags:   appFlags,
		Action:  runProvision,
		Commands: []*cli.Command{
			{
				Name:   "list-devices",
				Usage:  "List the device ids known to the identity store",
				Flags:  []cli.Flag{flags.DatabasePathFlag, flags.LogJSONFlag, flags.LogDebugFlag},
				Action: runListDevices,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runProvision(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	ctx, stop := signal.NotifyContext(cCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	publisher, err := status.New(cCtx.String(flags.StatusFileFlag.Name), logger)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cannot publish status: %v", err), exitFatal)
	}

	store, err := identity.StoreFor(cCtx.String(flags.DatabasePathFlag.Name), logger)
	if err != nil {
		publisher.ReportError("Provisioning failed", err.Error())
		return cli.Exit(err.Error(), exitFatal)
	}

	probe := netcheck.New(logger)
	probe.OverrideEndpoint = cCtx.String(flags.IoTEndpointFlag.Name)
	defer probe.Close()

	root := cCtx.String(flags.GreengrassPathFlag.Name)
	driver, err := installer.New(installer.Config{
		Root:         root,
		ServiceUser:  cCtx.String(flags.ServiceUserFlag.Name),
		ServiceGroup: cCtx.String(flags.ServiceGroupFlag.Name),
		ArtifactURI:  cCtx.String(flags.ArtifactURIFlag.Name),
		JavaHome:     cCtx.String(flags.JavaHomeFlag.Name),
		DryRun:       cCtx.Bool(flags.TestModeFlag.Name),
	}, logger)
	if err != nil {
		publisher.ReportError("Provisioning failed", err.Error())
		return cli.Exit(err.Error(), exitFatal)
	}

	identifier := cCtx.String(flags.DeviceIdentifierFlag.Name)
	if identifier == "" {
		identifier = workflow.ResolveDeviceIdentifier(logger)
	}

	wf := &workflow.Workflow{
		Status:           publisher,
		Detector:         detector.New(root, logger),
		Probe:            probe,
		Store:            store,
		Materializer:     materializer.New(root, logger),
		Driver:           driver,
		DeviceIdentifier: identifier,
		Log:              logger,
	}

	outcome, err := wf.Run(ctx)
	if err != nil {
		publisher.ReportError("Provisioning failed", err.Error())
		return cli.Exit(err.Error(), exitFatal)
	}

	if outcome == workflow.OutcomeNoConnectivity {
		return cli.Exit("no internet connectivity available", exitNoConnectivity)
	}
	return nil
}

func runListDevices(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	store, err := identity.StoreFor(cCtx.String(flags.DatabasePathFlag.Name), logger)
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}

	ctx := cCtx.Context
	if err := store.Connect(ctx); err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}
	defer store.Close()

	ids, err := store.ListDeviceIDs(ctx)
	if err != nil {
		return cli.Exit(err.Error(), exitFatal)
	}

	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
