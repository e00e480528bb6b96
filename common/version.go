package common

// PackageName identifies this service in logs and metrics.
const PackageName = "greengrass-provisioner"

// Version is set at build time via -ldflags.
var Version = "dev"
