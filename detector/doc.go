// Package detector decides whether a Greengrass installation target is
// already fully and validly provisioned.
//
// Detection is a pure read of the target directory: it never creates,
// mutates or deletes anything. Three components are required - a config
// file (yaml, yml or legacy json), a certificate directory containing both
// a certificate and a key, and the agent's runtime root. When all three are
// present the config content itself is validated; invalid content takes
// priority over missing components in the reported details.
package detector
