package materializer

import (
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/edgefleet/greengrass-provisioner/interfaces"
)

// DefaultNucleusVersion is used when the identity record does not pin one.
const DefaultNucleusVersion = "2.9.0"

type systemSection struct {
	CertificateFilePath string `yaml:"certificateFilePath"`
	PrivateKeyPath      string `yaml:"privateKeyPath"`
	RootCAPath          string `yaml:"rootCaPath"`
	RootPath            string `yaml:"rootpath"`
	ThingName           string `yaml:"thingName"`
}

type mqttSection struct {
	Port int `yaml:"port"`
}

type proxySection struct {
	Proxy struct {
		URL string `yaml:"url"`
	} `yaml:"proxy"`
}

type loggingSection struct {
	Level           string `yaml:"level"`
	FileSizeKB      int    `yaml:"fileSizeKB"`
	TotalLogsSizeKB int    `yaml:"totalLogsSizeKB"`
	Format          string `yaml:"format"`
}

type nucleusConfiguration struct {
	AWSRegion       string         `yaml:"awsRegion"`
	IoTRoleAlias    string         `yaml:"iotRoleAlias"`
	IoTDataEndpoint string         `yaml:"iotDataEndpoint"`
	IoTCredEndpoint string         `yaml:"iotCredEndpoint"`
	MQTT            *mqttSection   `yaml:"mqtt,omitempty"`
	NetworkProxy    *proxySection  `yaml:"networkProxy,omitempty"`
	Logging         loggingSection `yaml:"logging"`

	// Deployment tuning, emitted only for devices assigned to a group.
	DeploymentPollingFrequency         int   `yaml:"deploymentPollingFrequency,omitempty"`
	ComponentStoreMaxSizeBytes         int64 `yaml:"componentStoreMaxSizeBytes,omitempty"`
	DeploymentStatusKeepAliveFrequency int   `yaml:"deploymentStatusKeepAliveFrequency,omitempty"`
}

type nucleusService struct {
	Version       string               `yaml:"version"`
	Configuration nucleusConfiguration `yaml:"configuration"`
}

type nucleusDocument struct {
	System   systemSection             `yaml:"system"`
	Services map[string]nucleusService `yaml:"services"`
}

// renderConfig produces the config.yaml content for the given identity and
// installation root.
func renderConfig(identity *interfaces.DeviceIdentity, root string) ([]byte, error) {
	version := identity.AgentVersion
	if version == "" {
		version = DefaultNucleusVersion
	}

	configuration := nucleusConfiguration{
		AWSRegion:       identity.AWSRegion,
		IoTRoleAlias:    identity.RoleAlias,
		IoTDataEndpoint: identity.IoTDataEndpoint,
		IoTCredEndpoint: identity.RoleAliasEndpoint,
		Logging: loggingSection{
			Level:           "INFO",
			FileSizeKB:      1024,
			TotalLogsSizeKB: 25600,
			Format:          "JSON",
		},
	}

	if identity.MQTTPort > 0 {
		configuration.MQTT = &mqttSection{Port: identity.MQTTPort}
	}
	if identity.ProxyURL != "" {
		proxy := &proxySection{}
		proxy.Proxy.URL = identity.ProxyURL
		configuration.NetworkProxy = proxy
	}
	if identity.DeploymentGroup != "" {
		configuration.DeploymentPollingFrequency = 15
		configuration.ComponentStoreMaxSizeBytes = 10737418240
		configuration.DeploymentStatusKeepAliveFrequency = 60
	}

	doc := nucleusDocument{
		System: systemSection{
			CertificateFilePath: filepath.Join(root, "certs", identity.ThingName+".cert.pem"),
			PrivateKeyPath:      filepath.Join(root, "certs", identity.ThingName+".private.key"),
			RootCAPath:          filepath.Join(root, "certs", "root.ca.pem"),
			RootPath:            root,
			ThingName:           identity.ThingName,
		},
		Services: map[string]nucleusService{
			"aws.greengrass.Nucleus": {
				Version:       version,
				Configuration: configuration,
			},
		},
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return append([]byte("---\n"), body...), nil
}
