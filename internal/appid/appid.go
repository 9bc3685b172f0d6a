// Package appid exposes the application identity: binary name, env prefix
// and config directory name.
package appid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	appidentityassets "github.com/lsk7209/0-nkey-sub001/internal/assets/appidentity"
)

// EnvIdentityPath points at an identity file that replaces the embedded one.
const EnvIdentityPath = "NKEY_APP_IDENTITY_PATH"

// Identity describes the application.
type Identity struct {
	BinaryName  string
	Vendor      string
	ConfigName  string
	EnvPrefix   string
	Description string
	Namespace   string
	Repository  string
}

type identityFile struct {
	App struct {
		BinaryName  string `yaml:"binary_name"`
		Vendor      string `yaml:"vendor"`
		ConfigName  string `yaml:"config_name"`
		EnvPrefix   string `yaml:"env_prefix"`
		Description string `yaml:"description"`
	} `yaml:"app"`
	Metadata struct {
		TelemetryNamespace string `yaml:"telemetry_namespace"`
		Repository         string `yaml:"repository"`
	} `yaml:"metadata"`
}

var (
	embeddedOnce sync.Once
	embedded     *Identity
	embeddedErr  error
)

// Get returns the identity from EnvIdentityPath when set, otherwise the
// embedded copy.
func Get(ctx context.Context) (*Identity, error) {
	if path := strings.TrimSpace(os.Getenv(EnvIdentityPath)); path != "" {
		return Load(path)
	}
	embeddedOnce.Do(func() {
		embedded, embeddedErr = Parse(appidentityassets.YAML)
	})
	if embeddedErr != nil {
		return nil, embeddedErr
	}
	identity := *embedded
	return &identity, nil
}

// Load reads an identity file.
func Load(path string) (*Identity, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied identity path
	if err != nil {
		return nil, fmt.Errorf("read app identity %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes identity YAML and fills derived defaults.
func Parse(data []byte) (*Identity, error) {
	var file identityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse app identity: %w", err)
	}

	identity := &Identity{
		BinaryName:  strings.TrimSpace(file.App.BinaryName),
		Vendor:      strings.TrimSpace(file.App.Vendor),
		ConfigName:  strings.TrimSpace(file.App.ConfigName),
		EnvPrefix:   strings.TrimSpace(file.App.EnvPrefix),
		Description: strings.TrimSpace(file.App.Description),
		Namespace:   strings.TrimSpace(file.Metadata.TelemetryNamespace),
		Repository:  strings.TrimSpace(file.Metadata.Repository),
	}
	if identity.BinaryName == "" {
		return nil, errors.New("app identity: binary_name is required")
	}
	if identity.ConfigName == "" {
		identity.ConfigName = identity.BinaryName
	}
	if identity.EnvPrefix == "" {
		identity.EnvPrefix = strings.ToUpper(identity.BinaryName)
	}
	if !strings.HasSuffix(identity.EnvPrefix, "_") {
		identity.EnvPrefix += "_"
	}
	if identity.Namespace == "" {
		identity.Namespace = identity.BinaryName
	}
	return identity, nil
}

// ViperPrefix is EnvPrefix without the trailing underscore, as viper expects.
func (i *Identity) ViperPrefix() string {
	if i == nil {
		return ""
	}
	return strings.TrimSuffix(i.EnvPrefix, "_")
}
