package provider

import (
	"fmt"
	"strings"

	"github.com/lsk7209/0-nkey-sub001/internal/core/engine"
)

// Driver names accepted by New.
const (
	DriverSimulated = "simulated"
	DriverHTTP      = "http"
)

// Config selects and configures a provider driver.
type Config struct {
	Driver    string
	Simulated SimulatedConfig
	HTTP      HTTPConfig
}

// New builds the Caller for cfg.Driver. An empty driver selects the simulator.
func New(cfg Config) (engine.Caller, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSimulated:
		return NewSimulated(cfg.Simulated), nil
	case DriverHTTP:
		return NewHTTP(cfg.HTTP)
	default:
		return nil, fmt.Errorf("unsupported provider driver %q", cfg.Driver)
	}
}
