package cmd

import (
	"context"
	"errors"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/lsk7209/0-nkey-sub001/internal/config"
	"github.com/lsk7209/0-nkey-sub001/internal/core"
	"github.com/lsk7209/0-nkey-sub001/internal/core/engine"
	"github.com/lsk7209/0-nkey-sub001/internal/core/provider"
	"github.com/lsk7209/0-nkey-sub001/internal/metrics"
	"github.com/lsk7209/0-nkey-sub001/internal/observability"
)

// buildHarvester assembles a harvester from configuration. state may be nil
// to run without persistence; logger may be nil.
func buildHarvester(cfg *config.Config, state engine.StateStore, logger *logging.Logger) (*engine.Harvester, error) {
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}

	keys := cfg.Provider.EnabledCredentials()
	if len(keys) == 0 {
		return nil, errors.New("no enabled credentials configured (set provider.credentials or " + envPrefix() + "CREDENTIALS_0_API_KEY)")
	}

	poolName := strings.TrimSpace(cfg.Provider.Name)
	if poolName == "" {
		poolName = engine.DefaultPool
	}

	caller, err := provider.New(providerConfig(cfg.Provider))
	if err != nil {
		return nil, err
	}

	ctrl := cfg.Throttle.Controller
	controller := engine.NewConcurrencyController(engine.ControllerConfig{
		Min:                ctrl.Min,
		Max:                ctrl.Max,
		AdjustmentInterval: ctrl.AdjustmentInterval,
		TargetSuccessRate:  ctrl.TargetSuccessRate,
		TargetResponseTime: ctrl.TargetResponseTime,
		OnAdjust: func(adj core.Adjustment) {
			metrics.RecordAdjustment(adj)
			if logger != nil {
				logger.Info("Concurrency adjusted", observability.AdjustmentFields(poolName, adj)...)
			}
		},
	}, ctrl.Initial)

	credentials := engine.NewCredentialPool(engine.PoolConfig{
		Size:     len(keys),
		Cooldown: cfg.Throttle.Credentials.Cooldown,
	})

	h := &engine.Harvester{
		Pool:        poolName,
		Controller:  controller,
		Credentials: credentials,
		Keys:        keys,
		Caller:      caller,
		Pacer:       engine.NewPacer(cfg.Provider.RequestRPS, cfg.Provider.RateLimitMargin),
		MaxAttempts: cfg.Provider.MaxAttempts,
		Sink: engine.SinkFunc(func(_ context.Context, result core.CallResult) {
			metrics.RecordCall(result)
			if logger != nil && result.Outcome != core.OutcomeSuccess {
				logger.Debug("Call did not succeed", observability.CallFields(result)...)
			}
		}),
	}
	if state != nil {
		h.State = state
	}
	return h, nil
}

func providerConfig(p config.ProviderConfig) provider.Config {
	return provider.Config{
		Driver: p.Driver,
		Simulated: provider.SimulatedConfig{
			RatePerMinute: p.Simulated.RatePerMinute,
			Burst:         p.Simulated.Burst,
			BaseLatency:   p.Simulated.BaseLatency,
			Jitter:        p.Simulated.Jitter,
			LoadPenalty:   p.Simulated.LoadPenalty,
			FailureRatio:  p.Simulated.FailureRatio,
			Seed:          p.Simulated.Seed,
		},
		HTTP: provider.HTTPConfig{
			Endpoint:     p.HTTP.Endpoint,
			KeywordParam: p.HTTP.KeywordParam,
			AuthHeader:   p.HTTP.AuthHeader,
			AuthScheme:   p.HTTP.AuthScheme,
			Timeout:      p.HTTP.Timeout,
		},
	}
}

func envPrefix() string {
	if appIdentity != nil && appIdentity.EnvPrefix != "" {
		return appIdentity.EnvPrefix
	}
	return "NKEY_"
}
