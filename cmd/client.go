package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/genericsim/tribectl/internal/config"
	"github.com/genericsim/tribectl/internal/journal"
	"github.com/genericsim/tribectl/internal/policysync"
	"github.com/genericsim/tribectl/internal/resilience"
	"github.com/genericsim/tribectl/pkg/tribeapi"
)

// newClient builds a Tribe Service client from the api config section.
func newClient(c *config.Config) tribeapi.Client {
	api := c.API
	opts := []tribeapi.Option{
		tribeapi.WithRetry(resilience.FromRetryConfig(api.Retry.MaxAttempts, api.Retry.InitialBackoffMs, api.Retry.MaxBackoffMs)),
		tribeapi.WithCircuitBreaker(resilience.NewCircuitBreaker(
			resilience.FromCircuitConfig("tribeapi", api.Circuit.FailureThreshold, api.Circuit.ResetTimeoutSecs),
		)),
	}
	if api.TimeoutSecs > 0 {
		opts = append(opts, tribeapi.WithTimeout(time.Duration(api.TimeoutSecs)*time.Second))
	}
	if api.RateLimit > 0 {
		opts = append(opts, tribeapi.WithRateLimit(api.RateLimit, api.RateBurst))
	}
	return tribeapi.NewClient(api.BaseURL, opts...)
}

// openJournal opens and migrates the change journal. It returns nil when the
// journal is disabled.
func openJournal(ctx context.Context, c *config.Config) (journal.Store, error) {
	if !c.Journal.Enabled {
		return nil, nil
	}
	st, err := journal.Open(ctx, c.Journal.Driver, c.Journal.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newController wires a policy controller to svc, journaling to rec when set.
func newController(c *config.Config, svc policysync.Service, rec policysync.Recorder, modeOverride string) (*policysync.Controller, error) {
	raw := c.Policy.UpdateMode
	if modeOverride != "" {
		raw = modeOverride
	}
	mode, err := policysync.ParseUpdateMode(raw)
	if err != nil {
		return nil, err
	}

	opts := []policysync.Option{policysync.WithUpdateMode(mode)}
	if rec != nil {
		opts = append(opts, policysync.WithRecorder(rec))
	}
	return policysync.New(svc, opts...), nil
}

func validateClientConfig() error {
	if err := cfg.Validate("client"); err != nil {
		return eris.Wrap(err, "invalid configuration")
	}
	return nil
}
