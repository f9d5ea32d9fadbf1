package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gradelens/internal/analytics"
	"github.com/sells-group/gradelens/internal/config"
	"github.com/sells-group/gradelens/internal/history"
	"github.com/sells-group/gradelens/internal/resilience"
	"github.com/sells-group/gradelens/internal/store"
	"github.com/sells-group/gradelens/pkg/gradeapi"
)

func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	switch c.Store.Driver {
	case "sqlite":
		dsn := c.Store.DatabaseURL
		if dsn == "" {
			dsn = "gradelens.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, c.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: c.Store.MaxConns,
			MinConns: c.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", c.Store.Driver)
	}
}

// initSource builds the configured history source. The returned close
// func is never nil.
func initSource(ctx context.Context, c *config.Config) (history.Source, func(), error) {
	switch c.History.Source {
	case "api":
		return newAPIClient(c), func() {}, nil
	case "store":
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			st.Close() //nolint:errcheck
			return nil, nil, err
		}
		return store.NewSource(st, c.History.Limit), func() { _ = st.Close() }, nil
	default:
		return nil, nil, eris.Errorf("unsupported history source: %s", c.History.Source)
	}
}

func newAPIClient(c *config.Config) gradeapi.Client {
	policy := resilience.DefaultPolicy()
	if c.API.MaxAttempts > 0 {
		policy.MaxAttempts = c.API.MaxAttempts
	}

	opts := []gradeapi.Option{
		gradeapi.WithRateLimit(c.API.RatePerSec, max(int(c.API.RatePerSec), 1)),
		gradeapi.WithRetryPolicy(policy),
	}
	if c.API.Token != "" {
		opts = append(opts, gradeapi.WithToken(c.API.Token))
	}
	if c.API.TimeoutSecs > 0 {
		opts = append(opts, gradeapi.WithTimeout(time.Duration(c.API.TimeoutSecs)*time.Second))
	}
	return gradeapi.NewClient(c.API.BaseURL, opts...)
}

// analyticsOptions maps the analytics config section onto Build options.
// The timezone was checked by Validate; an unresolvable one falls back to UTC.
func analyticsOptions(c *config.Config) []analytics.Option {
	loc, err := c.Analytics.Location()
	if err != nil {
		loc = time.UTC
	}
	return []analytics.Option{
		analytics.WithTrend(analytics.InLocation(loc)),
		analytics.WithCorrelation(
			analytics.WithAxisMax(c.Analytics.AxisMax),
			analytics.WithClamp(c.Analytics.Clamp),
		),
	}
}
