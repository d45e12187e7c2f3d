package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Jwink3101/dfb/internal/config"
	"github.com/Jwink3101/dfb/internal/core"
	"github.com/Jwink3101/dfb/internal/driver"
	"github.com/Jwink3101/dfb/internal/store"
	"github.com/Jwink3101/dfb/internal/timecode"
)

// openDestination builds the transfer driver for rt's destination. Only
// the "local" endpoint type is implemented today (driver.Local); other
// types are reserved for future Driver implementations (spec.md §1/§6).
// When --bandwidth-limit is set, the driver is wrapped in
// driver.RateLimited so CopyTo/CopyBetween throttle to the configured
// byte budget.
func openDestination(rt *config.ResolvedTarget, logger *slog.Logger) (driver.Driver, error) {
	if rt.Destination.Type != config.EndpointLocal {
		return nil, fmt.Errorf("unsupported destination type %q (only %q is implemented)",
			rt.Destination.Type, config.EndpointLocal)
	}

	d, err := driver.NewLocal(rt.Destination.Location, rt.CacheDir, logger)
	if err != nil {
		return nil, err
	}

	return driver.WrapRateLimited(d, flagBandwidthLimit)
}

// openIndex opens the local index database at rt's config-id-keyed path,
// creating the cache directory and running migrations as needed.
func openIndex(ctx context.Context, rt *config.ResolvedTarget, logger *slog.Logger) (*store.Store, error) {
	return store.Open(ctx, rt.IndexPath(), logger)
}

// requireLocalSource validates that rt's source is the local endpoint
// type, the only one this CLI knows how to scan directly.
func requireLocalSource(rt *config.ResolvedTarget) error {
	if rt.Source.Type != config.EndpointLocal {
		return fmt.Errorf("unsupported source type %q (only %q is implemented)", rt.Source.Type, config.EndpointLocal)
	}

	return nil
}

// needsContentHash reports whether rt's compare or rename-detection
// attribute requires a content hash to be computed for every scanned
// source file.
func needsContentHash(rt *config.ResolvedTarget) bool {
	return rt.Compare == core.CompareHash || rt.RenameDetection == core.RenameByHash
}

// parseTimeExpr parses a user-facing time expression (spec.md §4.6)
// relative to the current instant, in UTC.
func parseTimeExpr(expr string) (time.Time, error) {
	return timecode.Parse(expr, time.Now(), time.UTC)
}
