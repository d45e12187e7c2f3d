package driver

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// burstMultiplier sets the token bucket burst size relative to the
// per-second rate, allowing a short saved burst to be spent on the next
// call without reducing sustained throughput below the configured limit.
const burstMultiplier = 2

// RateLimited wraps a Driver so that CopyTo, the call that moves
// file-sized payloads through this process, is throttled to a shared byte
// budget. CopyBetween and PutSmall/GetSmall/Delete/List pass straight
// through without charging the limiter.
type RateLimited struct {
	Driver
	limiter *rate.Limiter
}

// WrapRateLimited returns d unchanged if limitSpec is "" or "0"
// (unlimited), otherwise wraps it with a shared token-bucket limiter.
// limitSpec accepts forms like "5MB/s", "100KB", "1GB/s".
func WrapRateLimited(d Driver, limitSpec string) (Driver, error) {
	bytesPerSec, err := parseBandwidthRate(limitSpec)
	if err != nil {
		return nil, fmt.Errorf("driver: parse bandwidth limit %q: %w", limitSpec, err)
	}

	if bytesPerSec == 0 {
		return d, nil
	}

	burst := int(bytesPerSec) * burstMultiplier

	return &RateLimited{Driver: d, limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst)}, nil
}

func (r *RateLimited) CopyTo(ctx context.Context, srcApparentPath, dstRemoteReal string) (*time.Time, *string, error) {
	info, err := statSize(srcApparentPath)
	if err == nil {
		if waitErr := r.waitN(ctx, info); waitErr != nil {
			return nil, nil, waitErr
		}
	}

	return r.Driver.CopyTo(ctx, srcApparentPath, dstRemoteReal)
}

func (r *RateLimited) CopyBetween(ctx context.Context, srcRemoteReal, dstRemoteReal string) error {
	// Server-side copies don't move bytes through this process, so no
	// tokens are taken from the limiter.
	return r.Driver.CopyBetween(ctx, srcRemoteReal, dstRemoteReal)
}

// waitN splits a large token request into burst-sized chunks, since
// rate.Limiter.WaitN rejects requests larger than the bucket's burst.
func (r *RateLimited) waitN(ctx context.Context, n int64) error {
	burst := int64(r.limiter.Burst())

	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}

		if err := r.limiter.WaitN(ctx, int(take)); err != nil {
			return err
		}

		n -= take
	}

	return nil
}

// parseBandwidthRate parses "5MB/s", "100KB", "0" (or "") into bytes/sec.
func parseBandwidthRate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}

	normalized := s
	if idx := strings.LastIndex(strings.ToLower(normalized), "/s"); idx != -1 {
		normalized = normalized[:idx]
	}

	bytes, err := parseSize(normalized)
	if err != nil {
		return 0, err
	}

	if bytes < 0 {
		return 0, fmt.Errorf("bandwidth rate %q must be non-negative", s)
	}

	return bytes, nil
}

var sizeUnits = map[string]int64{
	"":   1,
	"b":  1,
	"kb": 1 << 10,
	"mb": 1 << 20,
	"gb": 1 << 30,
	"tb": 1 << 40,
}

// parseSize parses a "<number><unit>" byte-size string such as "5MB" or
// "100" (bytes) into a raw byte count.
func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)

	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}

	numPart := s[:i]
	unitPart := strings.ToLower(strings.TrimSpace(s[i:]))

	mult, ok := sizeUnits[unitPart]
	if !ok {
		return 0, fmt.Errorf("unrecognized size unit %q", unitPart)
	}

	if numPart == "" {
		return 0, fmt.Errorf("missing numeric size in %q", s)
	}

	val, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric size %q: %w", numPart, err)
	}

	return int64(val * float64(mult)), nil
}

// statSize returns the size of the local file at path, used to charge
// the bandwidth limiter before CopyTo reads it.
func statSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}
