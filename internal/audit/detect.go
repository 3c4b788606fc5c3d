package audit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Advisory detector defaults. Thresholds are inclusive: the Nth event inside
// the window raises a warning and the 2Nth raises high. Signals are reported
// to operators; nothing here locks accounts or blocks requests.
const (
	DefaultBruteForceThreshold = 5
	DefaultBruteForceWindow    = 10 * time.Minute
	DefaultAnomalyThreshold    = 50
	DefaultAnomalyWindow       = time.Hour
)

// Signal severities.
const (
	SeverityNone    = ""
	SeverityWarning = "warning"
	SeverityHigh    = "high"
)

// Signal is an advisory suspicious-activity finding.
type Signal struct {
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Count    int64  `json:"count"`
	Severity string `json:"severity"`
}

// DetectorConfig tunes the sliding windows.
type DetectorConfig struct {
	BruteForceThreshold int
	BruteForceWindow    time.Duration
	AnomalyThreshold    int
	AnomalyWindow       time.Duration
}

// DefaultDetectorConfig returns the default thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		BruteForceThreshold: DefaultBruteForceThreshold,
		BruteForceWindow:    DefaultBruteForceWindow,
		AnomalyThreshold:    DefaultAnomalyThreshold,
		AnomalyWindow:       DefaultAnomalyWindow,
	}
}

// Detector tracks recent auth failures per origin and PHI accesses per actor
// in redis sorted sets, trimming each window on write. It is the live-path
// counterpart of ScanEntries.
type Detector struct {
	client *redis.Client
	cfg    DetectorConfig
	clock  func() time.Time
}

// NewDetector constructs a Detector.
func NewDetector(client *redis.Client, cfg DetectorConfig) *Detector {
	if cfg.BruteForceThreshold <= 0 {
		cfg.BruteForceThreshold = DefaultBruteForceThreshold
	}
	if cfg.BruteForceWindow <= 0 {
		cfg.BruteForceWindow = DefaultBruteForceWindow
	}
	if cfg.AnomalyThreshold <= 0 {
		cfg.AnomalyThreshold = DefaultAnomalyThreshold
	}
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = DefaultAnomalyWindow
	}
	return &Detector{
		client: client,
		cfg:    cfg,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the detector clock. Test hook.
func (d *Detector) WithClock(clock func() time.Time) *Detector {
	d.clock = clock
	return d
}

func bruteForceKey(origin string) string {
	return "halcyon:detect:authfail:" + origin
}

func anomalyKey(actor string) string {
	return "halcyon:detect:phi:" + actor
}

// RecordAuthFailure notes one failed authentication from origin and returns
// the brute-force signal state for that origin.
func (d *Detector) RecordAuthFailure(ctx context.Context, origin string) (Signal, error) {
	count, err := d.bump(ctx, bruteForceKey(origin), d.cfg.BruteForceWindow)
	if err != nil {
		return Signal{}, fmt.Errorf("audit: record auth failure: %w", err)
	}
	return bruteForceSignal(origin, count, int64(d.cfg.BruteForceThreshold)), nil
}

// RecordPHIAccess notes one PHI-touching event by actor and returns the
// anomalous-access signal state for that actor.
func (d *Detector) RecordPHIAccess(ctx context.Context, actor string) (Signal, error) {
	count, err := d.bump(ctx, anomalyKey(actor), d.cfg.AnomalyWindow)
	if err != nil {
		return Signal{}, fmt.Errorf("audit: record phi access: %w", err)
	}
	return anomalySignal(actor, count, int64(d.cfg.AnomalyThreshold)), nil
}

func (d *Detector) bump(ctx context.Context, key string, window time.Duration) (int64, error) {
	now := d.clock()
	member := strconv.FormatInt(now.UnixNano(), 10)
	pipe := d.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.Add(-window).UnixNano(), 10))
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}

func bruteForceSignal(origin string, count, threshold int64) Signal {
	s := Signal{Kind: "brute_force", Subject: origin, Count: count}
	switch {
	case count >= threshold*2:
		s.Severity = SeverityHigh
	case count >= threshold:
		s.Severity = SeverityWarning
	}
	return s
}

func anomalySignal(actor string, count, threshold int64) Signal {
	s := Signal{Kind: "anomalous_access", Subject: actor, Count: count}
	switch {
	case count >= threshold*2:
		s.Severity = SeverityHigh
	case count >= threshold:
		s.Severity = SeverityWarning
	}
	return s
}

// ScanEntries runs both detectors over already-persisted entries, bucketing
// auth failures by the origin detail and PHI events by actor. Used by the
// background anomaly scan; now anchors the windows.
func ScanEntries(entries []Entry, cfg DetectorConfig, now time.Time) []Signal {
	if cfg.BruteForceThreshold <= 0 || cfg.BruteForceWindow <= 0 ||
		cfg.AnomalyThreshold <= 0 || cfg.AnomalyWindow <= 0 {
		cfg = DefaultDetectorConfig()
	}
	authCutoff := now.Add(-cfg.BruteForceWindow)
	phiCutoff := now.Add(-cfg.AnomalyWindow)

	failures := make(map[string]int64)
	phi := make(map[string]int64)
	for _, e := range entries {
		switch e.EventType {
		case EventAuthFailure:
			if e.At.Before(authCutoff) {
				continue
			}
			origin, _ := e.Details["origin"].(string)
			if origin == "" {
				origin = e.ActorID
			}
			failures[origin]++
		case EventPHIAccess, EventPHICreate, EventPHIUpdate, EventPHIDelete:
			if e.At.Before(phiCutoff) {
				continue
			}
			phi[e.ActorID]++
		}
	}

	var signals []Signal
	for origin, count := range failures {
		if s := bruteForceSignal(origin, count, int64(cfg.BruteForceThreshold)); s.Severity != SeverityNone {
			signals = append(signals, s)
		}
	}
	for actor, count := range phi {
		if s := anomalySignal(actor, count, int64(cfg.AnomalyThreshold)); s.Severity != SeverityNone {
			signals = append(signals, s)
		}
	}
	return signals
}
