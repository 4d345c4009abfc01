package scanner

import (
	"fmt"
	"time"
)

// Defaults tuned for common HID scanners.
const (
	DefaultBurstThreshold  = 80 * time.Millisecond
	DefaultFirstCharGrace  = 1000 * time.Millisecond
	DefaultAutoCommitDelay = 150 * time.Millisecond
	DefaultMinQueryLength  = 2
)

// Mode selects how a buffered scan is committed.
type Mode int

const (
	// ModeAuto commits once a burst pauses for AutoCommitDelay, or on Enter.
	ModeAuto Mode = iota + 1
	// ModeManual commits only on Enter.
	ModeManual
)

// String returns "auto" or "manual".
func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "manual"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "auto" or "manual".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "auto":
		return ModeAuto, nil
	case "manual":
		return ModeManual, nil
	default:
		return 0, fmt.Errorf("invalid scan mode %q: must be auto or manual", s)
	}
}

// Config holds the timing thresholds.
type Config struct {
	// BurstThreshold: a gap shorter than this marks a scanner burst.
	BurstThreshold time.Duration

	// FirstCharGrace: a gap longer than this marks the first key of a new
	// burst (there is no meaningful previous key to measure against).
	FirstCharGrace time.Duration

	// AutoCommitDelay: quiet time after the last burst key before an
	// auto-mode commit.
	AutoCommitDelay time.Duration

	// MinQueryLength: trimmed buffers shorter than this never commit.
	MinQueryLength int
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		BurstThreshold:  DefaultBurstThreshold,
		FirstCharGrace:  DefaultFirstCharGrace,
		AutoCommitDelay: DefaultAutoCommitDelay,
		MinQueryLength:  DefaultMinQueryLength,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.BurstThreshold == 0 {
		c.BurstThreshold = d.BurstThreshold
	}
	if c.FirstCharGrace == 0 {
		c.FirstCharGrace = d.FirstCharGrace
	}
	if c.AutoCommitDelay == 0 {
		c.AutoCommitDelay = d.AutoCommitDelay
	}
	if c.MinQueryLength == 0 {
		c.MinQueryLength = d.MinQueryLength
	}
	return c
}

// Validate rejects thresholds that make the classifier meaningless.
func (c Config) Validate() error {
	if c.BurstThreshold <= 0 {
		return fmt.Errorf("burst threshold must be positive, got %s", c.BurstThreshold)
	}
	if c.FirstCharGrace <= c.BurstThreshold {
		return fmt.Errorf("first char grace (%s) must exceed burst threshold (%s)", c.FirstCharGrace, c.BurstThreshold)
	}
	if c.AutoCommitDelay <= 0 {
		return fmt.Errorf("auto commit delay must be positive, got %s", c.AutoCommitDelay)
	}
	if c.MinQueryLength < 1 {
		return fmt.Errorf("min query length must be at least 1, got %d", c.MinQueryLength)
	}
	return nil
}
