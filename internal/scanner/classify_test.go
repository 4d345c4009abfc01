package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Thresholds(t *testing.T) {
	cfg := DefaultConfig()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		elapsed time.Duration
		want    Class
	}{
		{0, ClassBurst},
		{5 * time.Millisecond, ClassBurst},
		{79 * time.Millisecond, ClassBurst},
		{80 * time.Millisecond, ClassHuman},
		{200 * time.Millisecond, ClassHuman},
		{1000 * time.Millisecond, ClassHuman},
		{1001 * time.Millisecond, ClassBurst},
		{time.Hour, ClassBurst},
	}

	for _, tt := range tests {
		t.Run(tt.elapsed.String(), func(t *testing.T) {
			last := base
			now := base.Add(tt.elapsed)
			assert.Equal(t, tt.want, Classify(&last, now, cfg))
			assert.Equal(t, now, last, "last key time always advances")
		})
	}
}

func TestClassify_MonotonicAroundThresholds(t *testing.T) {
	cfg := DefaultConfig()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for e1 := time.Duration(0); e1 < cfg.BurstThreshold; e1 += 7 * time.Millisecond {
		for e2 := cfg.BurstThreshold + time.Millisecond; e2 < cfg.FirstCharGrace; e2 += 97 * time.Millisecond {
			last := base
			assert.Equal(t, ClassBurst, Classify(&last, base.Add(e1), cfg), "e1=%s", e1)
			last = base
			assert.Equal(t, ClassHuman, Classify(&last, base.Add(e2), cfg), "e2=%s", e2)
		}
	}
}

func TestClassify_FirstKeyIsBurst(t *testing.T) {
	var last time.Time
	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, ClassBurst, Classify(&last, now, DefaultConfig()))
	assert.Equal(t, now, last)
}

func TestRouteKey(t *testing.T) {
	assert.Equal(t, RouteRedirect, RouteKey(RuneKey('a', FocusNone)))
	assert.Equal(t, RouteSearch, RouteKey(RuneKey('a', FocusSearch)))
	assert.Equal(t, RoutePassThrough, RouteKey(RuneKey('a', FocusOtherInput)))
}

func TestKeyEvent_Printable(t *testing.T) {
	assert.True(t, RuneKey('8', FocusNone).Printable())
	assert.True(t, RuneKey('-', FocusNone).Printable())
	assert.False(t, RuneKey('\x1b', FocusNone).Printable())
	assert.False(t, EnterKey(FocusSearch).Printable())
}

func TestConfig_WithDefaultsAndValidate(t *testing.T) {
	cfg := Config{AutoCommitDelay: 300 * time.Millisecond}.WithDefaults()
	assert.Equal(t, DefaultBurstThreshold, cfg.BurstThreshold)
	assert.Equal(t, DefaultFirstCharGrace, cfg.FirstCharGrace)
	assert.Equal(t, 300*time.Millisecond, cfg.AutoCommitDelay)
	assert.Equal(t, DefaultMinQueryLength, cfg.MinQueryLength)
	assert.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.FirstCharGrace = 50 * time.Millisecond
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MinQueryLength = -1
	assert.Error(t, bad.Validate())
}

func TestParseModeAndFocus(t *testing.T) {
	m, err := ParseMode("manual")
	assert.NoError(t, err)
	assert.Equal(t, ModeManual, m)
	assert.Equal(t, "auto", ModeAuto.String())

	_, err = ParseMode("turbo")
	assert.Error(t, err)

	f, err := ParseFocus("other")
	assert.NoError(t, err)
	assert.Equal(t, FocusOtherInput, f)
	assert.Equal(t, "search", FocusSearch.String())

	_, err = ParseFocus("modal")
	assert.Error(t, err)
}
