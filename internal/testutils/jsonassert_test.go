package testutils

import (
	"fmt"
	"strings"
	"testing"
)

// recordingT captures assertion failures instead of failing the test.
type recordingT struct {
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func (r *recordingT) failed() bool {
	return len(r.errors) > 0
}

func TestJSONAsserter_DefaultOptions(t *testing.T) {
	ja := NewJSONAsserter(t)
	opts := ja.GetOptions()

	if !opts.IgnoreExtraKeys {
		t.Error("IgnoreExtraKeys should default to true")
	}
	if !opts.AllowPresencePlaceholder {
		t.Error("AllowPresencePlaceholder should default to true")
	}
	if len(opts.IgnoredFields) != 0 {
		t.Error("IgnoredFields should default to empty slice")
	}
}

func TestJSONAsserter_FunctionalOptions(t *testing.T) {
	t.Run("WithIgnoreExtraKeys false", func(t *testing.T) {
		opts := NewJSONAsserter(t).WithOptions(WithIgnoreExtraKeys(false)).GetOptions()
		if opts.IgnoreExtraKeys {
			t.Error("IgnoreExtraKeys should be false when explicitly set")
		}
		if !opts.AllowPresencePlaceholder {
			t.Error("AllowPresencePlaceholder should remain true from defaults")
		}
	})

	t.Run("WithIgnoredFields", func(t *testing.T) {
		opts := NewJSONAsserter(t).WithOptions(WithIgnoredFields("last_seen", "time")).GetOptions()
		if len(opts.IgnoredFields) != 2 {
			t.Errorf("Expected 2 ignored fields, got %v", opts.IgnoredFields)
		}
	})
}

func TestJSONAsserter_Assert(t *testing.T) {
	tests := []struct {
		name     string
		opts     []Option
		actual   string
		expected string
		fail     bool
	}{
		{
			name:     "extra keys ignored",
			actual:   `{"heart_rate": 72, "beat_count": 5}`,
			expected: `{"heart_rate": 72}`,
		},
		{
			name:     "extra keys compared",
			opts:     []Option{WithIgnoreExtraKeys(false)},
			actual:   `{"heart_rate": 72, "beat_count": 5}`,
			expected: `{"heart_rate": 72}`,
			fail:     true,
		},
		{
			name:     "value mismatch",
			actual:   `{"heart_rate": 72}`,
			expected: `{"heart_rate": 73}`,
			fail:     true,
		},
		{
			name:     "nested extra keys ignored",
			actual:   `{"power_only": {"instantaneous_power": 200, "event_count": 1}}`,
			expected: `{"power_only": {"instantaneous_power": 200}}`,
		},
		{
			name:     "presence placeholder",
			actual:   `{"last_seen": "2025-03-01T10:00:00Z", "kind": "heart_rate"}`,
			expected: `{"last_seen": "<<PRESENCE>>", "kind": "heart_rate"}`,
		},
		{
			name:     "presence placeholder on missing key",
			actual:   `{"kind": "heart_rate"}`,
			expected: `{"last_seen": "<<PRESENCE>>", "kind": "heart_rate"}`,
			fail:     true,
		},
		{
			name:     "ignored field",
			opts:     []Option{WithIgnoreExtraKeys(false), WithIgnoredFields("last_seen")},
			actual:   `{"last_seen": "now", "kind": "heart_rate"}`,
			expected: `{"last_seen": "then", "kind": "heart_rate"}`,
		},
		{
			name:     "arrays",
			actual:   `[{"kind": "bicycle_power", "id": 1}, {"kind": "heart_rate", "id": 2}]`,
			expected: `[{"kind": "bicycle_power"}, {"kind": "heart_rate"}]`,
		},
		{
			name:     "array order matters",
			actual:   `[{"kind": "heart_rate"}, {"kind": "bicycle_power"}]`,
			expected: `[{"kind": "bicycle_power"}, {"kind": "heart_rate"}]`,
			fail:     true,
		},
		{
			name:     "invalid actual",
			actual:   `{`,
			expected: `{}`,
			fail:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			NewJSONAsserter(rec).WithOptions(tt.opts...).Assert(tt.actual, tt.expected)
			if rec.failed() != tt.fail {
				t.Errorf("Expected failure=%v, got %v: %s", tt.fail, rec.failed(), strings.Join(rec.errors, "\n"))
			}
		})
	}
}

type snapshotter struct{ state any }

func (s snapshotter) Snapshot() any { return s.state }

func TestJSONAsserter_AssertSnapshot(t *testing.T) {
	state := struct {
		HeartRate uint8 `json:"heart_rate"`
	}{HeartRate: 73}

	NewJSONAsserter(t).AssertSnapshot(snapshotter{state}, `{"heart_rate": 73}`)

	rec := &recordingT{}
	NewJSONAsserter(rec).AssertValue(make(chan int), `{}`)
	if !rec.failed() || !strings.Contains(rec.errors[0], "cannot marshal") {
		t.Errorf("Expected a marshal failure, got %v", rec.errors)
	}
}

func TestMustJSON(t *testing.T) {
	if got := MustJSON(map[string]int{"a": 1}); got != `{"a":1}` {
		t.Errorf("Unexpected JSON: %s", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustJSON should panic on unsupported values")
		}
	}()
	MustJSON(make(chan int))
}
