package models

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func TestParseSensorKind(t *testing.T) {
	cases := map[string]SensorKind{
		"":            KindTemperature,
		"temp":        KindTemperature,
		"temperature": KindTemperature,
		"humidity":    KindHumidity,
	}
	for in, want := range cases {
		got, err := ParseSensorKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseSensorKind(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseSensorKind("pressure"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestSpecRanges(t *testing.T) {
	temp := KindTemperature.Spec()
	if temp.Min != -5 || temp.Max != 40 || temp.Unit != "°C" {
		t.Fatalf("unexpected temperature spec %+v", temp)
	}
	hum := KindHumidity.Spec()
	if hum.Min != 0 || hum.Max != 100 || hum.Unit != "%" {
		t.Fatalf("unexpected humidity spec %+v", hum)
	}
	if SensorKind(7).Valid() {
		t.Fatalf("unknown kind should not be valid")
	}
}

func TestLocation(t *testing.T) {
	vattern := NewLocation(22, KindTemperature)
	if vattern.Name != "Lake Vättern" || vattern.Key() != "22" {
		t.Fatalf("unexpected location %+v key %s", vattern, vattern.Key())
	}
	other := NewLocation(30, KindHumidity)
	if other.Name != "Location 30" || other.Key() != "30_humidity" {
		t.Fatalf("unexpected location %+v key %s", other, other.Key())
	}
}

func TestOutcomeJSON(t *testing.T) {
	b, err := json.Marshal(Reading{LocationID: 22, Outcome: OutcomeOutOfRange})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if m["outcome"] != "out_of_range" {
		t.Fatalf("unexpected outcome %v", m["outcome"])
	}
	if Outcome(99).String() != "unknown" {
		t.Fatalf("unexpected name for invalid outcome")
	}
	if !OutcomeCached.OK() || OutcomeTimeout.OK() {
		t.Fatalf("unexpected OK classification")
	}
}

func TestClampInterval(t *testing.T) {
	cases := []struct {
		in, want time.Duration
	}{
		{10 * time.Second, MinScanInterval},
		{90 * time.Second, 2 * time.Minute},
		{600 * time.Second, 10 * time.Minute},
		{48 * time.Hour, MaxScanInterval},
	}
	for _, c := range cases {
		if got := ClampInterval(c.in); got != c.want {
			t.Fatalf("ClampInterval(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDurationFromSeconds(t *testing.T) {
	if d, err := DurationFromSeconds(1.5); err != nil || d != 1500*time.Millisecond {
		t.Fatalf("unexpected %v (%v)", d, err)
	}
	d, err := DurationFromSeconds(1e30)
	if err != nil || d <= 0 {
		t.Fatalf("huge values must saturate, got %v (%v)", d, err)
	}
	if ClampInterval(d) != MaxScanInterval {
		t.Fatalf("saturated value should clamp to the maximum, got %v", ClampInterval(d))
	}
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
		if _, err := DurationFromSeconds(v); err == nil {
			t.Fatalf("%v: expected error", v)
		}
	}
}

func TestSettings(t *testing.T) {
	s := DefaultSettings()
	if s.ScanInterval != 5*time.Minute || s.DebugMode {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}
	if err := (Settings{ScanInterval: time.Second}).Validate(); err == nil {
		t.Fatalf("expected interval below the minimum to be rejected")
	}

	on := true
	d := 30 * time.Second
	got := SettingsCommand{ScanInterval: &d, DebugMode: &on}.Apply(s)
	if got.ScanInterval != MinScanInterval || !got.DebugMode {
		t.Fatalf("unexpected applied settings %+v", got)
	}
	if (SettingsCommand{}).Apply(s) != s {
		t.Fatalf("empty command should not change settings")
	}
}
