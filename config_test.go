package redsift

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDefaultEngineConfig(t *testing.T) {
	cfg := DefaultEngineConfig()

	if cfg.ScanBatch != DefaultScanBatch {
		t.Errorf("ScanBatch = %d, want %d", cfg.ScanBatch, DefaultScanBatch)
	}
	if cfg.TempKeyTTL != DefaultTempKeyTTL {
		t.Errorf("TempKeyTTL = %v, want %v", cfg.TempKeyTTL, DefaultTempKeyTTL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestEngineConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		cfg  EngineConfig
	}{
		{"zero batch", EngineConfig{ScanBatch: 0, TempKeyTTL: time.Minute}},
		{"negative batch", EngineConfig{ScanBatch: -1, TempKeyTTL: time.Minute}},
		{"zero ttl", EngineConfig{ScanBatch: 100, TempKeyTTL: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewGeneralIndexWithConfig(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := testSchema(t)

	if _, err := NewGeneralIndexWithConfig(rdb, s, EngineConfig{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid config accepted: %v", err)
	}

	g, err := NewGeneralIndexWithConfig(rdb, s, EngineConfig{ScanBatch: 10, TempKeyTTL: time.Second})
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if g.config.ScanBatch != 10 {
		t.Errorf("config not applied: %+v", g.config)
	}
}

func TestSmallScanBatchStillMatches(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := testSchema(t)
	m := NewModel(rdb, s)
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3", "4", "5"} {
		err := m.Save(ctx, id, map[string]string{"email": "u" + id + "@gmail.com", "age": "3" + id})
		if err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	// batch smaller than the result set forces multiple scan iterations
	g, err := NewGeneralIndexWithConfig(rdb, s, EngineConfig{ScanBatch: 2, TempKeyTTL: time.Minute})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	ids, err := g.Search(ctx, []Filter{Suffix("email", "gmail.com")}, "", 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	assertSameIDs(t, ids, "1", "2", "3", "4", "5")
}
