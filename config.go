package redsift

import "time"

// Configuration constants for redsift operations
const (
	// Affix scans and subrange copies pull members in batches of this size.
	DefaultScanBatch = 100

	// Safety-net TTL applied to every temporary accumulator key at creation.
	// Explicit cleanup is the primary path; the TTL only matters when the
	// connection dies mid-search and the DEL never goes out.
	DefaultTempKeyTTL = 60 * time.Second

	// Pattern literal prefixes narrow the affix scan using at most this many
	// leading bytes.
	MaxPrefixLen = 7
)

// EngineConfig holds tunables for the query engine
type EngineConfig struct {
	ScanBatch  int
	TempKeyTTL time.Duration
}

// DefaultEngineConfig returns the default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		ScanBatch:  DefaultScanBatch,
		TempKeyTTL: DefaultTempKeyTTL,
	}
}

// Validate checks if the EngineConfig is valid
func (c EngineConfig) Validate() error {
	if c.ScanBatch <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "ScanBatch",
			"value":  c.ScanBatch,
			"reason": "must be positive",
		})
	}
	if c.TempKeyTTL <= 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "TempKeyTTL",
			"value":  c.TempKeyTTL,
			"reason": "must be positive",
		})
	}
	return nil
}
