package excel

// ReaderConfig controls how raw cells become dataset values
type ReaderConfig struct {
	// Sheet is the worksheet to read; empty means the first sheet.
	Sheet string `json:"sheet"`
	// MissingMarkers are cell texts treated as missing, compared case-insensitively.
	MissingMarkers []string `json:"missing_markers"`
}

// DefaultReaderConfig returns the usual missing-value spellings
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		MissingMarkers: []string{"", "na", "n/a", "nan", "null", "."},
	}
}
