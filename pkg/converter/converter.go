// pkg/converter/converter.go
package converter

import (
	"go.uber.org/zap"
)

// ValueParser handles parsing of raw field values into their declared
// column types
type ValueParser struct {
	logger *zap.Logger
	// Configuration options
	config ParserConfig
}

// ParserConfig provides configuration options for value parsing
type ParserConfig struct {
	// Accepted date layouts, tried in order
	DateLayouts []string
	// Accepted time-of-day layouts, tried in order
	TimeLayouts []string
	// Whether to treat empty strings as NULL
	EmptyStringAsNull bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() ParserConfig {
	return ParserConfig{
		DateLayouts: []string{
			"01/02/2006", // MM/DD/YYYY, the source's native format
			"1/2/2006",
			"2006-01-02",
		},
		TimeLayouts: []string{
			"15:04:05",
			"15:04",
		},
		EmptyStringAsNull: true,
	}
}

// NewValueParser creates a new ValueParser with default configuration
func NewValueParser(logger *zap.Logger) *ValueParser {
	return NewValueParserWithConfig(logger, DefaultConfig())
}

// NewValueParserWithConfig creates a ValueParser with custom configuration
func NewValueParserWithConfig(logger *zap.Logger, config ParserConfig) *ValueParser {
	return &ValueParser{
		logger: logger,
		config: config,
	}
}
