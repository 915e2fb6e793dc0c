// Package logger builds the process-wide zap logger from configuration.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Encodings accepted by New.
const (
	EncodingJSON    = "json"
	EncodingConsole = "console"
)

// New returns a production logger at the given level. An empty encoding
// selects JSON. Logs go to stderr so table output on stdout stays clean.
func New(verbosity, encoding string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(verbosity)
	if err != nil {
		return nil, err
	}
	config.Level = level

	switch encoding {
	case "", EncodingJSON:
	case EncodingConsole:
		config.Encoding = EncodingConsole
		config.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		config.Sampling = nil
	default:
		return nil, fmt.Errorf("unknown log encoding: %s", encoding)
	}
	config.OutputPaths = []string{"stderr"}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}
	return log.Named("gemmbench"), nil
}
