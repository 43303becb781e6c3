// Copyright 2024 The hashtable Authors. All rights reserved.
// Use of this source code is governed by the BSD 3-Clause License
// that can be found in the LICENSE file.

package hashtable

import (
	"io"
	"log/slog"
)

// Option configures a Table at Open time.
type Option func(*options)

type options struct {
	logger        *slog.Logger
	maxLoadFactor float64
}

func defaultOptions() options {
	return options{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxLoadFactor: defaultMaxLoadFactor,
	}
}

// WithLogger sets an optional logger the table uses for growth and
// snapshot events.  If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(opts *options) {
		opts.logger = logger
	}
}

// WithMaxLoadFactor overrides the fill ratio that triggers growth.  The
// default threshold is 0.75; values above 1 trade speed for memory by
// letting chains run longer.
func WithMaxLoadFactor(f float64) Option {
	return func(opts *options) {
		opts.maxLoadFactor = f
	}
}
