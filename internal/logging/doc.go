// Package logging provides structured logging for reviewd on top of Zap.
//
// The logger adds a Trace level below Debug, tees output to stdout and an
// OpenTelemetry log provider, injects correlation fields from the context
// and redacts credentials before they reach any sink.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSessionID(ctx, "review-acme-widgets-42")
//	logger.Info(ctx, "specialists joined", zap.Int("findings", n))
//
// # Redaction
//
// Values stored under sensitive keys (token, api_key, authorization and so
// on) are replaced entirely. Anthropic and GitHub tokens, bearer headers and
// api_key assignments are masked wherever they appear in a string, including
// error messages. Prefer Secret or RedactedString when a credential must be
// mentioned at all.
//
// # Sampling
//
// Each sampled level has its own budget per tick. Error and above are never
// sampled and Validate rejects a config that tries.
//
// # Temporal
//
// NewTemporalLogger adapts a Logger to the Temporal SDK so worker and client
// logs share encoding and redaction with the rest of the process.
package logging
