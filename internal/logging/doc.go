// Package logging provides the steward application logger.
//
// It wraps zap with context-aware methods that automatically attach
// correlation fields (trace/span ids, card id, agent name, request id) pulled
// from the context, redacts sensitive fields at the encoder level, and can
// tee output to an OpenTelemetry log bridge alongside stdout.
//
// Library packages under pkg/ accept a plain *zap.Logger; this package is the
// factory applications use to build that logger:
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	machine, err := pipeline.NewMachine(cfg, logger.Underlying())
package logging
