// Package log builds slog loggers that mask sensitive values.
//
// SecureHandler wraps any slog.Handler. Before a record is handed on it
// masks:
//   - attributes with sensitive keys (cookies, authorization headers,
//     tokens, passwords, database URLs and DSNs)
//   - string values that look like secrets (JWTs, bearer and basic
//     credentials, private key blocks, Tor ed25519 secrets)
//   - URL passwords and sensitive query parameters, keeping the rest of
//     the URL readable
//
// The crawl session id is logged under the "session" key and is not
// masked. Crawled hosts and paths are logged as they are.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
package log
