/*
Package auth provides bearer token authentication for pulse producers.

Tokens are configured under server.auth.tokens, each with a producer name.
Requests present a token with either header:

	Authorization: Bearer <token>
	X-Pulse-Token: <token>

Tokens are compared by SHA-256 digest in constant time. Token values are
never logged; the producer name is, and it is available to handlers
through ProducerFromContext.

	v := auth.NewTokenValidator(cfg.Server.Auth.Tokens)
	mux.Handle("/send-metrics", auth.Middleware(v, logger)(ingest))
*/
package auth
