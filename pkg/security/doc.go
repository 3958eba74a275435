/*
Package security groups the transport and credential handling of the
collector.

# TLS

Package tls builds the server *tls.Config from server.tls and keeps the
certificate fresh by polling the files:

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	tlsConfig, err := tls.ServerConfig(cfg, reloader)

Setting client_ca_file requires and verifies client certificates.

# Producer Tokens

Package auth checks the bearer token of each /send-metrics request
against server.auth.tokens and names the producer for rate limiting and
the audit log:

	validator := auth.NewTokenValidator(cfg.Auth.Tokens)
	handler = auth.Middleware(validator, logger)(handler)

# Secrets

Package secrets resolves ${secret:name} references in token values from
the environment or a directory of files.
*/
package security
