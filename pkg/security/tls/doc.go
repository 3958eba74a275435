// Package tls builds the server TLS configuration for pulse.
//
// Certificates are served through a CertificateReloader, which polls the
// certificate and key files and swaps in a renewed pair without a restart.
// Setting a client CA turns on mutual TLS: every producer and scraper must
// present a certificate that chains to it.
//
//	server:
//	  tls:
//	    enabled: true
//	    cert_file: /etc/pulse/tls/server.pem
//	    key_file: /etc/pulse/tls/server-key.pem
//	    client_ca_file: /etc/pulse/tls/clients-ca.pem
//	    min_version: "1.3"
package tls
