package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/pulse/pkg/cli"
	sectls "mercator-hq/pulse/pkg/security/tls"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Create and inspect TLS certificates",
	Long: `Utilities for the certificates used by server.tls.

Subcommands:
  generate - Write a self-signed certificate and key for testing
  check    - Inspect a certificate, its key and its chain`,
}

var certsGenerateFlags struct {
	hosts    string
	org      string
	validity time.Duration
	dir      string
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a self-signed certificate",
	Long: `Generate a self-signed ECDSA certificate and private key. The files
are written as cert.pem and key.pem (mode 0600). Self-signed certificates
are meant for development; the certificate can also be used as
client_ca_file to try mutual TLS.

Examples:
  # Certificate for local testing
  pulse certs generate --host localhost,127.0.0.1 --dir certs/`,
	Args: cobra.NoArgs,
	RunE: generateCerts,
}

var certsCheckFlags struct {
	cert string
	key  string
	ca   string
}

var certsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check a certificate",
	Long: `Report the subject, SANs and validity of a certificate. With --key the
pair must match; with --ca the certificate must chain to that CA. The
command fails when any check fails or the certificate is expired.

Examples:
  pulse certs check --cert server.crt --key server.key --ca ca.pem`,
	Args: cobra.NoArgs,
	RunE: checkCerts,
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsGenerateCmd, certsCheckCmd)

	certsGenerateCmd.Flags().StringVar(&certsGenerateFlags.hosts, "host", "localhost", "comma-separated hostnames and IPs")
	certsGenerateCmd.Flags().StringVar(&certsGenerateFlags.org, "org", "Pulse", "organization name")
	certsGenerateCmd.Flags().DurationVar(&certsGenerateFlags.validity, "validity", 365*24*time.Hour, "validity period")
	certsGenerateCmd.Flags().StringVar(&certsGenerateFlags.dir, "dir", "certs", "output directory")

	certsCheckCmd.Flags().StringVar(&certsCheckFlags.cert, "cert", "", "certificate file (required)")
	certsCheckCmd.Flags().StringVar(&certsCheckFlags.key, "key", "", "private key file")
	certsCheckCmd.Flags().StringVar(&certsCheckFlags.ca, "ca", "", "CA certificate file")
	_ = certsCheckCmd.MarkFlagRequired("cert")
}

type generateResult struct {
	CertFile string    `json:"cert_file"`
	KeyFile  string    `json:"key_file"`
	Hosts    []string  `json:"hosts"`
	NotAfter time.Time `json:"not_after"`
}

func (r generateResult) String() string {
	return fmt.Sprintf(`certificate: %s
private key: %s
hosts:       %s
valid until: %s

server:
  tls:
    enabled: true
    cert_file: %q
    key_file: %q`,
		r.CertFile, r.KeyFile, strings.Join(r.Hosts, ", "), r.NotAfter.Format(time.RFC3339), r.CertFile, r.KeyFile)
}

func generateCerts(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	var hosts []string
	for _, h := range strings.Split(certsGenerateFlags.hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	if len(hosts) == 0 {
		return cli.NewConfigError("--host", "at least one host is required")
	}
	if certsGenerateFlags.validity <= 0 {
		return cli.NewConfigError("--validity", "must be positive")
	}

	certPEM, keyPEM, err := sectls.GenerateSelfSigned(hosts, certsGenerateFlags.org, certsGenerateFlags.validity)
	if err != nil {
		return cli.NewCommandError("certs generate", err)
	}

	dir := certsGenerateFlags.dir
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return cli.NewCommandError("certs generate", err)
	}
	res := generateResult{
		CertFile: filepath.Join(dir, "cert.pem"),
		KeyFile:  filepath.Join(dir, "key.pem"),
		Hosts:    hosts,
	}
	if err := os.WriteFile(res.CertFile, certPEM, 0o600); err != nil {
		return cli.NewCommandError("certs generate", err)
	}
	if err := os.WriteFile(res.KeyFile, keyPEM, 0o600); err != nil {
		return cli.NewCommandError("certs generate", err)
	}

	cert, err := sectls.ParseCertificateFile(res.CertFile)
	if err != nil {
		return cli.NewCommandError("certs generate", err)
	}
	res.NotAfter = cert.NotAfter
	return f.FormatTo(cmd.OutOrStdout(), res)
}

type checkResult struct {
	Subject   string    `json:"subject"`
	Issuer    string    `json:"issuer"`
	DNSNames  []string  `json:"dns_names,omitempty"`
	IPs       []string  `json:"ip_addresses,omitempty"`
	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`
	DaysLeft  int       `json:"days_left"`
	Expiring  bool      `json:"expiring"`
	Problems  []string  `json:"problems,omitempty"`
}

func (r checkResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "subject:     %s\n", r.Subject)
	fmt.Fprintf(&sb, "issuer:      %s\n", r.Issuer)
	if len(r.DNSNames) > 0 {
		fmt.Fprintf(&sb, "dns names:   %s\n", strings.Join(r.DNSNames, ", "))
	}
	if len(r.IPs) > 0 {
		fmt.Fprintf(&sb, "ips:         %s\n", strings.Join(r.IPs, ", "))
	}
	fmt.Fprintf(&sb, "valid from:  %s\n", r.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(&sb, "valid until: %s (%d days)", r.NotAfter.Format(time.RFC3339), r.DaysLeft)
	if r.Expiring {
		sb.WriteString("\nwarning: certificate expires soon")
	}
	for _, p := range r.Problems {
		fmt.Fprintf(&sb, "\nproblem: %s", p)
	}
	return sb.String()
}

func checkCerts(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	cert, err := sectls.ParseCertificateFile(certsCheckFlags.cert)
	if err != nil {
		return cli.NewCommandError("certs check", err)
	}

	days, expiring := sectls.CheckCertificateExpiration(cert)
	res := checkResult{
		Subject:   cert.Subject.String(),
		Issuer:    cert.Issuer.String(),
		DNSNames:  cert.DNSNames,
		NotBefore: cert.NotBefore,
		NotAfter:  cert.NotAfter,
		DaysLeft:  days,
		Expiring:  expiring,
	}
	for _, ip := range cert.IPAddresses {
		res.IPs = append(res.IPs, ip.String())
	}

	if certsCheckFlags.key != "" {
		pair, err := tls.LoadX509KeyPair(certsCheckFlags.cert, certsCheckFlags.key)
		if err != nil {
			res.Problems = append(res.Problems, fmt.Sprintf("key does not match: %v", err))
		} else if err := sectls.ValidateCertificate(&pair); err != nil {
			res.Problems = append(res.Problems, err.Error())
		}
	} else if now := time.Now(); now.After(cert.NotAfter) || now.Before(cert.NotBefore) {
		res.Problems = append(res.Problems, "certificate is outside its validity period")
	}
	if certsCheckFlags.ca != "" {
		if err := sectls.VerifyChain(cert, certsCheckFlags.ca); err != nil {
			res.Problems = append(res.Problems, err.Error())
		}
	}

	if err := f.FormatTo(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if len(res.Problems) > 0 {
		return cli.NewCommandError("certs check", fmt.Errorf("%d problem(s) found", len(res.Problems)))
	}
	return nil
}
