package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/pulse/pkg/cli"
	"mercator-hq/pulse/pkg/client"
)

var sendFlags struct {
	url      string
	gzip     bool
	timeout  time.Duration
	progress bool
	token    string
}

type sendResult struct {
	Endpoint string `json:"endpoint"`
	Files    int    `json:"files"`
	Accepted int    `json:"accepted"`
}

func (r sendResult) String() string {
	return fmt.Sprintf("sent %d sample(s) from %d file(s) to %s", r.Accepted, r.Files, r.Endpoint)
}

var sendCmd = &cobra.Command{
	Use:   "send [FILE...]",
	Short: "Send JSON samples to a collector",
	Long: `Send newline-separated JSON samples to a running collector's
/send-metrics endpoint. Each FILE is posted as one request; "-" or no
arguments reads standard input.

Examples:
  # Send a file
  pulse send --url http://127.0.0.1:9405 samples.json

  # Pipe samples from another process, gzip compressed
  producer | pulse send --url http://collector:9405 --gzip -

  # Authenticate against a protected collector
  PULSE_TOKEN=... pulse send --url https://collector:9405 samples.json`,
	RunE: sendSamples,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVarP(&sendFlags.url, "url", "u", "http://127.0.0.1:9405", "collector base URL")
	sendCmd.Flags().BoolVar(&sendFlags.gzip, "gzip", false, "gzip request bodies")
	sendCmd.Flags().DurationVar(&sendFlags.timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	sendCmd.Flags().BoolVar(&sendFlags.progress, "progress", false, "show a progress bar on stderr")
	sendCmd.Flags().StringVar(&sendFlags.token, "token", "", "producer token (default $PULSE_TOKEN)")
}

func sendSamples(cmd *cobra.Command, args []string) error {
	f, err := formatter()
	if err != nil {
		return err
	}

	c, err := client.New(sendFlags.url, client.Options{
		HTTPClient: &http.Client{Timeout: sendFlags.timeout},
		Gzip:       sendFlags.gzip,
		UserAgent:  "pulse-send/" + Version,
		Token:      tokenOrEnv(sendFlags.token),
	})
	if err != nil {
		return cli.NewConfigError("--url", err.Error())
	}

	if len(args) == 0 {
		args = []string{"-"}
	}

	var progress *cli.UploadProgress
	if sendFlags.progress {
		progress = cli.NewUploadProgress(cmd.ErrOrStderr(), len(args))
	}

	result := sendResult{Endpoint: c.Endpoint()}
	for _, name := range args {
		n, size, err := sendFile(cmd, c, name)
		result.Accepted += n
		if err != nil {
			if progress != nil {
				progress.Fail(name, err)
			}
			return cli.NewCommandError("send", fmt.Errorf("%s: %w (%d accepted)", name, err, result.Accepted))
		}
		result.Files++
		if progress != nil {
			progress.FileDone(n, size)
		}
	}
	if progress != nil {
		progress.Finish()
	}

	return f.FormatTo(cmd.OutOrStdout(), result)
}

// sendFile posts one file and returns the samples accepted and the bytes
// read from it.
func sendFile(cmd *cobra.Command, c *client.Client, name string) (int, int64, error) {
	var r io.Reader
	if name == "-" {
		r = cmd.InOrStdin()
	} else {
		file, err := os.Open(name)
		if err != nil {
			return 0, 0, err
		}
		defer file.Close()
		r = file
	}
	counted := &byteCounter{r: r}
	n, err := c.SendRaw(cmd.Context(), counted)
	return n, counted.n, err
}

type byteCounter struct {
	r io.Reader
	n int64
}

func (b *byteCounter) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.n += int64(n)
	return n, err
}

// tokenOrEnv falls back to $PULSE_TOKEN when flag is empty.
func tokenOrEnv(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("PULSE_TOKEN")
}
