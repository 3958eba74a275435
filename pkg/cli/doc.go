/*
Package cli provides command-line helpers shared by the pulse commands.

Output Formatting:

Command results can be printed as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewUploadProgress(os.Stderr, len(files))
	for _, file := range files {
		accepted, size, err := send(file)
		if err != nil {
			progress.Fail(file, err)
			return err
		}
		progress.FileDone(accepted, size)
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	for range cli.ReloadSignals(ctx) {
		// SIGHUP received
	}

Exit Codes:

ExitCode maps an error to the process exit status: 0 for nil, 2 for
configuration errors, 1 otherwise.
*/
package cli
