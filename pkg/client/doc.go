// Package client ships samples to a remote pulse collector over HTTP.
//
//	c, err := client.New("http://127.0.0.1:9405", client.Options{Gzip: true})
//	if err != nil {
//	    return err
//	}
//	err = c.Send(ctx, &sample.Job{JobName: "Digest", Duration: 1.2, Success: true})
//
// Samples are posted to /send-metrics as newline separated JSON objects.
package client
