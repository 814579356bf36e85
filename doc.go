// Package tdclient issues authenticated requests against the Treasure Data
// REST API and makes the transport reliable across transient failures.
//
// A Client resolves its configuration once (explicit options, then the
// environment, then an optional YAML file, then defaults) and is safe for
// concurrent use. Each call runs a retry loop bounded by a cumulative sleep
// budget rather than an attempt count: 500, 502, 503, 504 and transport
// faults are retried with exponential backoff until the sleep already spent
// reaches the budget, while every other failure is returned at once as a
// fatal API error carrying the status and body.
//
//	c, err := tdclient.New(tdclient.WithAPIKey(key))
//	if err != nil {
//		return err
//	}
//	resp, err := c.Read(ctx, "/v3/database/list", nil)
//	return httpclient.WithResponse(resp, err, func(r *httpclient.Response) error {
//		return r.DecodeJSON(&out)
//	})
//
// Form-encoded creates are not retried unless WithRetryPostRequests(true) is
// given, since the server may already have acted on a failed attempt.
package tdclient
