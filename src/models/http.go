package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// maxResponseBytes caps how much of a provider reply is read.
const maxResponseBytes = 10 << 20

var defaultHTTPClient = &http.Client{}

// postJSON sends payload to endpoint and decodes a 2xx body into out.
// Non-2xx replies become *StatusError carrying the raw body.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, header http.Header, payload, out any) error {
	if client == nil {
		client = defaultHTTPClient
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s encode request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s build request: %w", provider, scrubURLError(err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, scrubURLError(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s read response: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(provider, resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s decode response: %w", provider, err)
	}
	return nil
}

// scrubURLError hides a query-string credential that net/http would echo
// back inside *url.Error.
func scrubURLError(err error) error {
	var ue *url.Error
	if !errors.As(err, &ue) {
		return err
	}
	ue.URL = redactKey(ue.URL)
	return err
}

func redactKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Get("key") == "" {
		return raw
	}
	q.Set("key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
