package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// DoJSON runs DoWithRetry and decodes the response body into out.
// A body that isn't JSON is reported as an error.
func DoJSON(
	ctx context.Context,
	client *http.Client,
	buildReq func(context.Context) (*http.Request, error),
	out any,
	cfg RetryConfig,
) error {
	_, body, err := DoWithRetry(ctx, client, buildReq, cfg)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json parse error: %w body=%s", err, snippet(body, 500))
	}
	return nil
}

// JSONRequest returns a request builder for method/url with an optional
// JSON payload and extra headers.
func JSONRequest(method, url string, payload any, header http.Header) (func(context.Context) (*http.Request, error), error) {
	var body []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("httpx: encode payload: %w", err)
		}
		body = b
	}
	return func(ctx context.Context) (*http.Request, error) {
		var r *http.Request
		var err error
		if body != nil {
			r, err = http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		} else {
			r, err = http.NewRequestWithContext(ctx, method, url, nil)
		}
		if err != nil {
			return nil, err
		}
		for k, vals := range header {
			for _, v := range vals {
				r.Header.Add(k, v)
			}
		}
		if body != nil {
			r.Header.Set("Content-Type", "application/json")
		}
		r.Header.Set("Accept", "application/json")
		return r, nil
	}, nil
}
