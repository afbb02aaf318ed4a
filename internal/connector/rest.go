package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// restClient is the shared HTTP plumbing for the thin REST connectors.
// Each request runs under the caller's context; connectors wrap calls in
// the standard OpTimeout themselves.
type restClient struct {
	http   *http.Client
	header http.Header
}

func newRESTClient(header http.Header) *restClient {
	if header == nil {
		header = http.Header{}
	}
	return &restClient{
		http:   &http.Client{},
		header: header,
	}
}

// doJSON issues a request and decodes a JSON response into out (which may
// be nil when only the status matters). Non-2xx statuses are returned as
// errors carrying the status code so the transient-error classifier can
// see it.
func (c *restClient) doJSON(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, string(snippet))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// unimplemented provides default no-capability behavior that vendor
// connectors embed, so each one only overrides what it actually supports.
type unimplemented struct {
	name string
}

func (u unimplemented) Deploy(ctx context.Context, app, branch string) (*DeployResult, error) {
	return nil, notSupported(u.name, CapDeploy)
}

func (u unimplemented) GetLogs(ctx context.Context, app string, lines int) ([]string, error) {
	return nil, notSupported(u.name, CapLogs)
}

func (u unimplemented) StreamLogs(ctx context.Context, app string) (<-chan string, error) {
	return nil, notSupported(u.name, CapStreamLogs)
}
