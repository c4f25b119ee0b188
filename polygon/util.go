package polygon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
)

// statusError is returned for non 2xx responses.
type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("cannot http GET %s: %s", e.url, http.StatusText(e.code))
}

// jwget performs an HTTP GET request to the given address and unmarshals the
// JSON response body into the provided data structure.
func (c *Client) jwget(ctx context.Context, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// The url.Error text would carry the api key.
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redact(req.URL)
		}
		return err
	}
	defer resp.Body.Close()
	log.Printf("%v %v%v %v", req.Method, req.URL.Host, req.URL.Path, resp.Status)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, url: redact(req.URL)}
	}
	return json.Unmarshal(buf.Bytes(), data)
}

// redact strips the api key from u, for messages.
func redact(u *url.URL) string {
	v := *u
	q := v.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "REDACTED")
		v.RawQuery = q.Encode()
	}
	return v.String()
}
