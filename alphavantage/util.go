package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
)

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

	if resp.StatusCode >= 300 {
		return fmt.Errorf("cannot http GET %s: %s", redact(req.URL), resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(data)
}

func redact(u *url.URL) string {
	v := *u
	q := v.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		v.RawQuery = q.Encode()
	}
	return v.String()
}
