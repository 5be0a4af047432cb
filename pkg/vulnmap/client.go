// Package vulnmap is a thin client for the parts of the Vulnmap v1 and REST
// APIs used to list and reconcile imported targets.
package vulnmap

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/khulnasoft-lab/vulnmap-api-import/pkg/whttp"
	"github.com/tidwall/gjson"
)

const (
	// restVersion pins the REST API version for projects and targets.
	restVersion = "2022-09-15~beta"
	// groupsVersion pins the REST API version for group org listings.
	groupsVersion = "2023-05-29"
	// PageLimit is the page size requested from listing endpoints.
	PageLimit = 100
)

// Requester sends a single API request. *whttp.Client implements it.
type Requester interface {
	Send(ctx context.Context, req *whttp.WHTTPReq) (*whttp.WHTTPRes, error)
}

// Client talks to the Vulnmap API through a Requester.
type Client struct {
	r Requester
}

func NewClient(r Requester) *Client {
	return &Client{r: r}
}

// StatusError is returned when the API answers with an unexpected status.
type StatusError struct {
	Expected int
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	data := strconv.Quote(e.Body)
	if trimmed := strings.TrimSpace(e.Body); trimmed != "" && gjson.Valid(trimmed) {
		data = trimmed
	} else if trimmed == "" {
		data = "null"
	}
	return fmt.Sprintf("Expected a %d response, instead received: {\"data\":%s,\"status\":%d}", e.Expected, data, e.Status)
}

var errInvalidJSON = errors.New("response body is not valid JSON")

func missingParams(names string) error {
	return fmt.Errorf("Missing required parameters. Please ensure you have set: %s.", names)
}

// do sends the request and checks the status. The body is validated as
// JSON only when the caller is going to parse it.
func (c *Client) do(ctx context.Context, req *whttp.WHTTPReq, expected int, parse bool) (string, error) {
	res, err := c.r.Send(ctx, req)
	if err != nil {
		return "", err
	}
	if res.StatusCode != expected {
		return "", &StatusError{Expected: expected, Status: res.StatusCode, Body: res.BodyString}
	}
	if parse && !gjson.Valid(res.BodyString) {
		return "", fmt.Errorf("%s %s: %w", req.Method, req.URL, errInvalidJSON)
	}
	return res.BodyString, nil
}
