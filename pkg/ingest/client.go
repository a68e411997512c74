// Package ingest is the HTTP client of the report ingestion service.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"
)

// ReportBody is the flat record accepted by POST /api/reports.
type ReportBody struct {
	Operator       string    `json:"operator"`
	ProblemType    string    `json:"problem_type"`
	SignalStrength *float64  `json:"signal_strength,omitempty"`
	NetworkType    *string   `json:"network_type,omitempty"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Description    *string   `json:"description,omitempty"`
	Region         *string   `json:"region,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// PostReportsParams defines parameters for PostReports.
type PostReportsParams struct {
	// Source tells the service how the report reached it: "direct" or "offline".
	Source *string `form:"source,omitempty" json:"source,omitempty"`

	// XReportID is the client-side identifier of the report.
	XReportID *string `json:"X-Report-ID,omitempty"`
}

// PostReportsJSONRequestBody defines body for PostReports for application/json ContentType.
type PostReportsJSONRequestBody = ReportBody

// RequestEditorFn is the function signature for the RequestEditor callback function
type RequestEditorFn func(ctx context.Context, req *http.Request) error

// HttpRequestDoer performs HTTP requests.
//
// The standard http.Client implements this interface.
type HttpRequestDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the ingestion service.
type Client struct {
	// The endpoint of the server, with scheme, e.g. http://localhost:3000.
	// All paths are appended to it.
	Server string

	// Doer for performing requests, typically a *http.Client.
	Client HttpRequestDoer

	// Callbacks for modifying requests right before they are sent.
	RequestEditors []RequestEditorFn
}

// ClientOption allows setting custom parameters during construction
type ClientOption func(*Client) error

// NewClient creates a new Client, with reasonable defaults
func NewClient(server string, opts ...ClientOption) (*Client, error) {
	client := Client{
		Server: server,
	}
	for _, o := range opts {
		if err := o(&client); err != nil {
			return nil, err
		}
	}
	// ensure the server URL always has a trailing slash
	if !strings.HasSuffix(client.Server, "/") {
		client.Server += "/"
	}
	if client.Client == nil {
		client.Client = &http.Client{}
	}
	return &client, nil
}

// WithHTTPClient allows overriding the default Doer. This is useful for tests.
func WithHTTPClient(doer HttpRequestDoer) ClientOption {
	return func(c *Client) error {
		c.Client = doer
		return nil
	}
}

// WithRequestEditorFn allows setting up a callback function, which will be
// called right before sending the request.
func WithRequestEditorFn(fn RequestEditorFn) ClientOption {
	return func(c *Client) error {
		c.RequestEditors = append(c.RequestEditors, fn)
		return nil
	}
}

// ClientInterface is the interface specification for the client above.
type ClientInterface interface {
	// PostReportsWithBody request with any body
	PostReportsWithBody(ctx context.Context, params *PostReportsParams, contentType string, body io.Reader, reqEditors ...RequestEditorFn) (*http.Response, error)

	PostReports(ctx context.Context, params *PostReportsParams, body PostReportsJSONRequestBody, reqEditors ...RequestEditorFn) (*http.Response, error)
}

// PostReportsWithBody posts a pre-encoded body.
func (c *Client) PostReportsWithBody(ctx context.Context, params *PostReportsParams, contentType string, body io.Reader, reqEditors ...RequestEditorFn) (*http.Response, error) {
	req, err := NewPostReportsRequestWithBody(c.Server, params, contentType, body)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	if err := c.applyEditors(ctx, req, reqEditors); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

// PostReports posts body as JSON.
func (c *Client) PostReports(ctx context.Context, params *PostReportsParams, body PostReportsJSONRequestBody, reqEditors ...RequestEditorFn) (*http.Response, error) {
	req, err := NewPostReportsRequest(c.Server, params, body)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)
	if err := c.applyEditors(ctx, req, reqEditors); err != nil {
		return nil, err
	}
	return c.Client.Do(req)
}

// NewPostReportsRequest calls the generic PostReports builder with application/json body
func NewPostReportsRequest(server string, params *PostReportsParams, body PostReportsJSONRequestBody) (*http.Request, error) {
	var bodyReader io.Reader
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	bodyReader = bytes.NewReader(buf)
	return NewPostReportsRequestWithBody(server, params, "application/json", bodyReader)
}

// NewPostReportsRequestWithBody generates requests for PostReports with any type of body
func NewPostReportsRequestWithBody(server string, params *PostReportsParams, contentType string, body io.Reader) (*http.Request, error) {
	var err error

	serverURL, err := url.Parse(server)
	if err != nil {
		return nil, err
	}

	operationPath := fmt.Sprintf("/api/reports")
	if operationPath[0] == '/' {
		operationPath = "." + operationPath
	}

	queryURL, err := serverURL.Parse(operationPath)
	if err != nil {
		return nil, err
	}

	if params != nil {
		queryValues := queryURL.Query()

		if params.Source != nil {
			if queryFrag, err := runtime.StyleParamWithLocation("form", true, "source", runtime.ParamLocationQuery, *params.Source); err != nil {
				return nil, err
			} else if parsed, err := url.ParseQuery(queryFrag); err != nil {
				return nil, err
			} else {
				for k, v := range parsed {
					for _, v2 := range v {
						queryValues.Add(k, v2)
					}
				}
			}
		}

		queryURL.RawQuery = queryValues.Encode()
	}

	req, err := http.NewRequest("POST", queryURL.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Add("Content-Type", contentType)

	if params != nil && params.XReportID != nil {
		var headerParam0 string

		headerParam0, err = runtime.StyleParamWithLocation("simple", false, "X-Report-ID", runtime.ParamLocationHeader, *params.XReportID)
		if err != nil {
			return nil, err
		}

		req.Header.Set("X-Report-ID", headerParam0)
	}

	return req, nil
}

func (c *Client) applyEditors(ctx context.Context, req *http.Request, additionalEditors []RequestEditorFn) error {
	for _, r := range c.RequestEditors {
		if err := r(ctx, req); err != nil {
			return err
		}
	}
	for _, r := range additionalEditors {
		if err := r(ctx, req); err != nil {
			return err
		}
	}
	return nil
}
