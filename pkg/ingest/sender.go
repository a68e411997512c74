package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wurt83ow/netalerte-client/pkg/appcontext"
	"github.com/wurt83ow/netalerte-client/pkg/models"
)

// Report sources sent as the source query parameter.
const (
	SourceDirect  = "direct"
	SourceOffline = "offline"
)

// ErrNetworkUnavailable wraps every transport-level failure.
var ErrNetworkUnavailable = errors.New("network unavailable")

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error includes the status and the start of the response body.
func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Body)
}

// Sender submits one report per call. Every failure it returns is retryable.
type Sender struct {
	client ClientInterface
	source string
}

// NewSender wraps client. source is reported to the service with each request.
func NewSender(client ClientInterface, source string) *Sender {
	return &Sender{client: client, source: source}
}

// SubmitReport posts r and returns nil once the service has accepted it.
func (s *Sender) SubmitReport(ctx context.Context, r models.PendingReport) error {
	params := &PostReportsParams{}
	if s.source != "" {
		source := s.source
		params.Source = &source
	}
	if r.ID != "" {
		id := r.ID
		params.XReportID = &id
	}

	resp, err := s.client.PostReports(ctx, params, BodyFromReport(r))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}

// BodyFromReport maps a queued report to the request body.
func BodyFromReport(r models.PendingReport) ReportBody {
	return ReportBody{
		Operator:       r.Operator,
		ProblemType:    r.ProblemType,
		SignalStrength: r.SignalStrength,
		NetworkType:    optional(r.NetworkType),
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		Description:    optional(r.Description),
		Region:         optional(r.Region),
		Timestamp:      r.EnqueuedAt,
	}
}

// WithBearerToken adds an Authorization header. A token carried by the request
// context wins over the static one.
func WithBearerToken(static string) ClientOption {
	return WithRequestEditorFn(func(ctx context.Context, req *http.Request) error {
		token, ok := appcontext.AuthToken(ctx)
		if !ok {
			token = static
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return nil
	})
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
