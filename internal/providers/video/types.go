package video

import (
	"context"
	"fmt"
)

// SubmitRequest describes one video-generation job.
type SubmitRequest struct {
	Model       string
	Prompt      string
	Count       int
	Resolution  string
	AspectRatio string
}

// OperationError is a failure reported inside a finished operation.
type OperationError struct {
	Code    int
	Message string
}

func (e *OperationError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
	}
	return e.Message
}

// Operation is the provider's handle for a long-running job.
type Operation struct {
	Name      string
	Done      bool
	VideoURIs []string
	Error     *OperationError
}

// FirstVideoURI returns the retrieval reference of the first generated video.
func (o *Operation) FirstVideoURI() string {
	if o == nil || len(o.VideoURIs) == 0 {
		return ""
	}
	return o.VideoURIs[0]
}

// Media is a fetched asset.
type Media struct {
	Data     []byte
	MIMEType string
}

// StatusError reports a non-success transport status while fetching media.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return e.Status
}

// Provider submits and polls generation jobs.
type Provider interface {
	SubmitJob(ctx context.Context, req SubmitRequest) (*Operation, error)
	PollJob(ctx context.Context, op *Operation) (*Operation, error)
}

// Fetcher downloads generated media by retrieval reference.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*Media, error)
}
