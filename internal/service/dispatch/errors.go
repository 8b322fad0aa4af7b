package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors that abort a run before any row is touched.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrConnection    = errors.New("connection error")
)

// ChannelError is returned by a Messenger when the transport rejects or fails
// a send. Detail is written into the status cell.
type ChannelError struct {
	Detail string
	Err    error
}

func (e *ChannelError) Error() string {
	return e.Detail
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// NewChannelError wraps err with a human-readable detail.
func NewChannelError(detail string, err error) *ChannelError {
	return &ChannelError{Detail: detail, Err: err}
}

// WriteError describes a failed status write-back.
type WriteError struct {
	Ordinal int
	Column  int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write row %d column %d: %v", e.Ordinal, e.Column, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// channelDetail extracts the text recorded for a failed send.
func channelDetail(err error) string {
	var ce *ChannelError
	if errors.As(err, &ce) && ce.Detail != "" {
		return ce.Detail
	}
	return err.Error()
}
