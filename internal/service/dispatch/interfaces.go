package dispatch

import (
	"context"

	"github.com/ignite/lead-dispatch/internal/domain"
)

// TableSource returns a full snapshot of the lead table. Implementations
// wrap unreachable-backend failures with ErrConnection.
type TableSource interface {
	FetchAll(ctx context.Context) (*domain.Dataset, error)
}

// TableWriter writes a single cell. ordinal is the 1-based table row
// (header is row 1) and column is the 0-based header position.
type TableWriter interface {
	SetCell(ctx context.Context, ordinal, column int, value string) error
}

// SendOptions carries per-send metadata a channel may use for correlation.
type SendOptions struct {
	RunID   string
	Ordinal int
}

// Messenger sends one message right now. Failures should be *ChannelError
// so the detail recorded in the table is meaningful.
type Messenger interface {
	SendInstant(ctx context.Context, phone, message string, opts SendOptions) error
}

// Observer is told about every row that reached Recorded. Errors are logged
// and otherwise ignored.
type Observer interface {
	Observe(ctx context.Context, result domain.RowResult) error
}
