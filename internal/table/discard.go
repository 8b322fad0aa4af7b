package table

import (
	"context"

	"github.com/ignite/lead-dispatch/internal/pkg/logger"
)

// Discard is a dispatch.TableWriter that leaves the table untouched. It is
// used for dry runs.
type Discard struct{}

func (Discard) SetCell(ctx context.Context, ordinal, column int, value string) error {
	logger.Debug("dry run: status not written", "row", ordinal, "column", column, "value", value)
	return nil
}
