package messenger

import (
	"context"

	"github.com/ignite/lead-dispatch/internal/pkg/logger"
	"github.com/ignite/lead-dispatch/internal/service/dispatch"
)

// DryRun logs the message instead of sending it.
type DryRun struct{}

func (DryRun) SendInstant(ctx context.Context, phone, message string, opts dispatch.SendOptions) error {
	logger.Info("dry run: message not sent", "phone", phone, "row", opts.Ordinal, "run_id", opts.RunID, "length", len(message))
	return nil
}
