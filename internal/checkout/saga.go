package checkout

import (
	"context"
	"fmt"
	"log/slog"
)

// step is one stage of a checkout. It reads earlier stages' output from
// the shared state and records its own.
type step struct {
	name string
	run  func(ctx context.Context, st *state) error
}

// runSteps executes steps in order and stops at the first failure.
func runSteps(ctx context.Context, logger *slog.Logger, steps []step, st *state) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if err := s.run(ctx, st); err != nil {
			logger.ErrorContext(ctx, "checkout step failed",
				slog.String("step", s.name),
				slog.String("order_id", st.orderID),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%s: %w", s.name, err)
		}
		logger.DebugContext(ctx, "checkout step done",
			slog.String("step", s.name),
			slog.String("order_id", st.orderID),
		)
	}
	return nil
}

// runBestEffort executes every step regardless of failures, logging each one.
// Used after the commit point, where nothing may fail the checkout.
func runBestEffort(ctx context.Context, logger *slog.Logger, steps []step, st *state) {
	for _, s := range steps {
		if err := s.run(ctx, st); err != nil {
			logger.WarnContext(ctx, "best-effort checkout step skipped",
				slog.String("step", s.name),
				slog.String("order_id", st.orderID),
				slog.String("error", err.Error()),
			)
		}
	}
}
