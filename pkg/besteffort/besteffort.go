// Package besteffort runs side effects whose failure must not change the
// outcome of the operation that triggered them.
package besteffort

import (
	"context"
	"fmt"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// Result reports what happened to a best-effort step. Callers that do not
// care discard it explicitly with `_ =`.
type Result struct {
	Name      string
	Err       error
	Recovered bool
}

// OK reports whether the step finished without error or panic.
func (r Result) OK() bool {
	return r.Err == nil
}

// Run executes fn, converting a panic into an error. Failures are logged
// under "<name>.failed" and returned, never propagated.
func Run(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) (res Result) {
	res.Name = name
	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("panic: %v", rec)
			res.Recovered = true
			logFailure(ctx, logg, name, res.Err)
		}
	}()

	if fn == nil {
		return res
	}
	if err := fn(ctx); err != nil {
		res.Err = err
		logFailure(ctx, logg, name, err)
	}
	return res
}

func logFailure(ctx context.Context, logg *logger.Logger, name string, err error) {
	if logg == nil {
		return
	}
	logg.Warn(logg.WithField(ctx, "error", err.Error()), name+".failed")
}
