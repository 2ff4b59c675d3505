package backup

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/pkg/errors"
)

// Job is one unit of work for a Runner, typically an account backup.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner runs jobs one after another. A failing job does not stop the
// ones after it.
type Runner struct {
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run returns the errors of every failed job joined together.
func (r *Runner) Run(ctx context.Context, jobs ...Job) error {
	var errs []error
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		r.logger.Info("starting", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			r.logger.Error("job failed", "job", job.Name(), "error", err)
			errs = append(errs, errors.Wrap(err, job.Name()))
			continue
		}
		r.logger.Info("finished", "job", job.Name())
	}
	return stderrors.Join(errs...)
}
