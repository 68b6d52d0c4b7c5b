package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Reloader is the part of the retrieval service a reload job drives.
type Reloader interface {
	Reload(ctx context.Context) (ReloadSummary, error)
}

// ReloadSummary is what a job logs about a finished reload.
type ReloadSummary struct {
	Generation uint64
	Chunks     int
}

type ReloadFunc func(ctx context.Context) (ReloadSummary, error)

func (f ReloadFunc) Reload(ctx context.Context) (ReloadSummary, error) {
	return f(ctx)
}

// ReloadJob rebuilds the segment store on a schedule. A failed run leaves the
// previous generation serving.
type ReloadJob struct {
	name     string
	reloader Reloader
}

func NewReloadJob(name string, reloader Reloader) *ReloadJob {
	if name == "" {
		name = "document_reload"
	}
	return &ReloadJob{name: name, reloader: reloader}
}

func (j *ReloadJob) Name() string {
	return j.name
}

func (j *ReloadJob) Run(ctx context.Context) error {
	if j.reloader == nil {
		return nil
	}
	res, err := j.reloader.Reload(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("scheduled reload done",
		zap.String("job", j.name),
		zap.Uint64("generation", res.Generation),
		zap.Int("chunks", res.Chunks))
	return nil
}
