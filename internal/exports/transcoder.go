package exports

import (
	"context"
	"io"
	"time"

	"github.com/amankumarsingh77/playlist-exporter/internal/models"
)

type ProgressFunc func(p models.ConvertProgress)

// Transcoder is the external conversion engine. Convert must return only after
// any process it started has exited.
type Transcoder interface {
	Convert(ctx context.Context, req *models.ConvertRequest, onProgress ProgressFunc) (*models.ConvertResult, error)
}

// Dispatcher starts the background conversion of a freshly created job.
type Dispatcher interface {
	Dispatch(job *models.ExportJob)
}

type Artifact struct {
	Name    string
	ModTime time.Time
	Size    int64
	Content io.ReadSeekCloser
}
