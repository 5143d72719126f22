package ports

import (
	"context"

	"statcore/domain/dataset"
)

// DatasetReader loads observation rows from an external source
type DatasetReader interface {
	Read(ctx context.Context) (*dataset.Dataset, error)
}
