package repository

import "context"

// ReferenceRepository hands out collision-free human readable codes
type ReferenceRepository interface {
	NextReference(ctx context.Context, prefix string) (string, error)
}
