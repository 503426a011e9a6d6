package out

import (
	"context"

	"provhost/internal/modules/repository/domain"
)

// Store persists the ordered repository list. Update is an atomic read-modify-write.
type Store interface {
	List(ctx context.Context) ([]domain.Repository, error)
	Update(ctx context.Context, fn func([]domain.Repository) ([]domain.Repository, error)) error
}
