package out

import (
	"context"
	"time"

	providerdomain "provhost/internal/modules/provider/domain"
	"provhost/internal/modules/providertest/domain"
)

// ProviderSource exposes loaded providers to the harness.
type ProviderSource interface {
	// Loaded lists providers with a registered capability object, in display order.
	Loaded(ctx context.Context) ([]domain.Target, error)
	API(ctx context.Context, id string) (providerdomain.ProviderAPI, error)
}

type Metrics interface {
	TestCaseFinished(status string, elapsed time.Duration)
}
