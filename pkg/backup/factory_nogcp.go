//go:build !gcp

package backup

import (
	"context"
	"fmt"
)

func newGCSStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	return nil, fmt.Errorf("GCS backup storage is not enabled in this build (use -tags gcp)")
}
