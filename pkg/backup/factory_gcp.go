//go:build gcp

package backup

import "context"

func newGCSStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	store, err := NewGCSStore(ctx, GCSStoreConfig{
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}
