// Package fanout fetches many keys concurrently.
package fanout

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Fetcher loads one key.
type Fetcher interface {
	Fetch(key string) (string, error)
}

// FetchAll fetches every key on its own goroutine and returns the values in key
// order, or the first error.
func FetchAll(ctx context.Context, fetcher Fetcher, keys []string) ([]string, error) {
	values := make([]string, len(keys))
	group, _ := errgroup.WithContext(ctx)

	for index, key := range keys {
		group.Go(func() error {
			value, err := fetcher.Fetch(key)
			if err != nil {
				return err
			}

			values[index] = value

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return values, nil
}
