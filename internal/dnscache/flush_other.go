//go:build !linux && !darwin && !windows

package dnscache

import "context"

func platformFlush(ctx context.Context) error {
	return nil
}
