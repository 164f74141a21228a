//go:build windows

package dnscache

import (
	"context"
	"fmt"
)

func platformFlush(ctx context.Context) error {
	if err := runQuiet(ctx, "ipconfig", "/flushdns"); err != nil {
		return fmt.Errorf("ipconfig /flushdns: %w", err)
	}
	return nil
}
