//go:build darwin

package dnscache

import (
	"context"
	"fmt"
)

func platformFlush(ctx context.Context) error {
	if err := runQuiet(ctx, "dscacheutil", "-flushcache"); err != nil {
		return fmt.Errorf("dscacheutil: %w", err)
	}
	// mDNSResponder keeps its own cache; HUP makes it reread.
	if err := runQuiet(ctx, "killall", "-HUP", "mDNSResponder"); err != nil {
		return fmt.Errorf("killall mDNSResponder: %w", err)
	}
	return nil
}
