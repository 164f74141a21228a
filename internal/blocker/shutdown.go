package blocker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/snapshots"
)

// DefaultShutdownGrace bounds how long Shutdown keeps retrying Stop.
const DefaultShutdownGrace = 10 * time.Second

// Shutdown gives an active block a last chance to be removed. Stop is
// retried with exponential backoff until it succeeds or grace elapses; every
// failed attempt is returned so the caller can report it, but Shutdown always
// returns.
//
// Stop is always attempted, even when idle, so that a Start still in flight
// is waited for and undone. That wait is bounded by grace too: a Start stuck
// on an unanswered elevation prompt makes Shutdown return ErrBusy.
func (m *Machine) Shutdown(ctx context.Context, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	ctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = grace

	var result *multierror.Error
	attempt := 0
	op := func() error {
		attempt++
		_, err := m.Stop(ctx)
		if err == nil {
			return nil
		}
		result = multierror.Append(result, fmt.Errorf("attempt %d: %w", attempt, err))
		log.Warnf("shutdown: failed to remove block (attempt %d): %v", attempt, err)

		// Another prompt will not change the answer.
		if errors.Is(err, hosts.ErrPermissionDenied) || errors.Is(err, hosts.ErrNoHelper) ||
			errors.Is(err, snapshots.ErrNoBackup) {
			return backoff.Permanent(err)
		}
		return err
	}

	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		log.Errorf("shutdown: hosts file still blocked after %d attempts", attempt)
		if ctxErr := ctx.Err(); ctxErr != nil {
			result = multierror.Append(result, ctxErr)
		}
		return result.ErrorOrNil()
	}

	log.Infof("shutdown: block removed")
	return nil
}
