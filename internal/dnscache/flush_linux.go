//go:build linux

package dnscache

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	log "github.com/sirupsen/logrus"
)

const (
	resolvedDest        = "org.freedesktop.resolve1"
	resolvedObjectNode  = "/org/freedesktop/resolve1"
	resolvedFlushCaches = "org.freedesktop.resolve1.Manager.FlushCaches"
	dbusDefaultFlag     = 0
)

// platformFlush asks systemd-resolved to drop its cache over D-Bus and falls
// back to resolvectl. Hosts without a caching resolver need nothing.
func platformFlush(ctx context.Context) error {
	err := flushResolved(ctx)
	if err == nil {
		return nil
	}
	log.Tracef("systemd-resolved flush over dbus failed: %v", err)

	if err := runQuiet(ctx, "resolvectl", "flush-caches"); err != nil {
		return fmt.Errorf("flush caches: %w", err)
	}
	return nil
}

func flushResolved(ctx context.Context) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("get dbus: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Warnf("got an error closing dbus connection, err: %s", err)
		}
	}()

	obj := conn.Object(resolvedDest, dbus.ObjectPath(resolvedObjectNode))
	if err := obj.CallWithContext(ctx, resolvedFlushCaches, dbusDefaultFlag).Store(); err != nil {
		return fmt.Errorf("call FlushCaches: %w", err)
	}
	return nil
}
