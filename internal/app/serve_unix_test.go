//go:build !windows

package app

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/pomoblock/internal/api"
	"github.com/blackwell-systems/pomoblock/internal/config"
	"github.com/blackwell-systems/pomoblock/internal/hosts"
	"github.com/blackwell-systems/pomoblock/internal/watcher"
)

const testHosts = "127.0.0.1 localhost\n::1 localhost\n"

// testConfig points every path at a fresh temp directory. The socket lives
// under a short /tmp path to stay within the unix socket length limit.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	sockDir, err := os.MkdirTemp("", "pb")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(sockDir) })

	c := config.Default()
	c.HostsPath = filepath.Join(dir, "hosts")
	c.BackupPath = filepath.Join(dir, "backup.txt")
	c.DBPath = filepath.Join(dir, "pomoblock.db")
	c.LockPath = filepath.Join(dir, config.LockFileName)
	c.Socket = filepath.Join(sockDir, "s.sock")
	c.FlushDNS = false
	c.ShutdownGrace = 2 * time.Second

	if err := os.WriteFile(c.HostsPath, []byte(testHosts), 0644); err != nil {
		t.Fatal(err)
	}
	return c
}

func waitForDaemon(t *testing.T, client *api.Client) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := client.Status(context.Background()); err == nil {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("daemon did not come up")
}

func readHosts(t *testing.T, c *config.Config) string {
	t.Helper()
	data, err := os.ReadFile(c.HostsPath)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestServe_StartStopOverAPI(t *testing.T) {
	c := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- serve(ctx, c, io.Discard) }()

	client := api.NewClient(c.Socket)
	waitForDaemon(t, client)

	res, err := client.Start(context.Background(), []string{"Example.com"})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !res.Success {
		t.Fatalf("start failed: %s", res.Error)
	}

	content := readHosts(t, c)
	if !strings.Contains(content, hosts.MarkerStart) || !strings.Contains(content, "127.0.0.1 www.example.com") {
		t.Errorf("expected block in hosts file, got:\n%s", content)
	}

	st, err := client.Status(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !st.Active || len(st.Domains) != 1 || st.Domains[0] != "example.com" {
		t.Errorf("unexpected status %+v", st)
	}

	res, err = client.Stop(context.Background())
	if err != nil || !res.Success {
		t.Fatalf("stop: %v %s", err, res.Error)
	}
	if got := readHosts(t, c); got != testHosts {
		t.Errorf("expected original hosts file back, got:\n%s", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestServe_ShutdownRemovesBlock(t *testing.T) {
	c := testConfig(t)

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), c, io.Discard) }()

	client := api.NewClient(c.Socket)
	waitForDaemon(t, client)

	res, err := client.Start(context.Background(), []string{"reddit.com", "youtube.com"})
	if err != nil || !res.Success {
		t.Fatalf("start: %v %s", err, res.Error)
	}

	if err := client.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after shutdown request")
	}

	if got := readHosts(t, c); got != testHosts {
		t.Errorf("expected original hosts file after shutdown, got:\n%s", got)
	}
}

func TestServe_SecondEngineRefused(t *testing.T) {
	c := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, c, io.Discard) }()
	waitForDaemon(t, api.NewClient(c.Socket))

	// A session or local force clean started now must not touch the file.
	other := *c
	other.Socket = c.Socket + ".2"
	if err := serve(context.Background(), &other, io.Discard); !errors.Is(err, watcher.ErrLocked) {
		t.Fatalf("second serve error = %v, want ErrLocked", err)
	}
	if _, err := localForceCleanWith(context.Background(), &other); !errors.Is(err, watcher.ErrLocked) {
		t.Errorf("local force clean error = %v, want ErrLocked", err)
	}
	if got := readHosts(t, c); got != testHosts {
		t.Errorf("hosts file changed by a refused engine:\n%s", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancel")
	}

	e, err := newEngine(c)
	if err != nil {
		t.Fatalf("newEngine after daemon exit: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestServe_RecoversLeftoverBlock(t *testing.T) {
	c := testConfig(t)

	set, err := hosts.NewEntrySet([]string{"news.ycombinator.com"})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.BackupPath, []byte(testHosts), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.HostsPath, []byte(hosts.RenderBlocked(testHosts, set, "\n")), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, c, io.Discard) }()

	waitForDaemon(t, api.NewClient(c.Socket))
	if got := readHosts(t, c); got != testHosts {
		t.Errorf("expected leftover block removed on startup, got:\n%s", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("serve returned %v", err)
	}
}

func TestDoctorChecks(t *testing.T) {
	c := testConfig(t)
	old := cfg
	cfg = c
	defer func() { cfg = old }()

	checks := doctorChecks(context.Background())

	byName := make(map[string]string)
	for _, ch := range checks {
		byName[ch.Name] = ch.Detail
	}
	for _, name := range []string{"Platform", "Hosts file", "Write access", "Block markers", "Backup", "Daemon", "Database"} {
		if _, ok := byName[name]; !ok {
			t.Errorf("expected a %q check, got %+v", name, checks)
		}
	}
	if !strings.Contains(byName["Daemon"], "not running") {
		t.Errorf("expected daemon not running, got %q", byName["Daemon"])
	}
	if byName["Block markers"] != "no block" {
		t.Errorf("expected no block, got %q", byName["Block markers"])
	}
}

func TestResetBackup(t *testing.T) {
	c := testConfig(t)
	old := cfg
	cfg = c
	defer func() { cfg = old }()

	if err := os.WriteFile(c.BackupPath, []byte(testHosts), 0644); err != nil {
		t.Fatal(err)
	}

	set, _ := hosts.NewEntrySet([]string{"example.com"})
	if err := os.WriteFile(c.HostsPath, []byte(hosts.RenderBlocked(testHosts, set, "\n")), 0644); err != nil {
		t.Fatal(err)
	}
	if err := resetBackup(); err == nil {
		t.Fatal("expected reset to be refused while blocked")
	}
	if _, err := os.Stat(c.BackupPath); err != nil {
		t.Fatalf("backup should be kept: %v", err)
	}

	if err := os.WriteFile(c.HostsPath, []byte(testHosts), 0644); err != nil {
		t.Fatal(err)
	}
	if err := resetBackup(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := os.Stat(c.BackupPath); !os.IsNotExist(err) {
		t.Errorf("expected backup removed, stat err = %v", err)
	}
}
