package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/config"
)

var errNotRunning = errors.New("server is not running")

func writePID(path string) error {
	if path == "" {
		return nil
	}
	if pid, err := readPID(path); err == nil && alive(pid) {
		return fmt.Errorf("already running with pid %d", pid)
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func removePID(path string) {
	if path == "" {
		return
	}
	if pid, err := readPID(path); err == nil && pid == os.Getpid() {
		_ = os.Remove(path)
	}
}

func readPID(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(b)))
}

func alive(pid int) bool {
	return pid > 0 && syscall.Kill(pid, 0) == nil
}

func signalServer(loader *config.Loader, sig syscall.Signal) (int, error) {
	cfg, err := loader.Load()
	if err != nil {
		return 0, err
	}
	pid, err := readPID(cfg.PIDFile)
	if err != nil || !alive(pid) {
		return 0, errNotRunning
	}
	if err := syscall.Kill(pid, sig); err != nil {
		return 0, fmt.Errorf("signal %d: %w", pid, err)
	}
	log.Info().Str("module", "main").Int("pid", pid).Str("signal", sig.String()).Msg("signal sent")
	return pid, nil
}

// stop sends SIGTERM and waits for the process to exit.
func stop(loader *config.Loader) error {
	pid, err := signalServer(loader, syscall.SIGTERM)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(15 * time.Second)
	for alive(pid) {
		if time.Now().After(deadline) {
			return fmt.Errorf("pid %d still running", pid)
		}
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}

func reload(loader *config.Loader) error {
	_, err := signalServer(loader, syscall.SIGHUP)
	return err
}

// status prints /api/stats of the local server.
func status(loader *config.Loader, out io.Writer) error {
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/stats", cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errNotRunning, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stats: unexpected status %s", resp.Status)
	}

	var stats map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return fmt.Errorf("stats: %w", err)
	}
	b, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(b))
	return err
}
