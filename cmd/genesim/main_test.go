package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func invoke(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = cli(context.Background(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

var runKeyPattern = regexp.MustCompile(`run ([0-9a-f-]{36}),`)

func runKey(t *testing.T, stdout string) string {
	t.Helper()
	m := runKeyPattern.FindStringSubmatch(stdout)
	if m == nil {
		t.Fatalf("no run key in output %q", stdout)
	}
	return m[1]
}

func TestRunPrintsOutcome(t *testing.T) {
	code, stdout, stderr := invoke(t, "run", "--store", "memory", "--cycles", "3", "--seed", "5")
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	if !strings.HasPrefix(stdout, "simulation 1 (run ") {
		t.Fatalf("unexpected output %q", stdout)
	}
	if !strings.Contains(stdout, "seed 5): 3 cycles") {
		t.Fatalf("seed or cycle override missing: %q", stdout)
	}
	if !strings.Contains(stderr, "level=INFO") {
		t.Fatalf("expected info logs on stderr, got %q", stderr)
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	strip := func(s string) string { return runKeyPattern.ReplaceAllString(s, "run X,") }
	_, first, _ := invoke(t, "run", "--store", "memory", "--cycles", "4")
	_, second, _ := invoke(t, "run", "--store", "memory", "--cycles", "4")
	if strip(first) != strip(second) {
		t.Fatalf("outputs differ:\n%s\n%s", first, second)
	}
}

func TestRunMonitorMode(t *testing.T) {
	code, stdout, stderr := invoke(t, "run", "--store", "memory", "--cycles", "3", "--mode", "MONITOR")
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 3 monitor lines and a result line, got %q", lines)
	}
	for i, prefix := range []string{"Cycle     1/    3", "Cycle     2/    3", "Cycle     3/    3"} {
		if !strings.HasPrefix(lines[i], prefix) {
			t.Fatalf("line %d = %q, want prefix %q", i, lines[i], prefix)
		}
	}
}

func TestRunDebugModeTraces(t *testing.T) {
	code, _, stderr := invoke(t, "run", "--store", "memory", "--cycles", "2", "--mode", "debug")
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	for _, want := range []string{`"operation":"simulation.run"`, `"operation":"cycle.`, "level=DEBUG", "phase timings"} {
		if !strings.Contains(stderr, want) {
			t.Fatalf("stderr missing %s", want)
		}
	}
}

func TestRunExportsToFilesystem(t *testing.T) {
	root := t.TempDir()
	code, stdout, stderr := invoke(t, "run", "--store", "memory", "--cycles", "3", "--export", "fs", "--export-root", root)
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	dir := filepath.Join(root, "runs", runKey(t, stdout))
	for _, name := range []string{"stats.csv", "trait_stats.csv", "config.yaml", "summary.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("artifact %s: %v", name, err)
		}
		if !strings.Contains(stdout, name+" (") {
			t.Fatalf("artifact %s not listed in %q", name, stdout)
		}
	}
	stats, err := os.ReadFile(filepath.Join(dir, "stats.csv"))
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	if got := strings.Count(strings.TrimSpace(string(stats)), "\n"); got != 3 {
		t.Fatalf("stats.csv has %d data rows, want 3", got)
	}
}

func TestExportRecordedSimulation(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "genesim.db")
	code, stdout, stderr := invoke(t, "run", "--store", "sqlite", "--sqlite-path", db, "--cycles", "3")
	if code != 0 {
		t.Fatalf("run exit %d, stderr %s", code, stderr)
	}
	key := runKey(t, stdout)

	root := filepath.Join(dir, "artifacts")
	code, stdout, stderr = invoke(t, "export", "1", "--store", "sqlite", "--sqlite-path", db, "--export", "fs", "--export-root", root)
	if code != 0 {
		t.Fatalf("export exit %d, stderr %s", code, stderr)
	}
	if runKey(t, stdout) != key {
		t.Fatalf("export used a different run key: %q", stdout)
	}
	cfg, err := os.ReadFile(filepath.Join(root, "runs", key, "config.yaml"))
	if err != nil {
		t.Fatalf("read config echo: %v", err)
	}
	if !strings.Contains(string(cfg), "seed: 42") {
		t.Fatalf("config echo missing seed: %s", cfg)
	}

	code, _, stderr = invoke(t, "export", "1", "--store", "sqlite", "--sqlite-path", db, "--export", "fs", "--export-root", root)
	if code != 1 || !strings.Contains(stderr, "already exists") {
		t.Fatalf("second export: exit %d, stderr %s", code, stderr)
	}
	code, _, stderr = invoke(t, "export", "7", "--store", "sqlite", "--sqlite-path", db, "--export", "memory")
	if code != 1 {
		t.Fatalf("unknown simulation: exit %d, stderr %s", code, stderr)
	}
	code, _, _ = invoke(t, "export", "abc", "--store", "memory", "--export", "memory")
	if code != 1 {
		t.Fatalf("invalid id: exit %d", code)
	}
}

func TestValidate(t *testing.T) {
	code, stdout, stderr := invoke(t, "validate")
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	if want := "configuration valid: 30 cycles, 100 founders, 8 breeders, 2 traits\n"; stdout != want {
		t.Fatalf("got %q, want %q", stdout, want)
	}

	code, stdout, _ = invoke(t, "validate", "--print", "--seed", "11")
	if code != 0 || !strings.Contains(stdout, "seed: 11") {
		t.Fatalf("print: exit %d, output %q", code, stdout)
	}

	code, stdout, _ = invoke(t, "validate", "--config", filepath.Join("..", "..", "configs", "kennel_vs_mill.yaml"))
	if code != 0 || !strings.Contains(stdout, "15 breeders") {
		t.Fatalf("example config: exit %d, output %q", code, stdout)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "years: -1\ninitial_population_size: 0\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	code, _, stderr := invoke(t, "validate", "--config", path)
	if code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	for _, field := range []string{"years", "initial_population_size"} {
		if !strings.Contains(stderr, field) {
			t.Fatalf("stderr %q missing %s", stderr, field)
		}
	}

	if code, _, _ := invoke(t, "validate", "--mode", "loud"); code != 2 {
		t.Fatalf("bad mode: exit %d, want 2", code)
	}
	if code, _, _ := invoke(t, "validate", "--cycles", "0"); code != 2 {
		t.Fatalf("zero cycles: exit %d, want 2", code)
	}
	if code, _, _ := invoke(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml")); code != 1 {
		t.Fatalf("missing file: exit %d, want 1", code)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GENESIM_SEED", "9")
	t.Setenv("GENESIM_STORE", "memory")
	t.Setenv("GENESIM_CYCLES", "2")
	code, stdout, stderr := invoke(t, "run")
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	if !strings.Contains(stdout, "seed 9): 2 cycles") {
		t.Fatalf("environment not applied: %q", stdout)
	}
	code, stdout, _ = invoke(t, "run", "--seed", "3")
	if code != 0 || !strings.Contains(stdout, "seed 3)") {
		t.Fatalf("flag should win over environment: %q", stdout)
	}
}

func TestUnknownStoreFails(t *testing.T) {
	code, _, stderr := invoke(t, "run", "--store", "oracle")
	if code != 1 || !strings.Contains(stderr, "unknown storage driver") {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	code, _, stderr = invoke(t, "run", "--store", "memory", "--export", "gcs")
	if code != 1 || !strings.Contains(stderr, "unknown blob driver") {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
}

func TestMainExitCodes(t *testing.T) {
	var codes []int
	old, oldArgs := exitFunc, os.Args
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc, os.Args = old, oldArgs }()

	os.Args = []string{"genesim", "validate", "--print"}
	main()
	os.Args = []string{"genesim", "no-such-command"}
	main()
	if len(codes) != 2 || codes[0] != 0 || codes[1] != 1 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}

func TestMetricsServer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ms, err := startMetricsServer("127.0.0.1:0", logger)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ms.addr.String() + metricsPath)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "genesim_cycles_total") {
		t.Fatalf("status %d body %s", resp.StatusCode, body)
	}
	if err := ms.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRunServesMetrics(t *testing.T) {
	code, _, stderr := invoke(t, "run", "--store", "memory", "--cycles", "2", "--metrics-addr", "127.0.0.1:0")
	if code != 0 {
		t.Fatalf("exit %d, stderr %s", code, stderr)
	}
	if !strings.Contains(stderr, "serving metrics") {
		t.Fatalf("stderr %q", stderr)
	}
}
