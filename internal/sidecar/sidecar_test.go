package sidecar

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/PriNova/graphone/internal/config"
	"github.com/PriNova/graphone/internal/log"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func shellSupervisor(script string, grace time.Duration) *Supervisor {
	return NewSupervisor(config.SidecarConfig{
		Binary:    "/bin/sh",
		Args:      []string{"-c", script},
		StopGrace: grace,
	})
}

// drain collects all output until the channel closes. It reports a timeout
// with t.Error so it can run in its own goroutine.
func drain(t *testing.T, p *Process) (stdout, stderr string, final Output) {
	t.Helper()
	var out, errOut bytes.Buffer
	timeout := time.After(10 * time.Second)
	for {
		select {
		case item, ok := <-p.Output():
			if !ok {
				return out.String(), errOut.String(), final
			}
			switch item.Kind {
			case OutputStdout:
				out.Write(item.Data)
			case OutputStderr:
				errOut.Write(item.Data)
			default:
				final = item
			}
		case <-timeout:
			t.Error("timed out draining process output")
			return out.String(), errOut.String(), final
		}
	}
}

func TestProcessEchoAndExitCode(t *testing.T) {
	s := shellSupervisor(`read line; echo "got:$line"; echo "oops" >&2; exit 3`, time.Second)
	p, err := s.Start(context.Background(), StartOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if p.PID() <= 0 {
		t.Fatalf("expected a pid, got %d", p.PID())
	}
	if err := p.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	stdout, stderr, final := drain(t, p)
	if stdout != "got:hello\n" {
		t.Errorf("stdout = %q", stdout)
	}
	if stderr != "oops\n" {
		t.Errorf("stderr = %q", stderr)
	}
	if final.Kind != OutputTerminated || final.Code != 3 {
		t.Errorf("final = %+v, want terminated with code 3", final)
	}
	<-p.Done()
	if err := p.Write([]byte("late\n")); err == nil {
		t.Error("write after exit should fail")
	}
}

func TestProcessStopSendsSIGTERM(t *testing.T) {
	s := shellSupervisor(`exec sleep 30`, 2*time.Second)
	p, err := s.Start(context.Background(), StartOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan Output, 1)
	go func() {
		_, _, final := drain(t, p)
		done <- final
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	final := <-done
	if final.Kind != OutputTerminated || final.Code != -1 || final.Signal != "terminated" {
		t.Errorf("final = %+v, want SIGTERM termination", final)
	}
	if !errors.Is(p.Write([]byte("x\n")), ErrStdinClosed) {
		t.Error("write after stop should report closed stdin")
	}
}

func TestProcessStopEscalatesToSIGKILL(t *testing.T) {
	s := shellSupervisor(`trap '' TERM; while :; do sleep 0.05; done`, 200*time.Millisecond)
	p, err := s.Start(context.Background(), StartOptions{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		drain(t, p)
	}()

	// Give the shell time to install its trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected to wait for the grace period, stopped after %v", elapsed)
	}
	<-drained
}

func TestStartMissingBinary(t *testing.T) {
	s := NewSupervisor(config.SidecarConfig{Binary: filepath.Join(t.TempDir(), "pi-agent")})
	_, err := s.Start(context.Background(), StartOptions{})
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}

	s = NewSupervisor(config.SidecarConfig{Binary: "graphone-no-such-binary"})
	if _, err := s.Start(context.Background(), StartOptions{}); !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn for PATH lookup, got %v", err)
	}
}

func TestInvocationArgs(t *testing.T) {
	s := NewSupervisor(config.SidecarConfig{
		Binary: "/bin/sh",
		Args:   []string{"--mode", "rpc", "--no-session"},
		Env:    map[string]string{"PI_TEST": "1"},
	})
	inv, err := s.Invocation(context.Background(), StartOptions{Provider: " anthropic ", Model: "sonnet"})
	if err != nil {
		t.Fatalf("Invocation: %v", err)
	}
	want := "--mode rpc --no-session --provider anthropic --model sonnet"
	if got := strings.Join(inv.Args, " "); got != want {
		t.Errorf("args = %q, want %q", got, want)
	}
	if inv.Dir != "/bin" {
		t.Errorf("dir = %q, want binary directory", inv.Dir)
	}
	found := false
	for _, kv := range inv.Env {
		if kv == "PI_TEST=1" {
			found = true
		}
	}
	if !found {
		t.Error("extra env not applied")
	}

	inv, _ = s.Invocation(context.Background(), StartOptions{})
	if len(inv.Args) != 3 {
		t.Errorf("blank overrides must not add flags: %v", inv.Args)
	}
}

func TestMergeEnvOverrides(t *testing.T) {
	got := mergeEnv([]string{"A=1", "B=2"}, map[string]string{"B": "3", "C": "4"})
	want := []string{"A=1", "B=3", "C=4"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("mergeEnv = %v, want %v", got, want)
	}
}

func writeArchive(t *testing.T, path string, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

func TestStagerExtractsAndReuses(t *testing.T) {
	bundle := t.TempDir()
	runtime := filepath.Join(t.TempDir(), "runtime")
	archive := filepath.Join(bundle, "pi-agent.gz")
	writeArchive(t, archive, []byte("\x7fELF-first-build"))
	if err := os.WriteFile(filepath.Join(bundle, "theme.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(bundle, "docs"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(bundle, "docs", "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := NewStager(archive, runtime)
	ctx := context.Background()
	bin, err := st.Stage(ctx)
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if bin != filepath.Join(runtime, "pi-agent") {
		t.Fatalf("binary path = %q", bin)
	}
	info, err := os.Stat(bin)
	if err != nil {
		t.Fatalf("stat binary: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("binary mode = %v, want 0755", info.Mode().Perm())
	}
	if _, err := os.Stat(filepath.Join(runtime, "theme.json")); err != nil {
		t.Errorf("sibling asset not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runtime, "docs", "README.md")); err != nil {
		t.Errorf("sibling directory not copied: %v", err)
	}
	fp, _ := Fingerprint(archive)
	stamp, _ := os.ReadFile(bin + ".stamp")
	if strings.TrimSpace(string(stamp)) != fp {
		t.Errorf("stamp = %q, want %q", stamp, fp)
	}

	// Fresh runtime is reused: a marker appended to the binary survives.
	if err := os.WriteFile(bin, []byte("\x7fELF-first-build+marker"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Stage(ctx); err != nil {
		t.Fatalf("second Stage: %v", err)
	}
	if got, _ := os.ReadFile(bin); string(got) != "\x7fELF-first-build+marker" {
		t.Errorf("fresh runtime should not be re-extracted, got %q", got)
	}

	// A corrupted binary is refreshed.
	if err := os.WriteFile(bin, []byte("garbage"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Stage(ctx); err != nil {
		t.Fatalf("third Stage: %v", err)
	}
	if got, _ := os.ReadFile(bin); string(got) != "\x7fELF-first-build" {
		t.Errorf("invalid binary should be re-extracted, got %q", got)
	}

	// A new archive is picked up.
	writeArchive(t, archive, []byte("\x7fELF-second-build"))
	if _, err := st.Stage(ctx); err != nil {
		t.Fatalf("fourth Stage: %v", err)
	}
	if got, _ := os.ReadFile(bin); string(got) != "\x7fELF-second-build" {
		t.Errorf("changed archive should be re-extracted, got %q", got)
	}
}

func TestStagerRejectsNonExecutable(t *testing.T) {
	bundle := t.TempDir()
	archive := filepath.Join(bundle, "pi-agent.gz")
	writeArchive(t, archive, []byte("#!/bin/sh\necho hi\n"))

	st := NewStager(archive, filepath.Join(t.TempDir(), "runtime"))
	if _, err := st.Stage(context.Background()); !errors.Is(err, ErrNotExecutable) {
		t.Fatalf("expected ErrNotExecutable, got %v", err)
	}
	if _, err := os.Stat(st.BinaryPath()); !os.IsNotExist(err) {
		t.Errorf("invalid binary must not be installed, stat err = %v", err)
	}
}

func TestValidateExecutable(t *testing.T) {
	dir := t.TempDir()
	cases := map[string][]byte{
		"elf":   []byte("\x7fELFxxxx"),
		"macho": {0xcf, 0xfa, 0xed, 0xfe, 0x07},
		"pe":    []byte("MZ\x90\x00"),
	}
	for name, data := range cases {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := ValidateExecutable(p); err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}

	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ValidateExecutable(empty); !errors.Is(err, ErrNotExecutable) {
		t.Errorf("empty file: expected ErrNotExecutable, got %v", err)
	}
}
