package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gradebook/pkg/domain"
)

func memoryEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GRADEBOOK_STORAGE_DRIVER", "memory")
	t.Setenv("GRADEBOOK_BLOB_DRIVER", "memory")
	t.Setenv("GRADEBOOK_LOG_LEVEL", "error")
}

func TestSeedExportAndSummary(t *testing.T) {
	memoryEnv(t)
	exportPath := filepath.Join(t.TempDir(), "out", "dataset.json")
	var stdout, stderr bytes.Buffer
	code := cli([]string{"-env", "", "-seed", "-export", exportPath}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{
		"seed: 9 groups, 90 students, 9 lessons, 1 schedules",
		"groups=9 students=90 marks=0 observations=0 lessons=9 schedules=1",
		"* 2ASCG1",
		"timetable=Demo Timetable",
		`schedule "Demo Timetable" slots=5`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var ds domain.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(ds.Groups) != 9 || len(ds.Students) != 90 || len(ds.Schedules) != 1 {
		t.Fatalf("unexpected export sizes: %d groups, %d students", len(ds.Groups), len(ds.Students))
	}
}

func TestSeedPersistsAcrossRunsWithSQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GRADEBOOK_STORAGE_DRIVER", "sqlite")
	t.Setenv("GRADEBOOK_SQLITE_PATH", filepath.Join(dir, "gradebook.db"))
	t.Setenv("GRADEBOOK_BLOB_FS_ROOT", filepath.Join(dir, "blobs"))
	t.Setenv("GRADEBOOK_LOG_LEVEL", "error")

	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-env", "", "-seed", "-no-lessons"}, &stdout, &stderr); code != 0 {
		if strings.Contains(stderr.String(), "sqlite") {
			t.Skipf("sqlite unavailable: %s", stderr.String())
		}
		t.Fatalf("first run exit %d: %s", code, stderr.String())
	}
	stdout.Reset()
	if code := cli([]string{"-env", "", "-seed"}, &stdout, &stderr); code != 0 {
		t.Fatalf("second run exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "seed: skipped") || !strings.Contains(stdout.String(), "lessons=0 schedules=1") {
		t.Fatalf("expected persisted data and skipped seed:\n%s", stdout.String())
	}
	stdout.Reset()
	if code := cli([]string{"-env", "", "-reset"}, &stdout, &stderr); code != 0 {
		t.Fatalf("reset exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "groups=0 students=0") {
		t.Fatalf("expected empty summary after reset:\n%s", stdout.String())
	}
}

func TestMetricsOutput(t *testing.T) {
	memoryEnv(t)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-env", "", "-seed", "-metrics", "prometheus"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `gradebook_entity_store_operations_total{operation="seed_demo",status="success"} 1`) {
		t.Fatalf("expected prometheus counters:\n%s", stdout.String())
	}

	stdout.Reset()
	if code := cli([]string{"-env", "", "-metrics", "expvar"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), `"initialize"`) {
		t.Fatalf("expected expvar snapshot:\n%s", stdout.String())
	}
}

func TestInvalidInvocations(t *testing.T) {
	memoryEnv(t)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-metrics", "statsd"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected usage error, got %d", code)
	}
	if code := cli([]string{"-nope"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected flag error, got %d", code)
	}
	t.Setenv("GRADEBOOK_STORAGE_DRIVER", "mongo")
	stderr.Reset()
	if code := cli([]string{"-env", ""}, &stdout, &stderr); code != 1 || !strings.Contains(stderr.String(), "unknown storage driver") {
		t.Fatalf("expected config error, got %d: %s", code, stderr.String())
	}
}

func TestMainUsesExitFunc(t *testing.T) {
	memoryEnv(t)
	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	defer func() { _ = devNull.Close() }()
	oldStdout := os.Stdout
	os.Stdout = devNull
	defer func() { os.Stdout = oldStdout }()

	os.Args = []string{"gradebook", "-env", ""}
	main()
	if len(codes) != 1 || codes[0] != 0 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}
