package tools

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileOpsCreatesLog(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := NewFileOps(ws); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(ws.Root(), FileLogName))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "File Operation Logs\n\n" {
		t.Errorf("log = %q", data)
	}

	// An existing log is kept.
	if err := os.WriteFile(filepath.Join(ws.Root(), FileLogName), []byte("kept"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileOps(ws); err != nil {
		t.Fatal(err)
	}
	if data, _ := os.ReadFile(filepath.Join(ws.Root(), FileLogName)); string(data) != "kept" {
		t.Errorf("log overwritten: %q", data)
	}
}

func TestWriteFileRefusesDuplicates(t *testing.T) {
	ws := newWorkspace(t)
	f, err := NewFileOps(ws)
	if err != nil {
		t.Fatal(err)
	}

	out, err := f.WriteFile("notes/plan.txt", "step one")
	if err != nil || out != "File written successfully." {
		t.Fatalf("WriteFile = %q, %v", out, err)
	}
	got, err := f.ReadFile(filepath.Join(ws.Root(), "notes", "plan.txt"))
	if err != nil || got != "step one" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}

	if _, err := f.WriteFile("notes/plan.txt", "step two"); !errors.Is(err, ErrFileWritten) {
		t.Errorf("second write err = %v, want ErrFileWritten", err)
	}
	if got, _ := f.ReadFile("notes/plan.txt"); got != "step one" {
		t.Errorf("duplicate write changed the file: %q", got)
	}

	// A different file with a shared prefix is not a duplicate.
	if _, err := f.WriteFile("notes/plan.txt.bak", "x"); err != nil {
		t.Errorf("prefix path refused: %v", err)
	}
}

func TestCreateDirRefusesDuplicates(t *testing.T) {
	f, err := NewFileOps(newWorkspace(t))
	if err != nil {
		t.Fatal(err)
	}
	if out, err := f.CreateDir("out"); err != nil || out != "Directory created successfully." {
		t.Fatalf("CreateDir = %q, %v", out, err)
	}
	if _, err := f.CreateDir("out"); !errors.Is(err, ErrDirectoryExists) {
		t.Errorf("err = %v", err)
	}
}

func TestAppendAndDelete(t *testing.T) {
	ws := newWorkspace(t)
	f, err := NewFileOps(ws)
	if err != nil {
		t.Fatal(err)
	}
	for _, chunk := range []string{"a", "b"} {
		if out, err := f.AppendToFile("log.txt", chunk, true); err != nil || out != "Text appended successfully." {
			t.Fatalf("AppendToFile = %q, %v", out, err)
		}
	}
	if _, err := f.AppendToFile("quiet.txt", "c", false); err != nil {
		t.Fatal(err)
	}
	if got, _ := f.ReadFile("log.txt"); got != "ab" {
		t.Errorf("contents = %q", got)
	}

	if out, err := f.DeleteFile("log.txt"); err != nil || out != "File deleted successfully." {
		t.Fatalf("DeleteFile = %q, %v", out, err)
	}
	if _, err := f.DeleteFile("log.txt"); !errors.Is(err, ErrFileDeleted) {
		t.Errorf("second delete err = %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(ws.Root(), FileLogName))
	log := string(data)
	if strings.Count(log, "append: log.txt\n") != 2 || !strings.Contains(log, "delete: log.txt\n") {
		t.Errorf("log = %q", log)
	}
	if strings.Contains(log, "quiet.txt") {
		t.Errorf("unlogged append was logged: %q", log)
	}
}

func TestReadFileMissing(t *testing.T) {
	f, err := NewFileOps(newWorkspace(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.ReadFile("nope.txt"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v", err)
	}
}

func TestFileOpsStayInWorkspace(t *testing.T) {
	f, err := NewFileOps(newWorkspace(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteFile("../escape.txt", "x"); err == nil {
		t.Error("write outside the workspace succeeded")
	}
	if _, err := f.ReadFile("/etc/hostname"); err == nil {
		t.Error("read of an absolute path outside the workspace succeeded")
	}
}

func TestSearchFiles(t *testing.T) {
	ws := newWorkspace(t)
	f, err := NewFileOps(ws)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.txt", "a/c.txt", ".hidden/d.txt", ".e"} {
		path := filepath.Join(ws.Root(), name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := f.SearchFiles(ws.Root())
	if err != nil {
		t.Fatal(err)
	}
	if want := `["a/c.txt","b.txt"]`; got != want {
		t.Errorf("SearchFiles = %s, want %s", got, want)
	}

	got, err = f.SearchFiles("a")
	if err != nil || got != `["a/c.txt"]` {
		t.Errorf("SearchFiles(a) = %s, %v", got, err)
	}
}
