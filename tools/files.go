package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/martinemde/autoagent/workspace"
)

// FileLogName is the duplicate-operation log kept in the workspace root.
const FileLogName = "file_logger.txt"

const fileLogHeader = "File Operation Logs\n\n"

// Errors reported for operations the log shows were already done. They are
// sentences shown to the model as command results.
var (
	ErrDirectoryExists = errors.New("Directory has already been created.")
	ErrFileWritten     = errors.New("File has already been created.")
	ErrFileDeleted     = errors.New("File has already been deleted.")
)

// FileOps performs file commands inside a workspace. Writes, directory
// creation and deletions are recorded in the operation log; repeating one
// of them on the same path is refused.
type FileOps struct {
	ws      *workspace.Workspace
	logPath string
	mu      sync.Mutex
}

// NewFileOps creates the operation log if it does not exist yet.
func NewFileOps(ws *workspace.Workspace) (*FileOps, error) {
	logPath := filepath.Join(ws.Root(), FileLogName)
	if _, err := os.Stat(logPath); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(logPath, []byte(fileLogHeader), 0o644); err != nil {
			return nil, fmt.Errorf("create %s: %w", FileLogName, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat %s: %w", FileLogName, err)
	}
	return &FileOps{ws: ws, logPath: logPath}, nil
}

// resolve accepts paths already rewritten by the dispatcher as well as
// workspace-relative ones.
func (f *FileOps) resolve(p string) (string, error) {
	return f.ws.Path(p)
}

func (f *FileOps) logged(op, path string) (bool, error) {
	data, err := os.ReadFile(f.logPath)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", FileLogName, err)
	}
	return strings.Contains(string(data), fmt.Sprintf("%s: %s\n", op, f.ws.Rel(path))), nil
}

func (f *FileOps) record(op, path string) error {
	return appendFile(f.logPath, fmt.Sprintf("%s: %s\n", op, f.ws.Rel(path)))
}

// ReadFile returns the file contents.
func (f *FileOps) ReadFile(name string) (string, error) {
	path, err := f.resolve(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateDir creates directory and its parents.
func (f *FileOps) CreateDir(directory string) (string, error) {
	path, err := f.resolve(directory)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if done, err := f.logged("createDir", path); err != nil {
		return "", err
	} else if done {
		return "", ErrDirectoryExists
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	if err := f.record("createDir", path); err != nil {
		return "", err
	}
	return "Directory created successfully.", nil
}

// WriteFile writes content to a new file, creating parent directories.
func (f *FileOps) WriteFile(name, content string) (string, error) {
	path, err := f.resolve(name)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if done, err := f.logged("write", path); err != nil {
		return "", err
	} else if done {
		return "", ErrFileWritten
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	if err := f.record("write", path); err != nil {
		return "", err
	}
	return "File written successfully.", nil
}

// AppendToFile appends content to a file. shouldLog controls whether the
// append is recorded in the operation log.
func (f *FileOps) AppendToFile(name, content string, shouldLog bool) (string, error) {
	path, err := f.resolve(name)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := appendFile(path, content); err != nil {
		return "", err
	}
	if shouldLog {
		if err := f.record("append", path); err != nil {
			return "", err
		}
	}
	return "Text appended successfully.", nil
}

// DeleteFile removes a file.
func (f *FileOps) DeleteFile(name string) (string, error) {
	path, err := f.resolve(name)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if done, err := f.logged("delete", path); err != nil {
		return "", err
	} else if done {
		return "", ErrFileDeleted
	}
	if err := os.Remove(path); err != nil {
		return "", err
	}
	if err := f.record("delete", path); err != nil {
		return "", err
	}
	return "File deleted successfully.", nil
}

// SearchFiles lists files under directory as workspace-relative paths,
// skipping hidden entries.
func (f *FileOps) SearchFiles(directory string) (string, error) {
	root, err := f.resolve(directory)
	if err != nil {
		return "", err
	}
	found := []string{}
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || p == f.logPath {
			return nil
		}
		found = append(found, f.ws.Rel(p))
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(found)
	data, err := json.Marshal(found)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func appendFile(path, content string) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := fh.WriteString(content); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
