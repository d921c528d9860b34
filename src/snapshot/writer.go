package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Writer persists snapshot artifacts. Every error it returns is fatal to
// the run.
type Writer interface {
	MkdirAll(path string) error
	RemoveAll(path string) error
	WriteFile(path string, data []byte) error
}

// FSWriter writes to the local filesystem. Files are written to a
// temporary sibling and renamed into place so readers never observe a
// partial file.
type FSWriter struct{}

func (FSWriter) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o755)
}

func (FSWriter) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (FSWriter) WriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func writeJSON(w Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return writeFile(w, path, append(data, '\n'))
}

// writeRawJSON indents an API document for readability, falling back to
// the bytes as received.
func writeRawJSON(w Writer, path string, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return writeFile(w, path, raw)
	}
	buf.WriteByte('\n')
	return writeFile(w, path, buf.Bytes())
}

func writeFile(w Writer, path string, data []byte) error {
	if err := w.WriteFile(path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
