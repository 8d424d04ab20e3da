package log

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Writer 日志输出器
type Writer interface {
	io.Writer
	io.Closer
}

type consoleWriter struct {
	out io.Writer
}

func (w *consoleWriter) Write(p []byte) (int, error) { return w.out.Write(p) }
func (w *consoleWriter) Close() error                { return nil }

// FileWriter 追加写入的文件输出器
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileWriter 打开（必要时创建）日志文件
func NewFileWriter(path string) (*FileWriter, error) {
	if path == "" {
		return nil, errors.New("file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s", path)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return &FileWriter{file: file}, nil
}

func (f *FileWriter) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return 0, errors.New("file is closed")
	}
	return f.file.Write(p)
}

func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

// newWriter 根据输出目标创建输出器：stdout、stderr 或文件路径
func newWriter(output string) (Writer, error) {
	switch output {
	case "", "stdout":
		return &consoleWriter{out: os.Stdout}, nil
	case "stderr":
		return &consoleWriter{out: os.Stderr}, nil
	default:
		return NewFileWriter(output)
	}
}
