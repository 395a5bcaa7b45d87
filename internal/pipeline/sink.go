package pipeline

import (
	"fmt"
	"io"
	"os"
)

// Sink receives flushed output in index order.
//
// The Scheduler is the only caller, and it calls Append sequentially, so
// implementations need no locking.
type Sink interface {
	Append(p []byte) error
}

// FileSink appends to a file, opening and closing it on every Append.
// Nothing is held open between flushes, so a killed run leaves a file that
// ends at a flush boundary unless the kill landed inside a write.
type FileSink struct {
	Path string
}

// NewFileSink returns a sink appending to path. The file is created on the
// first Append if it does not exist.
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Append implements Sink.
func (s *FileSink) Append(p []byte) error {
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if _, err := f.Write(p); err != nil {
		f.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// WriterSink appends to an io.Writer.
type WriterSink struct {
	W io.Writer
}

// Append implements Sink.
func (s WriterSink) Append(p []byte) error {
	_, err := s.W.Write(p)
	return err
}
