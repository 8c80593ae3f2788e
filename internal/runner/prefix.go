package runner

import (
	"bytes"
	"io"
	"sync"
)

// PrefixWriter prefixes every complete line with a fixed tag before writing
// it to the underlying writer. Writers created by one Prefixer share a lock,
// so lines from concurrent processes never interleave mid-line.
type PrefixWriter struct {
	prefix []byte
	out    *Prefixer
	mu     sync.Mutex
	buf    []byte
}

// Prefixer hands out PrefixWriters over a single destination.
type Prefixer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPrefixer wraps w.
func NewPrefixer(w io.Writer) *Prefixer {
	return &Prefixer{w: w}
}

// Writer returns a writer tagging lines with "[tag] ".
func (p *Prefixer) Writer(tag string) *PrefixWriter {
	return &PrefixWriter{prefix: []byte("[" + tag + "] "), out: p}
}

func (p *Prefixer) writeLine(prefix, line []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = p.w.Write(append(append([]byte{}, prefix...), line...))
}

func (w *PrefixWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.out.writeLine(w.prefix, w.buf[:i+1])
		w.buf = w.buf[i+1:]
	}
	return len(b), nil
}

// Flush writes any buffered partial line.
func (w *PrefixWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return
	}
	w.out.writeLine(w.prefix, append(w.buf, '\n'))
	w.buf = nil
}
