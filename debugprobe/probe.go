// Package debugprobe is the runtime linked into instrumented programs.
// It serializes captured variables into line records on the program's error stream.
//
// The package depends on the standard library only, since it is copied into the debugged module.
package debugprobe

import (
	"bytes"
	"encoding/base64"
	"io"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

var (
	mu      sync.Mutex
	current atomic.Value // *block
	output  io.Writer
)

// block buffers one capture so that it reaches the output with a single write.
type block struct {
	buf      bytes.Buffer
	depth    int
	visiting map[visitKey]bool
	scratch  [IntWidth]byte
}

// SetOutput redirects records to w, nil restores the default destination.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

func destination() io.Writer {
	if output != nil {
		return output
	}
	if location := os.Getenv(OutputEnv); location != "" {
		if f, err := os.OpenFile(location, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			output = f
			return f
		}
	}
	return os.Stderr
}

// LineStart opens a capture block for the given source line.
// It holds the probe lock until LineEnd.
func LineStart(line int) {
	mu.Lock()
	b := &block{visiting: map[visitKey]bool{}}
	b.log(LineStartMarker + ";" + strconv.Itoa(line))
	current.Store(b)
}

func active() *block {
	b, _ := current.Load().(*block)
	return b
}

// LineEnd closes the capture block and flushes it.
func LineEnd() {
	b := active()
	if b == nil {
		return
	}
	current.Store((*block)(nil))
	b.log(LineEndMarker)
	_, _ = destination().Write(b.buf.Bytes())
	mu.Unlock()
}

func (b *block) log(text string) {
	b.buf.WriteString(LogPrefix)
	b.buf.WriteString(EscapeText(text))
	b.buf.WriteByte('\n')
}

func (b *block) data(data []byte) {
	b.buf.WriteString(DataPrefix)
	b.buf.WriteString(base64.StdEncoding.EncodeToString(data))
	b.buf.WriteByte('\n')
}

func (b *block) open(kind, name, typeName, payload string) {
	b.log(StartNode)
	b.log(kind)
	b.log(name)
	b.log(typeName)
	b.log(payload)
}

func (b *block) close() {
	b.log(EndNode)
}

func (b *block) writeInt(v int64) {
	PutInt128(b.scratch[:], v)
	b.data(b.scratch[:])
}

func (b *block) writeUint(v uint64) {
	PutUint128(b.scratch[:], v)
	b.data(b.scratch[:])
}

func (b *block) primitive(name, typeName, payload, text string) {
	b.open(Primitive, name, typeName, payload)
	b.log(text)
	b.close()
}

func (b *block) placeholder(name, typeName string) {
	b.open(Complex, name, typeName, KindNotImplemented)
	b.close()
}
