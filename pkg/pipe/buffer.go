// Package pipe provides a wrapper to create a pipe and
// collect at most max bytes from the reader side
package pipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Buffer is used to create a writable pipe and read
// at most max bytes to a buffer. Done closes once either the cap was
// reached or the write side hit EOF; any remaining bytes are discarded
// so the writer never blocks or receives SIGPIPE.
type Buffer struct {
	W      *os.File
	Max    int64
	Buffer *bytes.Buffer
	Done   <-chan struct{}

	r *os.File
}

// NewBuffer creates an os pipe collecting at most max + 1 bytes.
// The extra byte marks that the cap was crossed.
// Caller need to close w; if relying on Done, w must be closed in the
// parent process after the fork so that EOF can be observed.
func NewBuffer(max int64) (*Buffer, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}
	buffer := new(bytes.Buffer)
	done := make(chan struct{})
	go func() {
		io.CopyN(buffer, r, max+1)
		close(done)
		// ensure no blocking / SIGPIPE on the other end
		io.Copy(io.Discard, r)
		r.Close()
	}()
	return &Buffer{
		W:      w,
		Max:    max,
		Buffer: buffer,
		Done:   done,
		r:      r,
	}, nil
}

// Abort closes the read end so that Done closes even while some escaped
// process still holds a copy of the write end. After Done closes the
// Buffer contents no longer change and are safe to read.
func (b *Buffer) Abort() {
	b.r.Close()
}

// OverLimit reports whether more than Max bytes arrived. Valid only after
// Done is closed.
func (b *Buffer) OverLimit() bool {
	return int64(b.Buffer.Len()) > b.Max
}

// Bytes returns the captured content truncated to Max. Valid only after
// Done is closed.
func (b *Buffer) Bytes() []byte {
	c := b.Buffer.Bytes()
	if int64(len(c)) > b.Max {
		return c[:b.Max]
	}
	return c
}

func (b Buffer) String() string {
	return fmt.Sprintf("Buffer[%d/%d]", b.Buffer.Len(), b.Max)
}
