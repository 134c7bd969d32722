package listener

import (
	"bytes"
	"io"
)

// lineEndingAdapter normalizes line endings between a terminal-style
// transport and the session layer, which speaks plain \n. Reads fold
// \r\n and bare \r down to \n (telnet sends \r\n, SSH without a PTY
// sends \r); writes expand \n back to \r\n.
type lineEndingAdapter struct {
	rw io.ReadWriter
}

func newLineEndingAdapter(rw io.ReadWriter) io.ReadWriter {
	return &lineEndingAdapter{rw: rw}
}

func (a *lineEndingAdapter) Read(p []byte) (int, error) {
	n, err := a.rw.Read(p)
	if n > 0 {
		data := bytes.ReplaceAll(p[:n], []byte("\r\n"), []byte("\n"))
		data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
		n = copy(p, data)
	}
	return n, err
}

func (a *lineEndingAdapter) Write(p []byte) (int, error) {
	expanded := bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))
	_, err := a.rw.Write(expanded)
	// Report the caller's length; the expansion is invisible to them.
	return len(p), err
}
