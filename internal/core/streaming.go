package core

import (
	"io"
	"sync/atomic"
)

// countingReader tracks how many bytes of an import source were consumed.
// Records are decoded as they are read, so the count is also how far into
// the file an aborted import got.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// BytesRead returns the bytes consumed so far.
func (c *countingReader) BytesRead() int64 {
	return c.n.Load()
}

// counted returns a copy of src reading through a countingReader. A nil
// reader is left alone so it is still reported as missing data.
func counted(src Source) (Source, *countingReader) {
	c := &countingReader{r: src.Reader}
	if src.Reader == nil {
		return src, c
	}
	src.Reader = c
	return src, c
}
