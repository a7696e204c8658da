// SPDX-License-Identifier: MIT
package y4m

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"dfttest/internal/plane"
)

// Reader serves frames of a stream by index. ReadFrame may be called from
// several goroutines at once as long as the underlying ReaderAt allows it,
// which *os.File does.
type Reader struct {
	r         io.ReaderAt
	closer    io.Closer
	header    Header
	offset    int64 // first FRAME line
	frameSize int
	numFrames int
}

// Open opens a y4m file for random access.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewReader parses the stream header from r, which holds size bytes.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	buf := make([]byte, min(size, maxHeader))
	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	buf = buf[:n]

	end := bytes.IndexByte(buf, '\n')
	if end < 0 {
		if bytes.HasPrefix(buf, []byte(magic)) {
			return nil, fmt.Errorf("%w: header line not terminated", ErrHeader)
		}
		return nil, ErrMagic
	}
	h, err := ParseHeader(string(buf[:end]))
	if err != nil {
		return nil, err
	}

	rd := &Reader{
		r:         r,
		header:    h,
		offset:    int64(end + 1),
		frameSize: h.FrameSize(),
	}
	rd.numFrames = max(0, int((size-rd.offset)/int64(len(frameHeader)+rd.frameSize)))
	return rd, nil
}

// Header returns the parsed stream header.
func (r *Reader) Header() Header {
	return r.header
}

// NumFrames returns the number of complete frames in the stream.
func (r *Reader) NumFrames() int {
	return r.numFrames
}

// ReadFrame reads frame n into a newly allocated frame.
func (r *Reader) ReadFrame(n int) (*plane.Frame, error) {
	fr := plane.NewFrame(r.header.Format, r.header.Width, r.header.Height)
	if err := r.ReadFrameInto(n, fr); err != nil {
		return nil, err
	}
	return fr, nil
}

// ReadFrameInto reads frame n into fr, which must match the stream format.
func (r *Reader) ReadFrameInto(n int, fr *plane.Frame) error {
	if n < 0 || n >= r.numFrames {
		return fmt.Errorf("%w: %d of %d", ErrFrameRange, n, r.numFrames)
	}
	if fr.Format != r.header.Format || fr.Width != r.header.Width || fr.Height != r.header.Height {
		return fmt.Errorf("%w: %dx%d", ErrFrameFormat, fr.Width, fr.Height)
	}

	off := r.offset + int64(n)*int64(len(frameHeader)+r.frameSize)
	var hdr [len(frameHeader)]byte
	if err := r.readAt(hdr[:], off); err != nil {
		return fmt.Errorf("frame %d: %w", n, err)
	}
	if string(hdr[:]) != frameHeader {
		return fmt.Errorf("%w: frame %d: %q", ErrFrameHeader, n, hdr[:])
	}
	off += int64(len(frameHeader))

	bps := fr.Format.BytesPerSample()
	for _, p := range fr.Planes {
		rowBytes := p.Width * bps
		if p.Stride == p.Width {
			size := rowBytes * p.Height
			if err := r.readAt(p.Pix[:size], off); err != nil {
				return fmt.Errorf("frame %d: %w", n, err)
			}
			off += int64(size)
			continue
		}
		for y := range p.Height {
			if err := r.readAt(p.Row(y), off); err != nil {
				return fmt.Errorf("frame %d: %w", n, err)
			}
			off += int64(rowBytes)
		}
	}
	return nil
}

// readAt fills buf, accepting io.EOF for a read that ends exactly at the
// end of the stream.
func (r *Reader) readAt(buf []byte, off int64) error {
	n, err := r.r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Close closes the file opened by Open. It is a no-op for readers built
// with NewReader.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
