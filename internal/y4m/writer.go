// SPDX-License-Identifier: MIT
package y4m

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"dfttest/internal/plane"
)

// Writer appends frames to a stream. It is not safe for concurrent use;
// callers are expected to write frames in order from one goroutine.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	header Header
	frames int
}

// Create creates or truncates path and writes the stream header.
func Create(path string, h Header) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f, h)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewWriter writes the stream header to w. The colorspace tag is derived
// from h.Format when h.Colorspace is empty.
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if h.Colorspace == "" {
		cs, err := ColorspaceFor(h.Format)
		if err != nil {
			return nil, err
		}
		h.Colorspace = cs
	} else if f, err := FormatFor(h.Colorspace); err != nil {
		return nil, err
	} else if f != h.Format {
		return nil, fmt.Errorf("%w: C%s does not describe %d-bit samples", ErrColorspace, h.Colorspace, h.Format.BitsPerSample)
	}

	bw := bufio.NewWriterSize(w, 1<<16)
	if _, err := bw.WriteString(h.String()); err != nil {
		return nil, err
	}
	return &Writer{w: bw, header: h}, nil
}

// Header returns the header written to the stream.
func (w *Writer) Header() Header {
	return w.header
}

// Frames returns the number of frames written so far.
func (w *Writer) Frames() int {
	return w.frames
}

// WriteFrame appends fr, which must match the stream format.
func (w *Writer) WriteFrame(fr *plane.Frame) error {
	if fr.Format != w.header.Format || fr.Width != w.header.Width || fr.Height != w.header.Height {
		return fmt.Errorf("%w: %dx%d", ErrFrameFormat, fr.Width, fr.Height)
	}
	if _, err := w.w.WriteString(frameHeader); err != nil {
		return err
	}
	for _, p := range fr.Planes {
		for y := range p.Height {
			if _, err := w.w.Write(p.Row(y)); err != nil {
				return err
			}
		}
	}
	w.frames++
	return nil
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes the stream and closes the file opened by Create.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		if w.closer != nil {
			w.closer.Close()
		}
		return err
	}
	if w.closer == nil {
		return nil
	}
	return w.closer.Close()
}
