package ui

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const barWidth = 40

// Bar renders a single-line transfer progress bar. A non-positive Total
// renders a byte counter instead of a percentage.
type Bar struct {
	Label   string
	Total   int64
	Current int64

	out        io.Writer
	startTime  time.Time
	lastUpdate time.Time
	finished   bool
}

func NewBar(label string, total int64, out io.Writer) *Bar {
	return &Bar{
		Label:     label,
		Total:     total,
		out:       out,
		startTime: time.Now(),
	}
}

func (b *Bar) Add(n int) {
	b.Current += int64(n)
	b.render(false)
}

// Finish draws the final state and ends the line.
func (b *Bar) Finish() {
	if b.finished {
		return
	}
	b.render(true)
	fmt.Fprintln(b.out)
	b.finished = true
}

func (b *Bar) render(force bool) {
	if !force && time.Since(b.lastUpdate) < 100*time.Millisecond {
		return
	}
	b.lastUpdate = time.Now()

	duration := time.Since(b.startTime).Seconds()
	if duration == 0 {
		duration = 0.0001
	}
	speed := float64(b.Current) / (1024 * 1024) / duration

	if b.Total <= 0 {
		fmt.Fprintf(b.out, "\r%s %d bytes (%.2f MB/s)", b.Label, b.Current, speed)
		return
	}
	ratio := float64(b.Current) / float64(b.Total)
	if ratio > 1 {
		ratio = 1
	}
	completed := int(float64(barWidth) * ratio)
	bar := strings.Repeat("█", completed) + strings.Repeat("░", barWidth-completed)
	fmt.Fprintf(b.out, "\r%s [%s] %.1f%% (%.2f MB/s)", b.Label, bar, ratio*100, speed)
}

// Reader reports bytes read through a Bar.
type Reader struct {
	io.Reader
	Bar *Bar
}

func NewReader(r io.Reader, bar *Bar) *Reader {
	return &Reader{Reader: r, Bar: bar}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.Bar.Add(n)
	return n, err
}

// Writer reports bytes written through a Bar.
type Writer struct {
	io.Writer
	Bar *Bar
}

func NewWriter(w io.Writer, bar *Bar) *Writer {
	return &Writer{Writer: w, Bar: bar}
}

func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	w.Bar.Add(n)
	return n, err
}
