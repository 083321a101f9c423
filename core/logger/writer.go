package logger

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// levelSink is one log destination and the lowest level it accepts, so the
// errors file can sit next to the full bot log.
type levelSink struct {
	w   io.Writer
	min slog.Level
}

// allLevels is a sink that takes every line the handler lets through.
func allLevels(w io.Writer) levelSink {
	return levelSink{w: w, min: slog.LevelDebug}
}

type entry struct {
	level slog.Level
	line  []byte
}

// asyncWriter fans formatted lines out to its sinks on a single goroutine.
type asyncWriter struct {
	queue    chan entry
	flushReq chan chan error
	done     chan struct{}
	once     sync.Once

	mu    sync.Mutex
	sinks []bufferedSink
	err   error
}

type bufferedSink struct {
	*bufio.Writer
	min slog.Level
}

func newAsyncWriter(bufSize int, sinks ...levelSink) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		queue:    make(chan entry, 256),
		flushReq: make(chan chan error),
		done:     make(chan struct{}),
	}
	for _, s := range sinks {
		if s.w != nil {
			w.sinks = append(w.sinks, bufferedSink{Writer: bufio.NewWriterSize(s.w, bufSize), min: s.min})
		}
	}
	go w.loop()
	return w
}

func (w *asyncWriter) loop() {
	defer close(w.done)
	for {
		select {
		case e, ok := <-w.queue:
			if !ok {
				w.setErr(w.flushAll())
				return
			}
			w.setErr(w.writeAll(e))
		case ack := <-w.flushReq:
			ack <- w.flushAll()
		}
	}
}

// Write queues line for every sink that accepts level. A full queue blocks
// rather than dropping the line.
func (w *asyncWriter) Write(level slog.Level, line []byte) error {
	if err := w.getErr(); err != nil {
		return err
	}
	if len(line) == 0 {
		return nil
	}
	w.queue <- entry{level: level, line: append([]byte(nil), line...)}
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.getErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	w.flushReq <- ack
	return <-ack
}

// Close drains the queue and returns the first write error seen.
func (w *asyncWriter) Close() error {
	w.once.Do(func() { close(w.queue) })
	<-w.done
	return w.getErr()
}

func (w *asyncWriter) writeAll(e entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, s := range w.sinks {
		if e.level < s.min {
			continue
		}
		if _, err := s.Write(e.line); err != nil {
			return err
		}
		if err := s.Writer.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flushAll() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, s := range w.sinks {
		if err := s.Writer.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) getErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *asyncWriter) setErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err == nil {
		w.err = err
	}
}
