package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/gatekit/gatekit/internal/core"
)

// RequestLogStore persists request-log entries.
type RequestLogStore interface {
	InsertRequestLog(ctx context.Context, entry *core.RequestLog) error
}

// DropCounter records entries dropped because the queue was full.
type DropCounter interface {
	RequestLogDropped()
}

// RequestLogger logs every request into the store. Writes happen on a
// background goroutine so the response is never blocked on the database;
// when the queue is full the entry is dropped rather than stalling the
// request path.
type RequestLogger struct {
	store   RequestLogStore
	logger  *zap.Logger
	drops   DropCounter
	entries chan core.RequestLog
	done    chan struct{}
}

// NewRequestLogger starts the background writer. buffer <= 0 selects a
// reasonable default queue size.
func NewRequestLogger(store RequestLogStore, logger *zap.Logger, drops DropCounter, buffer int) *RequestLogger {
	if buffer <= 0 {
		buffer = 256
	}

	l := &RequestLogger{
		store:   store,
		logger:  logger,
		drops:   drops,
		entries: make(chan core.RequestLog, buffer),
		done:    make(chan struct{}),
	}
	go l.writeLoop()
	return l
}

func (l *RequestLogger) writeLoop() {
	defer close(l.done)

	for entry := range l.entries {
		if err := l.store.InsertRequestLog(context.Background(), &entry); err != nil {
			l.logger.Error("failed to persist request log entry",
				zap.String("path", entry.Path),
				zap.Error(err))
		}
	}
}

// Handler wraps next, measures the request, sets the Server-Timing header,
// and enqueues a log entry.
func (l *RequestLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &timingWriter{ResponseWriter: w, start: start}

		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		entry := core.RequestLog{
			Time:       start.UTC(),
			IP:         ClientIP(r),
			UserAgent:  r.Header.Get("User-Agent"),
			Referer:    r.Header.Get("Referer"),
			Method:     r.Method,
			Path:       r.URL.Path,
			Status:     status,
			DurationMS: float64(elapsed.Microseconds()) / 1000,
		}

		select {
		case l.entries <- entry:
		default:
			if l.drops != nil {
				l.drops.RequestLogDropped()
			}
			l.logger.Warn("request log queue full, dropping entry",
				zap.String("path", entry.Path))
		}
	})
}

// Close stops accepting entries and waits for queued writes to finish.
func (l *RequestLogger) Close(ctx context.Context) error {
	close(l.entries)
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// timingWriter captures the status code and writes the Server-Timing header
// before the response is committed.
type timingWriter struct {
	http.ResponseWriter
	start       time.Time
	status      int
	wroteHeader bool
}

func (w *timingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		w.status = code
		elapsed := float64(time.Since(w.start).Microseconds()) / 1000
		w.Header().Set("Server-Timing", fmt.Sprintf("endpoint;dur=%.1f", elapsed))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}
