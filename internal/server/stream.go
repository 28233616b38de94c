package server

import (
	"fmt"
	"net/http"
	"sync"
)

// FrameBuffer keeps the latest annotated preview frame and serves it as MJPEG.
// It implements app.FrameSink.
type FrameBuffer struct {
	mu      sync.RWMutex
	frame   []byte
	seq     uint64
	updated chan struct{}
	closed  bool
}

// NewFrameBuffer creates an empty FrameBuffer.
func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{updated: make(chan struct{})}
}

// PublishFrame stores jpeg as the latest frame and wakes waiting streams.
func (b *FrameBuffer) PublishFrame(jpeg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.frame = jpeg
	b.seq++
	close(b.updated)
	b.updated = make(chan struct{})
}

// Latest returns the latest frame and its sequence number.
func (b *FrameBuffer) Latest() ([]byte, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.frame, b.seq
}

// Close wakes all waiting streams and stops accepting frames.
func (b *FrameBuffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.updated)
}

// wait returns a channel closed on the next published frame.
func (b *FrameBuffer) wait() (<-chan struct{}, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated, b.closed
}

// ServeHTTP streams MJPEG frames to connected clients as they are published.
func (b *FrameBuffer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var sent uint64
	for {
		updated, closed := b.wait()
		frame, seq := b.Latest()
		if seq != sent && len(frame) > 0 {
			// Write MJPEG frame
			fmt.Fprintf(w, "--frame\r\n")
			fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
			fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(frame))
			if _, err := w.Write(frame); err != nil {
				return
			}
			fmt.Fprintf(w, "\r\n")

			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			sent = seq
		}

		if closed {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-updated:
		}
	}
}

// ServeSnapshot serves the latest frame as a single JPEG.
func (b *FrameBuffer) ServeSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	frame, _ := b.Latest()
	if len(frame) == 0 {
		http.Error(w, "No frame available", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(frame)
}
