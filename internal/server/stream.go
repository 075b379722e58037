package server

import (
	"fmt"
	"net/http"
	"time"
)

// streamInterval paces the MJPEG preview at about 15 fps.
const streamInterval = 66 * time.Millisecond

// FrameSource provides the latest captured frame as JPEG.
type FrameSource interface {
	Snapshot() ([]byte, error)
}

// StreamHandler serves the pipeline's latest frames as MJPEG. It never reads
// the camera itself so previews do not steal frames from the trackers.
type StreamHandler struct {
	source FrameSource
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source FrameSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpeg, err := h.source.Snapshot()
		if err != nil {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
