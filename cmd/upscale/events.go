package main

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/gogpu/upscale"
)

// event is one NDJSON line on stdout.
type event struct {
	Type      string  `json:"type"`
	Image     string  `json:"image,omitempty"`
	Phase     string  `json:"phase,omitempty"`
	Processed int     `json:"processed,omitempty"`
	Total     int     `json:"total,omitempty"`
	Percent   float64 `json:"percent,omitempty"`
	File      string  `json:"file,omitempty"`
	MIME      string  `json:"mime,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Bytes     int     `json:"bytes,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type eventWriter struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder
}

func newEventWriter(w io.Writer) *eventWriter {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &eventWriter{w: buf, enc: enc}
}

func (e *eventWriter) write(ev event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_ = e.enc.Encode(ev)
	_ = e.w.Flush()
}

// Report implements upscale.Reporter.
func (e *eventWriter) Report(ev upscale.Event) {
	out := event{
		Type:      "progress",
		Image:     ev.Image,
		Phase:     string(ev.Phase),
		Processed: ev.Processed,
		Total:     ev.Total,
	}
	if ev.Total > 0 {
		out.Percent = min(float64(ev.Processed)/float64(ev.Total)*100, 100)
	}
	e.write(out)
}

func (e *eventWriter) Result(r upscale.Result, file string) {
	switch {
	case r.Skipped:
		e.write(event{Type: "skipped", Image: r.Name})
	case r.Err != nil:
		e.write(event{Type: "error", Image: r.Name, Error: r.Err.Error()})
	default:
		e.write(event{Type: "result", Image: r.Name, File: file, MIME: r.Format.MIME(),
			Width: r.Width, Height: r.Height, Bytes: len(r.Data)})
	}
}

func (e *eventWriter) Error(err error) {
	e.write(event{Type: "error", Error: err.Error()})
}
