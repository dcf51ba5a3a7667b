package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gogpu/upscale"
)

func decodeEvents(t *testing.T, buf *bytes.Buffer) []event {
	t.Helper()
	var out []event
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func TestEventWriter(t *testing.T) {
	var buf bytes.Buffer
	w := newEventWriter(&buf)

	w.Report(upscale.Event{Image: "a.png", Phase: upscale.PhaseProcessing, Processed: 3, Total: 12})
	w.Result(upscale.Result{Name: "a.png", Filename: "a_x4.png", Width: 8, Height: 4, Data: make([]byte, 10)}, "out/a_x4.png")
	w.Result(upscale.Result{Name: "b.png", Err: errors.New("boom")}, "")
	w.Result(upscale.Result{Name: "c.png", Skipped: true}, "")

	want := []event{
		{Type: "progress", Image: "a.png", Phase: "processing", Processed: 3, Total: 12, Percent: 25},
		{Type: "result", Image: "a.png", File: "out/a_x4.png", MIME: "image/png", Width: 8, Height: 4, Bytes: 10},
		{Type: "error", Image: "b.png", Error: "boom"},
		{Type: "skipped", Image: "c.png"},
	}
	if diff := cmp.Diff(want, decodeEvents(t, &buf)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveModel(t *testing.T) {
	none := func(string) bool { return false }

	m, err := resolveModel(flags{model: "nearest-x4"}, none)
	if err != nil || m.Scale != 4 {
		t.Errorf("resolveModel(nearest-x4) = %+v, %v", m, err)
	}

	if _, err := resolveModel(flags{model: "mystery"}, none); err == nil {
		t.Error("resolveModel(mystery) should fail without --backend and --scale")
	}

	f := flags{model: "mine", backend: "bicubic", scale: 3}
	changed := func(name string) bool { return name == "backend" || name == "scale" }
	m, err = resolveModel(f, changed)
	if err != nil {
		t.Fatalf("resolveModel(custom) error = %v", err)
	}
	if m.ID != "mine" || m.Backend != "bicubic" || m.Scale != 3 {
		t.Errorf("resolveModel(custom) = %+v", m)
	}
}
