package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.NRGBA{uint8(x * 9), uint8(y * 7), 40, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
}

func TestRun_UnreadableInputDoesNotStopBatch(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	good := filepath.Join(dir, "good.png")
	writePNG(t, good, 20, 12)
	missing := filepath.Join(dir, "missing.png")

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--model", "nearest-x4", "--workers", "2", "--out", out, missing, good})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Error("Execute() error = nil, want the failure of missing.png")
	}

	data, err := os.ReadFile(filepath.Join(out, "good_x4.png"))
	if err != nil {
		t.Fatalf("good image not written: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 48 {
		t.Errorf("output size = %dx%d, want 80x48", b.Dx(), b.Dy())
	}

	var sawError, sawResult bool
	for _, ev := range decodeEvents(t, &stdout) {
		switch {
		case ev.Type == "error" && ev.Image == missing:
			sawError = true
			if !strings.Contains(ev.Error, "decode") {
				t.Errorf("missing.png error = %q, want decode stage", ev.Error)
			}
		case ev.Type == "result" && ev.Image == good:
			sawResult = true
		}
	}
	if !sawError || !sawResult {
		t.Errorf("events: error for missing = %v, result for good = %v; want both\n%s", sawError, sawResult, stdout.String())
	}
}
