package strip

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBaseHeight(t *testing.T) {
	tests := []struct {
		height, workers, step, want int
	}{
		{176, 3, 56, 112}, // ceil(176/3/56)=2
		{176, 1, 56, 224},
		{232, 2, 56, 168},
		{120, 2, 56, 112},
		{56, 8, 56, 56},
	}
	for _, tt := range tests {
		if got := BaseHeight(tt.height, tt.workers, tt.step); got != tt.want {
			t.Errorf("BaseHeight(%d, %d, %d) = %d, want %d", tt.height, tt.workers, tt.step, got, tt.want)
		}
	}
}

func TestPartition_InvalidParams(t *testing.T) {
	bad := []Params{
		{Width: 100, Height: 100, Workers: 0, Step: 56, Overlap: 8, TileSize: 64},
		{Width: 100, Height: 100, Workers: 2, Step: 0, Overlap: 8, TileSize: 64},
		{Width: 100, Height: 100, Workers: 2, Step: 56, Overlap: -1, TileSize: 64},
		{Width: 100, Height: 50, Workers: 2, Step: 56, Overlap: 8, TileSize: 64},
	}
	for _, p := range bad {
		if _, err := Partition(p); !errors.Is(err, ErrInvalidParams) {
			t.Errorf("Partition(%+v) error = %v, want ErrInvalidParams", p, err)
		}
	}
}

func TestPartition_Scenario(t *testing.T) {
	strips, err := Partition(Params{Width: 232, Height: 176, Workers: 3, Step: 56, Overlap: 8, TileSize: 64})
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	want := []Strip{
		{Index: 0, StartY: 0, Height: 112, PaddingBottom: 8, OriginalWidth: 232, OriginalHeight: 112},
		{Index: 1, StartY: 112, Height: 64, PaddingTop: 8, OriginalWidth: 232, OriginalHeight: 64},
		{Index: 2, StartY: 176, OriginalWidth: 232},
	}
	if diff := cmp.Diff(want, strips); diff != "" {
		t.Errorf("Partition() mismatch (-want +got):\n%s", diff)
	}
	if !strips[2].Empty() {
		t.Error("third strip should be empty")
	}
	if got := NonEmpty(strips); len(got) != 2 {
		t.Errorf("NonEmpty() = %d strips, want 2", len(got))
	}
}

func TestPartition_WidensShortStrip(t *testing.T) {
	// 120 = 2*56+8 split across two workers leaves an 8-row tail.
	strips, err := Partition(Params{Width: 64, Height: 120, Workers: 2, Step: 56, Overlap: 8, TileSize: 64})
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	tail := strips[1]
	if tail.StartY != 112 || tail.Height != 8 {
		t.Fatalf("tail nominal = [%d,+%d), want [112,+8)", tail.StartY, tail.Height)
	}
	if tail.ExtractHeight() != 64 {
		t.Errorf("tail ExtractHeight() = %d, want 64", tail.ExtractHeight())
	}
	if tail.ExtractY() != 56 || tail.PaddingTop != 56 {
		t.Errorf("tail ExtractY() = %d (PaddingTop %d), want 56", tail.ExtractY(), tail.PaddingTop)
	}
}

func TestPartition_Invariants(t *testing.T) {
	for _, height := range []int{64, 65, 120, 176, 288, 513, 1000} {
		for workers := 1; workers <= 9; workers++ {
			for _, geo := range [][3]int{{64, 8, 56}, {32, 4, 28}, {48, 16, 32}} {
				tileSize, overlap, step := geo[0], geo[1], geo[2]
				if height < tileSize {
					continue
				}
				p := Params{Width: 100, Height: height, Workers: workers, Step: step, Overlap: overlap, TileSize: tileSize}
				strips, err := Partition(p)
				if err != nil {
					t.Fatalf("Partition(%+v) error = %v", p, err)
				}
				if len(strips) != workers {
					t.Fatalf("Partition(%+v) = %d strips, want %d", p, len(strips), workers)
				}

				next := 0
				for _, s := range strips {
					if s.Empty() {
						continue
					}
					if s.StartY != next {
						t.Fatalf("%+v: strip %d starts at %d, want %d", p, s.Index, s.StartY, next)
					}
					if s.StartY%step != 0 {
						t.Fatalf("%+v: strip %d start %d not step aligned", p, s.Index, s.StartY)
					}
					if s.ExtractY() < 0 || s.ExtractY()+s.ExtractHeight() > height {
						t.Fatalf("%+v: strip %d extract %v outside image", p, s.Index, s.Extract())
					}
					if s.ExtractHeight() < tileSize {
						t.Fatalf("%+v: strip %d extract height %d < tile %d", p, s.Index, s.ExtractHeight(), tileSize)
					}
					if s.Index > 0 && s.PaddingTop < min(overlap, s.StartY) {
						t.Fatalf("%+v: strip %d borrows %d rows above, want >= %d", p, s.Index, s.PaddingTop, overlap)
					}
					next = s.StartY + s.Height
				}
				if next != height {
					t.Fatalf("%+v: strips cover %d rows, want %d", p, next, height)
				}
			}
		}
	}
}

func TestStrip_Keep(t *testing.T) {
	s := Strip{StartY: 112, Height: 64, PaddingTop: 8, OriginalWidth: 232, OriginalHeight: 64}
	k := s.Keep(4)
	if k.X != 0 || k.Y != 32 || k.Width != 928 || k.Height != 256 {
		t.Errorf("Keep(4) = %v, want (0,32 928x256)", k)
	}
	if n := s.Nominal(); n.Y != 112 || n.Height != 64 {
		t.Errorf("Nominal() = %v", n)
	}
}
