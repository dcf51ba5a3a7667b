package tile

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// =============================================================================
// Origins
// =============================================================================

func TestOrigins_Aligned(t *testing.T) {
	// 3 steps of 56 plus one overlap: no clamping needed.
	got := Origins(176, 64, 8)
	want := []int{0, 56, 112}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Origins(176, 64, 8) mismatch (-want +got):\n%s", diff)
	}
}

func TestOrigins_ClampedLastTile(t *testing.T) {
	for _, dim := range []int{65, 100, 150, 200, 257, 1000} {
		got := Origins(dim, 64, 8)
		last := got[len(got)-1]
		if last != dim-64 {
			t.Errorf("Origins(%d): last origin = %d, want %d", dim, last, dim-64)
		}
		for i := 1; i < len(got); i++ {
			if got[i] <= got[i-1] {
				t.Errorf("Origins(%d) not strictly increasing: %v", dim, got)
			}
			if got[i]-got[i-1] > 56 {
				t.Errorf("Origins(%d) gap larger than step: %v", dim, got)
			}
		}
		if got[0] != 0 {
			t.Errorf("Origins(%d) first = %d, want 0", dim, got[0])
		}
	}
}

func TestOrigins_SingleTile(t *testing.T) {
	if diff := cmp.Diff([]int{0}, Origins(64, 64, 8)); diff != "" {
		t.Errorf("Origins(64, 64, 8) mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// Plan
// =============================================================================

func TestNewPlan_InvalidGeometry(t *testing.T) {
	tests := []struct {
		name                       string
		w, h, tileSize, overlap, s int
	}{
		{"overlap equals tile", 100, 100, 64, 64, 4},
		{"negative overlap", 100, 100, 64, -1, 4},
		{"zero tile", 100, 100, 0, 0, 4},
		{"narrow region", 63, 100, 64, 8, 4},
		{"short region", 100, 10, 64, 8, 4},
		{"zero scale", 100, 100, 64, 8, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPlan(tt.w, tt.h, tt.tileSize, tt.overlap, tt.s); !errors.Is(err, ErrInvalidGeometry) {
				t.Errorf("NewPlan() error = %v, want ErrInvalidGeometry", err)
			}
		})
	}
}

func TestNewPlan_Deterministic(t *testing.T) {
	a, err := NewPlan(333, 197, 48, 10, 2)
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	b, _ := NewPlan(333, 197, 48, 10, 2)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("NewPlan() not deterministic (-first +second):\n%s", diff)
	}
}

func TestNewPlan_Flags(t *testing.T) {
	p, err := NewPlan(176, 120, 64, 8, 1)
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	// 3 columns x 2 rows
	if p.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", p.Len())
	}
	first, last := p.Placements[0], p.Placements[5]
	if !first.FirstCol || !first.FirstRow || first.LastCol || first.LastRow {
		t.Errorf("first tile flags = %+v", first)
	}
	if last.FirstCol || last.FirstRow || !last.LastCol || !last.LastRow {
		t.Errorf("last tile flags = %+v", last)
	}
	for i, pl := range p.Placements {
		if pl.Index != i {
			t.Errorf("Placements[%d].Index = %d", i, pl.Index)
		}
	}
}

func TestNewPlan_SymmetricTrim(t *testing.T) {
	// Middle tile of an aligned plan keeps exactly one step, offset by
	// half the overlap on each interior side.
	p, err := NewPlan(176, 176, 64, 8, 4)
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	mid := p.Placements[4] // row 1, col 1
	if mid.X != 56 || mid.Y != 56 {
		t.Fatalf("middle tile origin = (%d,%d), want (56,56)", mid.X, mid.Y)
	}
	wantSrc := struct{ X, Y, W, H int }{4 * 4, 4 * 4, 56 * 4, 56 * 4}
	gotSrc := struct{ X, Y, W, H int }{mid.Src.X, mid.Src.Y, mid.Src.Width, mid.Src.Height}
	if gotSrc != wantSrc {
		t.Errorf("middle Src = %+v, want %+v", gotSrc, wantSrc)
	}
	if mid.Dst.X != 60*4 || mid.Dst.Y != 60*4 {
		t.Errorf("middle Dst origin = (%d,%d), want (240,240)", mid.Dst.X, mid.Dst.Y)
	}

	// Boundary edges are not trimmed.
	first := p.Placements[0]
	if first.Src.X != 0 || first.Src.Y != 0 || first.Src.Width != 60*4 {
		t.Errorf("first Src = %v, want origin 0 and width 240", first.Src)
	}
}

// checkCoverage verifies that the Dst rectangles tile the upscaled region
// exactly once and that each Src lies inside the upscaled tile.
func checkCoverage(t *testing.T, p *Plan) {
	t.Helper()
	w, h := p.OutputWidth(), p.OutputHeight()
	hits := make([]uint8, w*h)
	side := p.TileSize * p.Scale
	for _, pl := range p.Placements {
		if pl.Dst.Empty() {
			t.Fatalf("tile %d has empty Dst", pl.Index)
		}
		if pl.Src.Width != pl.Dst.Width || pl.Src.Height != pl.Dst.Height {
			t.Fatalf("tile %d Src %v and Dst %v differ in size", pl.Index, pl.Src, pl.Dst)
		}
		if pl.Src.X < 0 || pl.Src.Y < 0 || pl.Src.X+pl.Src.Width > side || pl.Src.Y+pl.Src.Height > side {
			t.Fatalf("tile %d Src %v outside upscaled tile %d", pl.Index, pl.Src, side)
		}
		if pl.Dst.X != pl.X*p.Scale+pl.Src.X || pl.Dst.Y != pl.Y*p.Scale+pl.Src.Y {
			t.Fatalf("tile %d Dst %v not aligned with Src %v at origin (%d,%d)", pl.Index, pl.Dst, pl.Src, pl.X, pl.Y)
		}
		for y := pl.Dst.Y; y < pl.Dst.Y+pl.Dst.Height; y++ {
			for x := pl.Dst.X; x < pl.Dst.X+pl.Dst.Width; x++ {
				hits[y*w+x]++
			}
		}
	}
	for i, n := range hits {
		if n != 1 {
			t.Fatalf("pixel (%d,%d) written %d times, want 1", i%w, i/w, n)
		}
	}
}

func TestNewPlan_FullCoverageNoOverlap(t *testing.T) {
	dims := []int{16, 17, 23, 31, 40, 57, 64, 100}
	for _, tileSize := range []int{8, 16} {
		for overlap := 1; overlap < tileSize; overlap += 3 {
			for _, w := range dims {
				for _, h := range dims {
					if w < tileSize || h < tileSize {
						continue
					}
					for _, scale := range []int{1, 2} {
						p, err := NewPlan(w, h, tileSize, overlap, scale)
						if err != nil {
							t.Fatalf("NewPlan(%d,%d,%d,%d,%d) error = %v", w, h, tileSize, overlap, scale, err)
						}
						checkCoverage(t, p)
					}
				}
			}
		}
	}
}

func TestNewPlan_ZeroOverlap(t *testing.T) {
	p, err := NewPlan(50, 40, 16, 0, 3)
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	checkCoverage(t, p)
}

func TestCount_MatchesPlan(t *testing.T) {
	for _, dims := range [][2]int{{232, 176}, {200, 150}, {64, 64}, {1000, 65}} {
		p, err := NewPlan(dims[0], dims[1], 64, 8, 4)
		if err != nil {
			t.Fatalf("NewPlan(%v) error = %v", dims, err)
		}
		n, err := Count(dims[0], dims[1], 64, 8)
		if err != nil {
			t.Fatalf("Count(%v) error = %v", dims, err)
		}
		if n != p.Len() {
			t.Errorf("Count(%v) = %d, want %d", dims, n, p.Len())
		}
	}
}

func TestScenario_PaddedImage(t *testing.T) {
	// 200x150 padded to 232x176 with tile 64 / overlap 8: 4x3 tiles, no clamping.
	p, err := NewPlan(232, 176, 64, 8, 4)
	if err != nil {
		t.Fatalf("NewPlan() error = %v", err)
	}
	if p.Len() != 12 {
		t.Errorf("Len() = %d, want 12", p.Len())
	}
	if p.OutputWidth() != 928 || p.OutputHeight() != 704 {
		t.Errorf("output = %dx%d, want 928x704", p.OutputWidth(), p.OutputHeight())
	}
	checkCoverage(t, p)
}
