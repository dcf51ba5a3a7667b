package upscale

// paddedSize returns the smallest k*step + overlap (k >= 1) that is at least
// dim, where step = tileSize - overlap.
func paddedSize(dim, tileSize, overlap int) int {
	step := tileSize - overlap
	k := max((dim-overlap+step-1)/step, 1)
	return k*step + overlap
}
