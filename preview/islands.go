package preview

import "image"

// Islands counts the 4-connected regions of filled pixels in img.
func Islands(img image.Image) int {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return 0
	}

	parent := make([]int, w*h)
	for i := range parent {
		parent[i] = -1
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	var n int
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
			n--
		}
	}

	for v := 0; v < h; v++ {
		for u := 0; u < w; u++ {
			if !Filled(img, b.Min.X+u, b.Min.Y+v) {
				continue
			}
			i := v*w + u
			parent[i] = i
			n++
			if u > 0 && parent[i-1] >= 0 {
				union(i-1, i)
			}
			if v > 0 && parent[i-w] >= 0 {
				union(i-w, i)
			}
		}
	}

	return n
}
