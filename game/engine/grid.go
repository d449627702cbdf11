package engine

import "github.com/samber/lo"

// NewGrid returns an n×n grid of empty cells
func NewGrid(n int) Grid {
	g := make(Grid, n)
	for r := range g {
		g[r] = make([]int, n)
	}
	return g
}

// GridFromRows builds a grid from literal rows, copying them
func GridFromRows(rows [][]int) Grid {
	return Grid(rows).Clone()
}

// Size returns the grid dimension
func (g Grid) Size() int {
	return len(g)
}

// Clone returns a deep copy of the grid
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for r, row := range g {
		out[r] = append([]int(nil), row...)
	}
	return out
}

// Equal reports whether two grids hold identical values cell by cell
func (g Grid) Equal(other Grid) bool {
	if len(g) != len(other) {
		return false
	}
	for r := range g {
		if len(g[r]) != len(other[r]) {
			return false
		}
		for c := range g[r] {
			if g[r][c] != other[r][c] {
				return false
			}
		}
	}
	return true
}

// EmptyCells returns the [row, col] coordinates of every empty cell in row-major order
func (g Grid) EmptyCells() [][2]int {
	var empty [][2]int
	for r, row := range g {
		for c, v := range row {
			if v == 0 {
				empty = append(empty, [2]int{r, c})
			}
		}
	}
	return empty
}

// CountTiles returns the number of non-empty cells
func (g Grid) CountTiles() int {
	n := 0
	for _, row := range g {
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
	}
	return n
}

// MaxTile returns the largest tile value on the grid
func (g Grid) MaxTile() int {
	best := 0
	for _, row := range g {
		for _, v := range row {
			if v > best {
				best = v
			}
		}
	}
	return best
}

// Rotate is the canonical 90° rotation primitive (transpose, then reverse each
// row), turning the grid clockwise. It returns a new grid with
// newGrid[c][n-1-r] = g[r][c]; the receiver is not modified.
func (g Grid) Rotate() Grid {
	n := len(g)
	out := NewGrid(n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			out[c][n-1-r] = g[r][c]
		}
	}
	return out
}

// rotate applies the canonical rotation k times
func (g Grid) rotate(k int) Grid {
	out := g
	for i := 0; i < k%4; i++ {
		out = out.Rotate()
	}
	return out
}

// IsOver reports whether the grid is full and no two orthogonal neighbours are
// equal. It only inspects immediate neighbours.
func (g Grid) IsOver() bool {
	n := len(g)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := g[r][c]
			if v == 0 {
				return false
			}
			if c < n-1 && v == g[r][c+1] {
				return false
			}
			if r < n-1 && v == g[r+1][c] {
				return false
			}
		}
	}
	return true
}

// SlideRow applies the slide-and-merge rule to one row moving left. Zeros are
// removed, adjacent equal pairs merge once from the left, and the result is
// padded with zeros back to the original length. It returns the new row, the
// score gained and the number of merges.
func SlideRow(row []int) ([]int, int, int) {
	tiles := lo.Filter(row, func(v int, _ int) bool { return v != 0 })

	out := make([]int, 0, len(row))
	delta, merges := 0, 0
	for i := 0; i < len(tiles); i++ {
		if i+1 < len(tiles) && tiles[i] == tiles[i+1] {
			merged := tiles[i] * 2
			out = append(out, merged)
			delta += merged
			merges++
			i++ // the right tile of the pair is consumed
			continue
		}
		out = append(out, tiles[i])
	}
	for len(out) < len(row) {
		out = append(out, 0)
	}
	return out, delta, merges
}

// Slide computes the grid produced by moving in dir without spawning a tile.
// The input grid is left untouched.
func Slide(g Grid, dir Direction) (Grid, int, int) {
	k := dir.rotations()
	work := g.rotate(k)
	if k == 0 {
		work = g.Clone()
	}

	delta, merges := 0, 0
	for r := range work {
		row, d, m := SlideRow(work[r])
		work[r] = row
		delta += d
		merges += m
	}

	return work.rotate((4 - k) % 4), delta, merges
}

// isPowerOfTwo reports whether v is 2, 4, 8, ...
func isPowerOfTwo(v int) bool {
	return v >= 2 && v&(v-1) == 0
}
