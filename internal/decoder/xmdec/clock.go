package xmdec

import "sort"

// songClock maps consumed source frames onto (order, row). The stream does
// not expose its position, so the clock assumes the module's initial speed
// and tempo hold for the whole song.
type songClock struct {
	framesPerRow float64
	orderStart   []int // first song row of each order
	totalRows    int
	frames       float64 // consumed since song start, wrapped
}

func newSongClock(rowsPerOrder []int, framesPerRow float64) songClock {
	c := songClock{framesPerRow: framesPerRow, orderStart: make([]int, len(rowsPerOrder))}
	for i, n := range rowsPerOrder {
		c.orderStart[i] = c.totalRows
		c.totalRows += max(n, 1)
	}
	return c
}

func (c *songClock) songFrames() float64 {
	return float64(c.totalRows) * c.framesPerRow
}

// advance consumes n source frames, wrapping to the song start like the
// looping stream does.
func (c *songClock) advance(n float64) {
	c.frames += n
	if total := c.songFrames(); total > 0 {
		for c.frames >= total {
			c.frames -= total
		}
	}
}

// songRow is the absolute row index within the song.
func (c *songClock) songRow() int {
	if c.framesPerRow <= 0 {
		return 0
	}
	return int(c.frames / c.framesPerRow)
}

func (c *songClock) position() (order, row int) {
	if len(c.orderStart) == 0 {
		return 0, 0
	}
	r := c.songRow()
	order = sort.Search(len(c.orderStart), func(i int) bool { return c.orderStart[i] > r }) - 1
	order = max(order, 0)
	return order, r - c.orderStart[order]
}

// seek moves to the start of (order, row) and returns the song row index.
func (c *songClock) seek(order, row int) int {
	if len(c.orderStart) == 0 {
		c.frames = 0
		return 0
	}
	order = min(max(order, 0), len(c.orderStart)-1)
	end := c.totalRows
	if order+1 < len(c.orderStart) {
		end = c.orderStart[order+1]
	}
	r := min(c.orderStart[order]+max(row, 0), end-1)
	c.frames = float64(r) * c.framesPerRow
	return r
}
