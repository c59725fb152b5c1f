package domain

// Board is a Width x Height grid of stones. cells[y][x] holds the stone at
// column x, row y; row 0 is the top row.
type Board struct {
	Width  int
	Height int
	cells  [][]Stone
	filled int
}

func NewBoard(width, height int) *Board {
	cells := make([][]Stone, height)
	for i := range cells {
		cells[i] = make([]Stone, width)
	}
	return &Board{Width: width, Height: height, cells: cells}
}

func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.Width && y >= 0 && y < b.Height
}

// At returns the stone at (x, y). Out-of-bounds coordinates read as Empty.
func (b *Board) At(x, y int) Stone {
	if !b.InBounds(x, y) {
		return Empty
	}
	return b.cells[y][x]
}

func (b *Board) IsOccupied(x, y int) bool {
	return b.At(x, y) != Empty
}

// Place puts a stone on a free in-bounds cell.
func (b *Board) Place(x, y int, stone Stone) error {
	if !b.InBounds(x, y) {
		return ErrOutOfBounds
	}
	if b.cells[y][x] != Empty {
		return ErrCellOccupied
	}
	b.cells[y][x] = stone
	b.filled++
	return nil
}

func (b *Board) IsFull() bool {
	return b.filled >= b.Width*b.Height
}

func (b *Board) StoneCount() int {
	return b.filled
}

// this creates a deep copy of the board
func (b *Board) Copy() *Board {
	cp := NewBoard(b.Width, b.Height)
	for y := range b.cells {
		copy(cp.cells[y], b.cells[y])
	}
	cp.filled = b.filled
	return cp
}

// Rows converts the board to plain ints for messages and storage.
func (b *Board) Rows() [][]int {
	rows := make([][]int, b.Height)
	for y := range b.cells {
		rows[y] = make([]int, b.Width)
		for x, s := range b.cells[y] {
			rows[y][x] = int(s)
		}
	}
	return rows
}

// this counts the number of stones in a specific direction
func (b *Board) CountInDirection(x, y, dx, dy int, stone Stone) int {
	count := 0
	cx, cy := x+dx, y+dy
	for b.InBounds(cx, cy) && b.cells[cy][cx] == stone {
		count++
		cx += dx
		cy += dy
	}
	return count
}

// Transform is a board-presentation instruction a rule hook may return.
type Transform string

const (
	TransformNone   Transform = ""
	TransformRotate Transform = "rotate"
	TransformMirror Transform = "mirror"
)

// Apply rewrites the board in place. Rotation turns the grid 90 degrees
// clockwise and is only defined for square boards; on other boards it is a
// no-op and Apply reports false.
func (b *Board) Apply(t Transform) bool {
	switch t {
	case TransformMirror:
		for y := range b.cells {
			row := b.cells[y]
			for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
				row[i], row[j] = row[j], row[i]
			}
		}
		return true
	case TransformRotate:
		if b.Width != b.Height {
			return false
		}
		n := b.Width
		rotated := make([][]Stone, n)
		for y := range rotated {
			rotated[y] = make([]Stone, n)
		}
		for y := 0; y < n; y++ {
			for x := 0; x < n; x++ {
				rotated[x][n-1-y] = b.cells[y][x]
			}
		}
		b.cells = rotated
		return true
	}
	return false
}
