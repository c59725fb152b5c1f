package domain

var lineDirections = [4][2]int{
	{1, 0},  // horizontal
	{0, 1},  // vertical
	{1, 1},  // diagonal \
	{1, -1}, // diagonal /
}

// CheckWin reports whether the stone just placed at (x, y) completes a line
// of at least winLength stones. Only lines passing through (x, y) are checked.
func CheckWin(b *Board, x, y int, stone Stone, winLength int) bool {
	if stone == Empty || b.At(x, y) != stone {
		return false
	}
	for _, d := range lineDirections {
		count := 1 +
			b.CountInDirection(x, y, d[0], d[1], stone) +
			b.CountInDirection(x, y, -d[0], -d[1], stone)
		if count >= winLength {
			return true
		}
	}
	return false
}

// FindWinner scans the whole board for a completed line. Used after a board
// transform, where the last placement is no longer a meaningful anchor.
func FindWinner(b *Board, winLength int) (Stone, bool) {
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if s := b.At(x, y); s != Empty && CheckWin(b, x, y, s, winLength) {
				return s, true
			}
		}
	}
	return Empty, false
}
