package main

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func manhattanDistance(p1, p2 Point) int {
	return abs(p2.X-p1.X) + abs(p2.Y-p1.Y)
}
