package main

// Direction is a cardinal direction.
type Direction int

const (
	NONE Direction = iota
	UP
	RIGHT
	DOWN
	LEFT
)

// ToPoint converts a Direction to a unit displacement.
func (d Direction) ToPoint() Point {
	switch d {
	case UP:
		return Point{X: 0, Y: -1}
	case RIGHT:
		return Point{X: 1, Y: 0}
	case DOWN:
		return Point{X: 0, Y: 1}
	case LEFT:
		return Point{X: -1, Y: 0}
	default:
		return Point{X: 0, Y: 0}
	}
}

func (d Direction) TurnLeft() Direction {
	switch d {
	case UP:
		return LEFT
	case RIGHT:
		return UP
	case DOWN:
		return RIGHT
	case LEFT:
		return DOWN
	default:
		return d
	}
}

func (d Direction) TurnRight() Direction {
	switch d {
	case UP:
		return RIGHT
	case RIGHT:
		return DOWN
	case DOWN:
		return LEFT
	case LEFT:
		return UP
	default:
		return d
	}
}

// Relative actions.
const (
	ActionLeft = iota
	ActionForward
	ActionRight
)

// Apply returns the direction taken after a relative action.
func (d Direction) Apply(action int) Direction {
	switch action {
	case ActionLeft:
		return d.TurnLeft()
	case ActionRight:
		return d.TurnRight()
	default:
		return d
	}
}

// GetStateInfo returns the 7 network inputs:
// [food up, food right, food down, food left, danger left, danger ahead, danger right].
func (g *Game) GetStateInfo() []float64 {
	state := make([]float64, 7)
	head := g.snake.GetHead()
	food := g.food

	dx := food.X - head.X
	dy := food.Y - head.Y
	if abs(dx) >= abs(dy) && dx != 0 {
		if dx > 0 {
			state[1] = 1
		} else {
			state[3] = 1
		}
	} else if dy != 0 {
		if dy < 0 {
			state[0] = 1
		} else {
			state[2] = 1
		}
	}

	dir := g.snake.Direction
	for i, action := range []int{ActionLeft, ActionForward, ActionRight} {
		d := dir.Apply(action).ToPoint()
		if g.checkCollision(Point{X: head.X + d.X, Y: head.Y + d.Y}) != NoCollision {
			state[4+i] = 1
		}
	}
	return state
}
