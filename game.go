package main

import (
	"time"

	"golang.org/x/exp/rand"
)

type Point struct {
	X, Y int
}

type Grid struct {
	Width  int
	Height int
}

type Snake struct {
	Body              []Point
	Direction         Direction
	Score             int
	Dead              bool
	LastCollisionType CollisionType
}

// CollisionType represents the type of collision
type CollisionType int

const (
	NoCollision CollisionType = iota
	WallCollision
	SelfCollision
)

func (c CollisionType) String() string {
	switch c {
	case WallCollision:
		return "wall"
	case SelfCollision:
		return "self"
	default:
		return "none"
	}
}

// Game is a single-snake environment. The head is the last body segment.
type Game struct {
	Grid      Grid
	snake     *Snake
	food      Point
	Steps     int
	StartTime time.Time
	rng       *rand.Rand
}

func NewSnake(startPos Point, dir Direction) *Snake {
	return &Snake{
		Body:      []Point{startPos},
		Direction: dir,
	}
}

func NewGame(width, height int, rng *rand.Rand) *Game {
	startPos := Point{X: width / 4, Y: height / 2}
	game := &Game{
		Grid:      Grid{Width: width, Height: height},
		snake:     NewSnake(startPos, Direction(rng.Intn(4)+1)),
		StartTime: time.Now(),
		rng:       rng,
	}
	game.food = game.generateFood()
	return game
}

func (s *Snake) GetHead() Point {
	return s.Body[len(s.Body)-1]
}

func (g *Game) GetSnake() *Snake {
	return g.snake
}

func (g *Game) GetFood() Point {
	return g.food
}

// Update advances the snake one cell in its current direction.
func (g *Game) Update() {
	if g.snake.Dead {
		return
	}
	g.Steps++

	head := g.snake.GetHead()
	d := g.snake.Direction.ToPoint()
	newHead := Point{X: head.X + d.X, Y: head.Y + d.Y}

	if collision := g.checkCollision(newHead); collision != NoCollision {
		g.snake.Dead = true
		g.snake.LastCollisionType = collision
		return
	}

	g.snake.Body = append(g.snake.Body, newHead)
	if newHead == g.food {
		g.snake.Score++
		g.food = g.generateFood()
	} else {
		g.snake.Body = g.snake.Body[1:]
	}
}

func (g *Game) checkCollision(pos Point) CollisionType {
	if g.outOfBounds(pos) {
		return WallCollision
	}
	// the tail moves away this step
	for _, part := range g.snake.Body[1:] {
		if pos == part {
			return SelfCollision
		}
	}
	return NoCollision
}

func (g *Game) outOfBounds(pos Point) bool {
	return pos.X < 0 || pos.X >= g.Grid.Width || pos.Y < 0 || pos.Y >= g.Grid.Height
}

func (g *Game) generateFood() Point {
	for {
		food := Point{
			X: g.rng.Intn(g.Grid.Width),
			Y: g.rng.Intn(g.Grid.Height),
		}
		valid := true
		for _, part := range g.snake.Body {
			if food == part {
				valid = false
				break
			}
		}
		if valid {
			return food
		}
	}
}
