package main

import (
	"context"

	"snake-dqn/qlearning"
)

// SnakeAgent plays one Game with a shared DQN agent.
type SnakeAgent struct {
	agent *qlearning.Agent
	game  *Game
}

func NewSnakeAgent(agent *qlearning.Agent, game *Game) *SnakeAgent {
	return &SnakeAgent{agent: agent, game: game}
}

// Update plays one step and hands the transition to the agent.
func (sa *SnakeAgent) Update(ctx context.Context) error {
	snake := sa.game.GetSnake()
	if snake.Dead {
		return nil
	}

	currentState := sa.game.GetStateInfo()
	action := sa.agent.GetAction(currentState)

	oldScore := snake.Score
	oldDistance := manhattanDistance(snake.GetHead(), sa.game.GetFood())
	snake.Direction = snake.Direction.Apply(action)
	sa.game.Update()

	reward := sa.calculateReward(oldScore, oldDistance)
	return sa.agent.Observe(ctx, qlearning.Transition{
		State:     currentState,
		Action:    action,
		Reward:    reward,
		NextState: sa.game.GetStateInfo(),
		Done:      snake.Dead,
	})
}

func (sa *SnakeAgent) calculateReward(oldScore, oldDistance int) float64 {
	snake := sa.game.GetSnake()
	if snake.Dead {
		return -2.0
	}
	if snake.Score > oldScore {
		return 5.0 + float64(snake.Score)*0.2
	}

	reward := -0.005
	distance := manhattanDistance(snake.GetHead(), sa.game.GetFood())
	switch {
	case distance < oldDistance:
		reward += 0.1
	case distance > oldDistance:
		reward -= 0.1
	}
	return reward
}
