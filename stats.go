package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// GroupSize is how many records at one compression level are merged into one record of the next level.
const GroupSize = 100

// GameStats keeps per-episode records, compressing old ones into aggregates.
type GameStats struct {
	Games []GameRecord
	mutex sync.RWMutex
}

// GameRecord is a single episode (CompressionIndex 0) or an aggregate of GamesCount episodes.
type GameRecord struct {
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	CompressionIndex int       `json:"compressionIndex"`
	GamesCount       int       `json:"gamesCount"`
	AverageScore     float64   `json:"averageScore"`
	MedianScore      float64   `json:"medianScore"`
	MaxScore         int       `json:"maxScore"`
	MinScore         int       `json:"minScore"`
	AverageSteps     float64   `json:"averageSteps"`
	MaxSteps         int       `json:"maxSteps"`
}

func NewGameStats() *GameStats {
	return &GameStats{Games: make([]GameRecord, 0)}
}

func (s *GameStats) AddGame(score, steps int, startTime, endTime time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Games = append(s.Games, GameRecord{
		StartTime:    startTime,
		EndTime:      endTime,
		GamesCount:   1,
		AverageScore: float64(score),
		MedianScore:  float64(score),
		MaxScore:     score,
		MinScore:     score,
		AverageSteps: float64(steps),
		MaxSteps:     steps,
	})
	s.groupGames()
}

// groupGames merges every full group of GroupSize records at a level into one record of the next level.
func (s *GameStats) groupGames() {
	sort.SliceStable(s.Games, func(i, j int) bool {
		if s.Games[i].CompressionIndex != s.Games[j].CompressionIndex {
			return s.Games[i].CompressionIndex > s.Games[j].CompressionIndex
		}
		return s.Games[i].StartTime.Before(s.Games[j].StartTime)
	})

	for level := 0; ; level++ {
		var records, rest []GameRecord
		for _, g := range s.Games {
			if g.CompressionIndex == level {
				records = append(records, g)
			} else {
				rest = append(rest, g)
			}
		}
		if len(records) < GroupSize {
			return
		}

		var merged []GameRecord
		for i := 0; i < len(records); i += GroupSize {
			if i+GroupSize > len(records) {
				merged = append(merged, records[i:]...)
				break
			}
			merged = append(merged, mergeGroup(records[i:i+GroupSize], level+1))
		}
		s.Games = append(rest, merged...)
	}
}

func mergeGroup(group []GameRecord, level int) GameRecord {
	out := GameRecord{
		StartTime:        group[0].StartTime,
		EndTime:          group[0].EndTime,
		CompressionIndex: level,
		MaxScore:         group[0].MaxScore,
		MinScore:         group[0].MinScore,
		MaxSteps:         group[0].MaxSteps,
	}
	var totalScore, totalSteps float64
	var medians []float64
	for _, g := range group {
		if g.MaxScore > out.MaxScore {
			out.MaxScore = g.MaxScore
		}
		if g.MinScore < out.MinScore {
			out.MinScore = g.MinScore
		}
		if g.MaxSteps > out.MaxSteps {
			out.MaxSteps = g.MaxSteps
		}
		if g.StartTime.Before(out.StartTime) {
			out.StartTime = g.StartTime
		}
		if g.EndTime.After(out.EndTime) {
			out.EndTime = g.EndTime
		}
		totalScore += g.AverageScore * float64(g.GamesCount)
		totalSteps += g.AverageSteps * float64(g.GamesCount)
		out.GamesCount += g.GamesCount
		for i := 0; i < g.GamesCount; i++ {
			medians = append(medians, g.MedianScore)
		}
	}
	out.AverageScore = totalScore / float64(out.GamesCount)
	out.AverageSteps = totalSteps / float64(out.GamesCount)
	out.MedianScore = median(medians)
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}

func (s *GameStats) GetAverageScore() float64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var total float64
	var games int
	for _, g := range s.Games {
		total += g.AverageScore * float64(g.GamesCount)
		games += g.GamesCount
	}
	if games == 0 {
		return 0
	}
	return total / float64(games)
}

func (s *GameStats) GetMaxScore() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	best := 0
	for _, g := range s.Games {
		if g.MaxScore > best {
			best = g.MaxScore
		}
	}
	return best
}

func (s *GameStats) GetGamesPlayed() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	total := 0
	for _, g := range s.Games {
		total += g.GamesCount
	}
	return total
}

// SaveToFile writes the records as JSON.
func (s *GameStats) SaveToFile(path string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create stats directory: %v", err)
	}
	data, err := json.MarshalIndent(s.Games, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats data: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write stats file: %v", err)
	}
	return nil
}
