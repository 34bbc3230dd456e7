package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidScore marks a scorer result outside [0,1]. It is never
// recoverable.
var ErrInvalidScore = errors.New("invalid score")

// ScoreSlack is the float drift above 1 that is clamped instead of rejected.
const ScoreSlack = 1e-4

// CheckScore validates a scorer result, clamping tiny overshoot above 1.
func CheckScore(score float64) (float64, error) {
	switch {
	case math.IsNaN(score) || math.IsInf(score, 0):
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, score)
	case score < 0:
		return 0, fmt.Errorf("%w: %v is negative", ErrInvalidScore, score)
	case score > 1+ScoreSlack:
		return 0, fmt.Errorf("%w: %v is above 1", ErrInvalidScore, score)
	case score > 1:
		return 1, nil
	}
	return score, nil
}
