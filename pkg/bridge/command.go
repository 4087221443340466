package bridge

import "math"

// Command is a discrete rover movement directive.
type Command string

const (
	Stop              Command = "STOP"
	MoveForward       Command = "MOVE_FORWARD"
	MoveBackward      Command = "MOVE_BACKWARD"
	PivotLeftForward  Command = "PIVOT_LEFT_FORWARD"
	PivotRightForward Command = "PIVOT_RIGHT_FORWARD"
	TurnLeftOnSpot    Command = "TURN_LEFT_ON_SPOT"
	TurnRightOnSpot   Command = "TURN_RIGHT_ON_SPOT"
)

// Classifier maps a stick sample onto a Command with a small deadzone
// and a stronger threshold for on-the-spot turns.
type Classifier struct {
	Deadzone   float64
	StrongPush float64
}

// Classify buckets the (x, y) sample, each axis in [-1, 1].
// Negative y is a forward push. Samples between the deadzone and the
// strong-push threshold that match no bucket fall back to Stop.
func (c Classifier) Classify(x, y float64) Command {
	d, s := c.Deadzone, c.StrongPush
	ax, ay := math.Abs(x), math.Abs(y)
	switch {
	case ax < d && ay < d:
		return Stop
	case y < -d:
		if ax < d {
			return MoveForward
		}
		if x > d {
			return PivotLeftForward
		}
		return PivotRightForward
	case y > d && ax < d:
		return MoveBackward
	case ay < d && x > s:
		return TurnRightOnSpot
	case ay < d && x < -s:
		return TurnLeftOnSpot
	}
	return Stop
}
