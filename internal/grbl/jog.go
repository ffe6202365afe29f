package grbl

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Jog is one incremental move.
type Jog struct {
	Axis     string  `json:"axis"`
	Distance float64 `json:"distance"`
	Feed     float64 `json:"feed"`
}

// Command formats the jog as a GRBL "$J=" line.
func (j Jog) Command() (string, error) {
	axis := strings.ToUpper(strings.TrimSpace(j.Axis))
	switch axis {
	case "X", "Y", "Z":
	default:
		return "", fmt.Errorf("unknown axis %q", j.Axis)
	}
	if math.IsNaN(j.Distance) || math.IsInf(j.Distance, 0) {
		return "", fmt.Errorf("invalid jog distance %v", j.Distance)
	}
	if !(j.Feed > 0) || math.IsInf(j.Feed, 0) {
		return "", fmt.Errorf("jog feed must be positive, got %v", j.Feed)
	}
	return fmt.Sprintf("$J=G91 %s%s F%s", axis,
		strconv.FormatFloat(j.Distance, 'f', 2, 64),
		strconv.FormatFloat(j.Feed, 'f', -1, 64)), nil
}

// Jog moves one axis relative to the current position.
func (c *Controller) Jog(ctx context.Context, j Jog) error {
	cmd, err := j.Command()
	if err != nil {
		return err
	}
	_, err = c.Send(ctx, cmd)
	return err
}
