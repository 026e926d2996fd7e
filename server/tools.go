package teachtiles

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// FillEnvVar returns the value of a runtime Environment Variable
func FillEnvVar(ev string) string {
	// If the EnvVar doesn't exist return a default string
	value := os.Getenv(ev)
	if value == "" {
		value = "ENOENT"
	}
	return value
}

// FillEnvVarInt returns an integer Environment Variable,
// or the fallback when it is unset or not a number
func FillEnvVarInt(ev string, fallback int) int {
	value := os.Getenv(ev)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		slog.Error("Not an integer, using default",
			slog.String("var", ev),
			slog.String("value", value),
			slog.Int("default", fallback))
		return fallback
	}
	return i
}

// Clock hands out monotonic milliseconds since it was created,
// the same role millis() plays on the board
type Clock struct {
	start time.Time
}

func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// NowMS wraps after ~49 days, all users compare with uint32 subtraction
func (c *Clock) NowMS() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}
