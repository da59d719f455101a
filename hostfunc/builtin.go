package hostfunc

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// TimeNow returns the host wall clock in fractional Unix seconds.
func TimeNow(ctx context.Context, args map[string]any) (any, error) {
	return float64(time.Now().UnixNano()) / 1e9, nil
}

// NewLog returns a function that writes guest messages to logger.
//
// Args: {"message": string, "level": "debug"|"info"|"warn"|"error"}.
// Level defaults to info.
func NewLog(logger *log.Logger) Func {
	return func(ctx context.Context, args map[string]any) (any, error) {
		msg, ok := args["message"].(string)
		if !ok {
			return nil, errors.New("message required")
		}
		level := log.InfoLevel
		if s, ok := args["level"].(string); ok && s != "" {
			parsed, err := log.ParseLevel(s)
			if err != nil {
				return nil, err
			}
			level = parsed
		}
		logger.Log(level, msg, "source", "guest")
		return "ok", nil
	}
}
