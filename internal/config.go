package internal

import (
	"fmt"
	"time"
)

type Config struct {
	BufferSize      int           `env:"BUFFER_SIZE,required=true"`
	CharReplacement string        `env:"CHARACTER_REPLACEMENT,required=true"`
	LimitMessages   *int          `env:"LIMIT_MESSAGES"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`

	AIRequestsPerMinute int `env:"AI_REQUESTS_PER_MINUTE,required=true"`
	AIRequestsPerDay    int `env:"AI_REQUESTS_PER_DAY,required=true"`
	AITokensPerDay      int `env:"AI_TOKENS_PER_DAY,required=true"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AuthSecret        string        `env:"AUTH_SECRET,required=true"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`
	DebugPort      int    `env:"DEBUG_PORT,required=true"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
