package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/npdstracker/internal/logger"
	"github.com/MrSnakeDoc/npdstracker/internal/state"
)

// Trigger queues a validation pass.
type Trigger interface {
	Trigger() bool
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time    // for testing, defaults to time.Now
	AllowedCIDRS []string            // IPs allowed to reach the API; empty allows everyone
	TrustProxy   bool                // true if running behind a trusted reverse proxy
	State        *state.TrackerState // registry, peers, settings and counters
	Validator    Trigger             // nil disables POST /api/validate
	RedisClient  *redis.Client       // nil when the command log mirror is disabled
}

// Now returns the current time through TimeNow.
func (d Deps) Now() time.Time {
	if d.TimeNow == nil {
		return time.Now()
	}
	return d.TimeNow()
}
