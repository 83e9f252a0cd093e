package fleetsim

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// Generation ranges.
const (
	maxTenureMonths = 30
	evaluatedShare  = 70 // percent of drivers that receive a partner evaluation
	tenureSlack     = 48 * time.Hour
)

// Generate builds n driver profiles. The same seed yields the same tenures and
// scores; IDs are always fresh so repeated runs never collide.
func Generate(n int, seed uint64, now time.Time) []Profile {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]Profile, n)
	for i := range out {
		months := rng.IntN(maxTenureMonths + 1)
		p := Profile{
			DriverID: "sim-" + uuid.NewString(),
			// The slack keeps the month count stable while the run is in flight.
			EnrolledAt: now.AddDate(0, -months, 0).Add(-tenureSlack).UTC().Truncate(time.Second),
			Signal:     skewed(rng),
		}
		if rng.IntN(100) < evaluatedShare {
			v := skewed(rng)
			p.Evaluation = &v
			p.SubmissionID = uuid.NewString()
		}
		out[i] = p
	}
	return out
}

// skewed draws a score in [0,100] weighted towards the upper half, like a
// real fleet.
func skewed(rng *rand.Rand) int {
	a, b := rng.IntN(101), rng.IntN(101)
	if a > b {
		return a
	}
	return b
}
