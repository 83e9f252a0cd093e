package ladder_test

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func twoRungs() []model.Level {
	return []model.Level{
		{Name: "Bronze", Rank: 0},
		{Name: "Prata", Rank: 1, MinMonthsService: 3, MinCareScore: 70, BonusPercentage: 5},
	}
}

func TestNew(t *testing.T) {
	Convey("Given ladder definitions", t, func() {
		Convey("When levels arrive out of order", func() {
			levels := model.DefaultLadder()
			levels[0], levels[3] = levels[3], levels[0]
			r, err := ladder.New(levels)

			Convey("Then the registry sorts them by rank", func() {
				So(err, ShouldBeNil)
				got := r.Levels()
				for i, lvl := range got {
					So(lvl.Rank, ShouldEqual, i)
				}
				So(r.Lowest().Name, ShouldEqual, "Bronze")
				So(r.Highest().Name, ShouldEqual, "Diamante")
				So(r.Len(), ShouldEqual, 5)
			})
		})

		Convey("When the ladder violates an invariant", func() {
			cases := map[string][]model.Level{
				"empty":            nil,
				"duplicate rank":   {{Name: "A", Rank: 0}, {Name: "B", Rank: 0}},
				"duplicate name":   {{Name: "A", Rank: 0}, {Name: "a", Rank: 1}},
				"missing name":     {{Name: "", Rank: 0}},
				"blank name":       {{Name: "A", Rank: 0}, {Name: " \t ", Rank: 1}},
				"negative months":  {{Name: "A", Rank: 0, MinMonthsService: -1}},
				"score over 100":   {{Name: "A", Rank: 0, MinCareScore: 101}},
				"negative bonus":   {{Name: "A", Rank: 0, BonusPercentage: -1}},
				"months decrease":  {{Name: "A", Rank: 0, MinMonthsService: 6}, {Name: "B", Rank: 1, MinMonthsService: 3}},
				"score decreases":  {{Name: "A", Rank: 0, MinCareScore: 80}, {Name: "B", Rank: 1, MinCareScore: 70}},
				"gap then regress": {{Name: "A", Rank: 0}, {Name: "C", Rank: 5, MinCareScore: 50}, {Name: "B", Rank: 7, MinCareScore: 40}},
			}

			Convey("Then every case is a configuration error", func() {
				for _, levels := range cases {
					_, err := ladder.New(levels)
					So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
				}
			})
		})

		Convey("When the caller mutates the returned levels", func() {
			r := ladder.MustNew(twoRungs())
			levels := r.Levels()
			levels[1].MinCareScore = 0

			Convey("Then the registry is unaffected", func() {
				next, _ := r.Next(0)
				So(next.MinCareScore, ShouldEqual, 70)
			})
		})
	})
}

func TestNext(t *testing.T) {
	Convey("Given a ladder with gaps in its ranks", t, func() {
		r := ladder.MustNew([]model.Level{
			{Name: "Bronze", Rank: 0},
			{Name: "Ouro", Rank: 10, MinMonthsService: 6, MinCareScore: 80},
			{Name: "Diamante", Rank: 20, MinMonthsService: 24, MinCareScore: 95},
		})

		Convey("Then Next returns the smallest strictly greater rank", func() {
			next, ok := r.Next(0)
			So(ok, ShouldBeTrue)
			So(next.Name, ShouldEqual, "Ouro")

			next, ok = r.Next(5)
			So(ok, ShouldBeTrue)
			So(next.Name, ShouldEqual, "Ouro")

			next, ok = r.Next(10)
			So(ok, ShouldBeTrue)
			So(next.Name, ShouldEqual, "Diamante")
		})

		Convey("Then the top rank has no next level", func() {
			_, ok := r.Next(20)
			So(ok, ShouldBeFalse)
		})

		Convey("Then Lookup only matches exact ranks", func() {
			_, ok := r.Lookup(5)
			So(ok, ShouldBeFalse)
			lvl, ok := r.Lookup(10)
			So(ok, ShouldBeTrue)
			So(lvl.Name, ShouldEqual, "Ouro")
		})
	})
}

// monotonic reports whether levels satisfy the ladder invariant once sorted.
func monotonic(levels []model.Level) bool {
	sorted := append([]model.Level(nil), levels...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank < sorted[j].Rank })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Rank == sorted[i-1].Rank ||
			sorted[i].MinMonthsService < sorted[i-1].MinMonthsService ||
			sorted[i].MinCareScore < sorted[i-1].MinCareScore {
			return false
		}
	}
	return true
}

func TestLadderProperty(t *testing.T) {
	Convey("Given randomly generated ladders", t, func() {
		rng := rand.New(rand.NewSource(7)) //nolint:gosec // deterministic seed for reproducible testing

		Convey("Then New accepts exactly the monotonic ones", func() {
			accepted, rejected := 0, 0
			for iter := 0; iter < 500; iter++ {
				n := 1 + rng.Intn(6)
				levels := make([]model.Level, n)
				for i := range levels {
					levels[i] = model.Level{
						Name:             string(rune('A' + i)),
						Rank:             rng.Intn(8),
						MinMonthsService: rng.Intn(30),
						MinCareScore:     rng.Intn(101),
						BonusPercentage:  float64(rng.Intn(25)),
					}
				}

				r, err := ladder.New(levels)
				if !monotonic(levels) {
					rejected++
					So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
					continue
				}
				accepted++
				So(err, ShouldBeNil)
				got := r.Levels()
				for i := 1; i < len(got); i++ {
					So(got[i].Rank, ShouldBeGreaterThan, got[i-1].Rank)
					So(got[i].MinMonthsService, ShouldBeGreaterThanOrEqualTo, got[i-1].MinMonthsService)
					So(got[i].MinCareScore, ShouldBeGreaterThanOrEqualTo, got[i-1].MinCareScore)
				}
			}
			So(accepted, ShouldBeGreaterThan, 0)
			So(rejected, ShouldBeGreaterThan, 0)
		})
	})
}

func TestHolder(t *testing.T) {
	Convey("Given a holder serving the default ladder", t, func() {
		h := ladder.NewHolder(ladder.Default())
		captured := h.Current()

		Convey("When a valid ladder replaces it", func() {
			_, err := h.Replace(twoRungs())

			Convey("Then new readers see it while captured readers keep theirs", func() {
				So(err, ShouldBeNil)
				So(h.Current().Len(), ShouldEqual, 2)
				So(captured.Len(), ShouldEqual, 5)
			})
		})

		Convey("When an invalid ladder is offered", func() {
			_, err := h.Replace([]model.Level{{Name: "A", Rank: 0, MinCareScore: 50}, {Name: "B", Rank: 1, MinCareScore: 10}})

			Convey("Then the current ladder is kept", func() {
				So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
				So(h.Current(), ShouldEqual, captured)
			})
		})
	})
}
