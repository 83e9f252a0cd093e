package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/tierd/internal/adapters/repository"
	"github.com/okian/tierd/internal/domain/batch"
	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/domain/promotion"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func bronzePrata() *ladder.Holder {
	return ladder.NewHolder(ladder.MustNew([]model.Level{
		{Name: "Bronze", Rank: 0},
		{Name: "Prata", Rank: 1, MinMonthsService: 3, MinCareScore: 70, BonusPercentage: 5},
	}))
}

func seed(ctx context.Context, s repository.Store, id string, monthsAgo, score int, active bool) {
	_, err := s.Create(ctx, model.DriverProgression{
		DriverID:   id,
		EnrolledAt: now.AddDate(0, -monthsAgo, 0),
		CareScore:  score,
		Active:     active,
	})
	So(err, ShouldBeNil)
}

// seedScenarioC stores ten Bronze drivers, three of whom qualify for Prata.
func seedScenarioC(ctx context.Context, s repository.Store) {
	for i := 0; i < 10; i++ {
		score := 50
		if i < 3 {
			score = 85
		}
		seed(ctx, s, fmt.Sprintf("drv-%02d", i), 6, score, true)
	}
}

type failingLister struct{}

func (failingLister) ActiveIDs(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

// slowAdvancer delays every driver so a deadline lands mid-pass.
type slowAdvancer struct {
	next  batch.Advancer
	delay time.Duration
}

func (s slowAdvancer) Advance(ctx context.Context, reg *ladder.Registry, id string, at time.Time) (model.PromotionResult, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return model.PromotionResult{}, ctx.Err()
	}
	return s.next.Advance(ctx, reg, id, at)
}

func TestRecomputeAll(t *testing.T) {
	ctx := context.Background()

	Convey("Given ten drivers of whom three qualify for the next rung", t, func() {
		store := repository.NewMemoryStore()
		holder := bronzePrata()
		seedScenarioC(ctx, store)
		cmd := promotion.New(store, holder)
		o := batch.New(store, holder, cmd, batch.WithWorkers(4), batch.WithQueueSize(2))

		Convey("When recompute runs", func() {
			first, err := o.RecomputeAll(ctx, now)

			Convey("Then three are promoted and seven unchanged", func() {
				So(err, ShouldBeNil)
				So(first.Processed, ShouldEqual, 10)
				So(first.Promoted, ShouldEqual, 3)
				So(first.Unchanged, ShouldEqual, 7)
				So(first.Skipped, ShouldEqual, 0)
				So(first.RunID, ShouldNotBeEmpty)
				So(first.FinishedAt.Before(first.StartedAt), ShouldBeFalse)

				for i := 0; i < 10; i++ {
					want := 0
					if i < 3 {
						want = 1
					}
					p, _ := store.Get(ctx, fmt.Sprintf("drv-%02d", i))
					So(p.CurrentLevelRank, ShouldEqual, want)
				}
			})

			Convey("And it runs again immediately", func() {
				second, err := o.RecomputeAll(ctx, now)

				Convey("Then nothing more is promoted", func() {
					So(err, ShouldBeNil)
					So(second.Processed, ShouldEqual, 10)
					So(second.Promoted, ShouldEqual, 0)
					So(second.Unchanged, ShouldEqual, 10)
					So(second.RunID, ShouldNotEqual, first.RunID)
				})
			})
		})

		Convey("When some drivers are inactive", func() {
			seed(ctx, store, "drv-inactive", 12, 99, false)
			summary, err := o.RecomputeAll(ctx, now)

			Convey("Then they are not part of the pass", func() {
				So(err, ShouldBeNil)
				So(summary.Processed, ShouldEqual, 10)
				p, _ := store.Get(ctx, "drv-inactive")
				So(p.CurrentLevelRank, ShouldEqual, 0)
			})
		})

		Convey("When no driver is eligible", func() {
			empty := repository.NewMemoryStore()
			for i := 0; i < 4; i++ {
				seed(ctx, empty, fmt.Sprintf("new-%d", i), 1, 10, true)
			}
			summary, err := batch.New(empty, holder, promotion.New(empty, holder)).RecomputeAll(ctx, now)

			Convey("Then zero promotions is a normal result", func() {
				So(err, ShouldBeNil)
				So(summary.Promoted, ShouldEqual, 0)
				So(summary.Unchanged, ShouldEqual, 4)
			})
		})
	})
}

func TestRecomputeAllMultiRung(t *testing.T) {
	ctx := context.Background()

	Convey("Given a veteran Bronze driver on the full ladder", t, func() {
		store := repository.NewMemoryStore()
		holder := ladder.NewHolder(ladder.Default())
		seed(ctx, store, "veteran", 30, 96, true)
		o := batch.New(store, holder, promotion.New(store, holder))

		Convey("Then each pass climbs exactly one rung until the top", func() {
			for want := 1; want <= 4; want++ {
				summary, err := o.RecomputeAll(ctx, now)
				So(err, ShouldBeNil)
				So(summary.Promoted, ShouldEqual, 1)
				p, _ := store.Get(ctx, "veteran")
				So(p.CurrentLevelRank, ShouldEqual, want)
			}
			summary, err := o.RecomputeAll(ctx, now)
			So(err, ShouldBeNil)
			So(summary.Promoted, ShouldEqual, 0)
			So(summary.Unchanged, ShouldEqual, 1)
		})
	})
}

func TestRecomputeAllFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given a driver list that cannot be read", t, func() {
		holder := bronzePrata()
		o := batch.New(failingLister{}, holder, promotion.New(repository.NewMemoryStore(), holder))
		_, err := o.RecomputeAll(ctx, now)

		Convey("Then the pass fails", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "connection refused")
		})
	})

	Convey("Given a deadline shorter than the pass", t, func() {
		store := repository.NewMemoryStore()
		holder := bronzePrata()
		for i := 0; i < 40; i++ {
			seed(ctx, store, fmt.Sprintf("drv-%02d", i), 6, 85, true)
		}
		adv := slowAdvancer{next: promotion.New(store, holder), delay: 10 * time.Millisecond}
		o := batch.New(store, holder, adv, batch.WithWorkers(2), batch.WithQueueSize(4))

		tctx, cancel := context.WithTimeout(ctx, 35*time.Millisecond)
		defer cancel()
		summary, err := o.RecomputeAll(tctx, now)

		Convey("Then unprocessed drivers are skipped, not failed", func() {
			So(err, ShouldBeNil)
			So(summary.Skipped, ShouldBeGreaterThan, 0)
			So(summary.Processed+summary.Skipped, ShouldEqual, 40)
			So(summary.Promoted, ShouldEqual, summary.Processed)
		})

		Convey("And the next pass picks up the rest", func() {
			rest, err := o.RecomputeAll(ctx, now)
			So(err, ShouldBeNil)
			So(rest.Processed, ShouldEqual, 40)
			So(summary.Promoted+rest.Promoted, ShouldEqual, 40)
		})
	})
}

func TestRecomputeAllLadderCapture(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pass in flight when the ladder is replaced", t, func() {
		store := repository.NewMemoryStore()
		holder := bronzePrata()
		for i := 0; i < 20; i++ {
			seed(ctx, store, fmt.Sprintf("drv-%02d", i), 6, 85, true)
		}

		var once sync.Once
		adv := hookAdvancer{next: promotion.New(store, holder), hook: func() {
			once.Do(func() {
				_, err := holder.Replace([]model.Level{
					{Name: "Bronze", Rank: 0},
					{Name: "Prata", Rank: 1, MinMonthsService: 3, MinCareScore: 99},
				})
				if err != nil {
					panic(err)
				}
			})
		}}
		summary, err := batch.New(store, holder, adv, batch.WithWorkers(3)).RecomputeAll(ctx, now)

		Convey("Then the whole pass uses the ladder it started with", func() {
			So(err, ShouldBeNil)
			So(summary.Promoted, ShouldEqual, 20)
			So(holder.Current().Levels()[1].MinCareScore, ShouldEqual, 99)
		})
	})
}

type hookAdvancer struct {
	next batch.Advancer
	hook func()
}

func (h hookAdvancer) Advance(ctx context.Context, reg *ladder.Registry, id string, at time.Time) (model.PromotionResult, error) {
	h.hook()
	return h.next.Advance(ctx, reg, id, at)
}

func TestRecomputeAllRacesWithPromote(t *testing.T) {
	ctx := context.Background()

	Convey("Given a recompute pass and single promotions racing on the same drivers", t, func() {
		store := repository.NewMemoryStore()
		holder := ladder.NewHolder(ladder.Default())
		for i := 0; i < 30; i++ {
			seed(ctx, store, fmt.Sprintf("drv-%02d", i), 40, 100, true)
		}
		cmd := promotion.New(store, holder, promotion.WithClock(func() time.Time { return now }))
		o := batch.New(store, holder, cmd, batch.WithWorkers(6))

		var wg sync.WaitGroup
		var mu sync.Mutex
		singles := 0
		for i := 0; i < 30; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := cmd.Promote(ctx, id); err == nil {
					mu.Lock()
					singles++
					mu.Unlock()
				}
			}(fmt.Sprintf("drv-%02d", i))
		}
		summary, err := o.RecomputeAll(ctx, now)
		wg.Wait()

		Convey("Then every successful write is exactly one rung", func() {
			So(err, ShouldBeNil)
			total := 0
			for i := 0; i < 30; i++ {
				p, _ := store.Get(ctx, fmt.Sprintf("drv-%02d", i))
				So(p.CurrentLevelRank, ShouldBeBetweenOrEqual, 0, 2)
				So(p.Version, ShouldEqual, int64(p.CurrentLevelRank)+1)
				total += p.CurrentLevelRank
			}
			So(total, ShouldEqual, singles+summary.Promoted)
		})
	})
}
