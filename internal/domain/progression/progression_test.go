package progression_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/domain/progression"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

func bronzePrata() *ladder.Registry {
	return ladder.MustNew([]model.Level{
		{Name: "Bronze", Rank: 0},
		{Name: "Prata", Rank: 1, MinMonthsService: 3, MinCareScore: 70, BonusPercentage: 5},
	})
}

func driver(monthsAgo, careScore, rank int) model.DriverProgression {
	return model.DriverProgression{
		DriverID:         "drv-1",
		CurrentLevelRank: rank,
		EnrolledAt:       now.AddDate(0, -monthsAgo, 0),
		CareScore:        careScore,
		Active:           true,
	}
}

func TestEvaluate(t *testing.T) {
	Convey("Given a Bronze/Prata ladder", t, func() {
		e := progression.NewEvaluator(bronzePrata())

		Convey("When a driver enrolled six months ago has care score 80", func() {
			report, err := e.Evaluate(driver(6, 80, 0), now)

			Convey("Then the driver is eligible for Prata", func() {
				So(err, ShouldBeNil)
				So(report.Eligible, ShouldBeTrue)
				So(report.MonthsService, ShouldEqual, 6)
				So(report.CurrentLevel.Name, ShouldEqual, "Bronze")
				So(report.NextLevel, ShouldNotBeNil)
				So(report.NextLevel.Name, ShouldEqual, "Prata")
				So(report.UnmetReasons, ShouldBeEmpty)
			})
		})

		Convey("When the same driver has care score 60", func() {
			report, err := e.Evaluate(driver(6, 60, 0), now)

			Convey("Then only the score criterion is reported", func() {
				So(err, ShouldBeNil)
				So(report.Eligible, ShouldBeFalse)
				So(report.UnmetReasons, ShouldResemble, []string{"Pontuação insuficiente: 60/70"})
			})
		})

		Convey("When both criteria fail", func() {
			report, err := e.Evaluate(driver(1, 50, 0), now)

			Convey("Then both reasons are listed, months first", func() {
				So(err, ShouldBeNil)
				So(report.Eligible, ShouldBeFalse)
				So(report.UnmetReasons, ShouldResemble, []string{
					"Tempo de serviço insuficiente: 1/3 meses",
					"Pontuação insuficiente: 50/70",
				})
			})
		})

		Convey("When the driver sits exactly on both thresholds", func() {
			report, err := e.Evaluate(driver(3, 70, 0), now)

			Convey("Then the bounds are inclusive", func() {
				So(err, ShouldBeNil)
				So(report.MonthsService, ShouldEqual, 3)
				So(report.Eligible, ShouldBeTrue)
			})
		})

		Convey("When the driver is one below each threshold", func() {
			p := driver(3, 69, 0)
			p.EnrolledAt = p.EnrolledAt.Add(time.Second)
			report, err := e.Evaluate(p, now)

			Convey("Then both criteria fail", func() {
				So(err, ShouldBeNil)
				So(report.MonthsService, ShouldEqual, 2)
				So(report.UnmetReasons, ShouldHaveLength, 2)
			})
		})

		Convey("When the driver is already at the top rank", func() {
			report, err := e.Evaluate(driver(40, 100, 1), now)

			Convey("Then there is no next level and nothing is unmet", func() {
				So(err, ShouldBeNil)
				So(report.NextLevel, ShouldBeNil)
				So(report.Eligible, ShouldBeFalse)
				So(report.UnmetReasons, ShouldNotBeNil)
				So(report.UnmetReasons, ShouldBeEmpty)
			})
		})

		Convey("When the driver references a rank the ladder lacks", func() {
			_, err := e.Evaluate(driver(6, 80, 7), now)

			Convey("Then it is a configuration error", func() {
				So(errors.Is(err, model.ErrConfiguration), ShouldBeTrue)
			})
		})
	})
}

func TestReasonCount(t *testing.T) {
	Convey("Given every combination of met and unmet criteria", t, func() {
		e := progression.NewEvaluator(bronzePrata())
		cases := []struct {
			months, score, failing int
		}{
			{3, 70, 0},
			{2, 70, 1},
			{3, 69, 1},
			{0, 0, 2},
			{12, 100, 0},
		}

		Convey("Then the reason count equals the failing criteria count", func() {
			for _, c := range cases {
				report, err := e.Evaluate(driver(c.months, c.score, 0), now)
				So(err, ShouldBeNil)
				So(report.UnmetReasons, ShouldHaveLength, c.failing)
				So(report.Eligible, ShouldEqual, c.failing == 0)
			}
		})
	})
}

func TestEvaluateIgnoresHigherRungs(t *testing.T) {
	Convey("Given a driver who qualifies for Platina while at Bronze", t, func() {
		e := progression.NewEvaluator(ladder.Default())
		report, err := e.Evaluate(driver(13, 90, 0), now)

		Convey("Then only the immediate next rung is considered", func() {
			So(err, ShouldBeNil)
			So(report.Eligible, ShouldBeTrue)
			So(report.NextLevel.Name, ShouldEqual, "Prata")
		})
	})
}

func TestMonthsBetween(t *testing.T) {
	Convey("Given enrolment dates", t, func() {
		d := func(y int, m time.Month, day, hour int) time.Time {
			return time.Date(y, m, day, hour, 0, 0, 0, time.UTC)
		}
		cases := []struct {
			start, end time.Time
			want       int
		}{
			{d(2026, 1, 15, 12), d(2026, 1, 15, 12), 0},
			{d(2026, 1, 15, 12), d(2026, 2, 15, 11), 0},
			{d(2026, 1, 15, 12), d(2026, 2, 15, 12), 1},
			{d(2026, 1, 15, 12), d(2026, 7, 14, 23), 5},
			{d(2025, 11, 30, 0), d(2026, 2, 28, 0), 3},
			{d(2026, 1, 31, 0), d(2026, 2, 28, 0), 1},
			{d(2026, 1, 31, 0), d(2026, 2, 27, 0), 0},
			{d(2024, 2, 29, 0), d(2025, 2, 28, 0), 12},
			{d(2020, 6, 1, 0), d(2026, 6, 1, 0), 72},
			{d(2026, 6, 1, 0), d(2026, 1, 1, 0), 0},
			{time.Time{}, d(2026, 1, 1, 0), 0},
		}

		Convey("Then whole calendar months are counted", func() {
			for _, c := range cases {
				So(progression.MonthsBetween(c.start, c.end), ShouldEqual, c.want)
			}
		})

		Convey("Then months are counted in UTC whatever the enrolment zone", func() {
			sp := time.FixedZone("BRT", -3*60*60)
			start := time.Date(2026, 1, 31, 22, 0, 0, 0, sp) // 2026-02-01T01:00Z
			end := time.Date(2026, 3, 1, 0, 30, 0, 0, time.UTC)
			So(progression.MonthsBetween(start, end), ShouldEqual, 0)

			start = time.Date(2026, 1, 30, 22, 0, 0, 0, sp) // 2026-01-31T01:00Z
			end = time.Date(2026, 2, 28, 23, 0, 0, 0, time.UTC)
			So(progression.MonthsBetween(start, end), ShouldEqual, 1)
			So(progression.MonthsBetween(start.UTC(), end), ShouldEqual, 1)
			So(progression.MonthsBetween(start, end.In(sp)), ShouldEqual, 1)
		})
	})
}
