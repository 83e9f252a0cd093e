package fleetsim_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/tierd/internal/adapters/http/api"
	"github.com/okian/tierd/internal/adapters/repository"
	service "github.com/okian/tierd/internal/app"
	"github.com/okian/tierd/internal/domain/ladder"
	"github.com/okian/tierd/internal/domain/model"
	"github.com/okian/tierd/internal/fleetsim"
	. "github.com/smartystreets/goconvey/convey"
)

func newServer() (*httptest.Server, *service.Service) {
	svc := service.New(repository.NewMemoryStore(), ladder.NewHolder(ladder.Default()))
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	return httptest.NewServer(mux), svc
}

func TestGenerate(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

	Convey("Given a seed", t, func() {
		a := fleetsim.Generate(200, 7, now)
		b := fleetsim.Generate(200, 7, now)

		Convey("Then profiles are reproducible apart from their IDs", func() {
			So(a, ShouldHaveLength, 200)
			for i := range a {
				So(a[i].DriverID, ShouldNotEqual, b[i].DriverID)
				So(a[i].EnrolledAt.Equal(b[i].EnrolledAt), ShouldBeTrue)
				So(a[i].Signal, ShouldEqual, b[i].Signal)
				So(a[i].Evaluation == nil, ShouldEqual, b[i].Evaluation == nil)
			}
		})

		Convey("Then every score is in range and evaluated drivers carry a submission id", func() {
			evaluated := 0
			for _, p := range a {
				So(p.Signal, ShouldBeBetweenOrEqual, 0, 100)
				So(p.EnrolledAt.Before(now), ShouldBeTrue)
				if p.Evaluation != nil {
					evaluated++
					So(*p.Evaluation, ShouldBeBetweenOrEqual, 0, 100)
					So(p.SubmissionID, ShouldNotBeEmpty)
				}
			}
			So(evaluated, ShouldBeGreaterThan, 0)
			So(evaluated, ShouldBeLessThan, 200)
		})
	})
}

func TestExpectation(t *testing.T) {
	now := time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
	eval := 100

	Convey("Given a veteran and a newcomer", t, func() {
		profiles := []fleetsim.Profile{
			{DriverID: "veteran", EnrolledAt: now.AddDate(-3, 0, 0), Signal: 100, Evaluation: &eval},
			{DriverID: "newcomer", EnrolledAt: now, Signal: 100},
		}
		expect, err := fleetsim.NewExpectation(ladder.Default(), profiles)
		So(err, ShouldBeNil)

		Convey("Then care scores follow the weighting", func() {
			v, _ := expect.CareScore("veteran")
			n, _ := expect.CareScore("newcomer")
			So(v, ShouldEqual, 100)
			So(n, ShouldEqual, 85)
		})

		Convey("Then each pass moves the veteran one level", func() {
			for pass := 1; pass <= 4; pass++ {
				promoted, err := expect.Pass(now)
				So(err, ShouldBeNil)
				So(promoted, ShouldEqual, 1)
				rank, _ := expect.Rank("veteran")
				So(rank, ShouldEqual, pass)
			}
			promoted, err := expect.Pass(now)
			So(err, ShouldBeNil)
			So(promoted, ShouldEqual, 0)

			rank, ok := expect.Rank("newcomer")
			So(ok, ShouldBeTrue)
			So(rank, ShouldEqual, 0)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a live tierd server", t, func() {
		srv, svc := newServer()
		defer srv.Close()
		defer svc.Stop()

		Convey("When a fleet is simulated", func() {
			out := filepath.Join(t.TempDir(), "fleet.json")
			stats, err := fleetsim.NewRunner(fleetsim.Config{
				BaseURL:    srv.URL,
				Drivers:    60,
				Workers:    8,
				Timeout:    5 * time.Second,
				Seed:       42,
				Passes:     2,
				OutputFile: out,
			}).Run(context.Background())

			Convey("Then the server matches the expectation after every pass", func() {
				So(err, ShouldBeNil)
				So(stats.Enrolled, ShouldEqual, 60)
				So(stats.Signals, ShouldEqual, 60)
				So(stats.Duplicates, ShouldEqual, stats.Evaluations)
				So(stats.Passes, ShouldHaveLength, 2)
				So(stats.Mismatches, ShouldEqual, 0)
				_, statErr := os.Stat(out)
				So(statErr, ShouldBeNil)
			})
		})

		Convey("When the ladder on the server changes mid-run", func() {
			_, err := svc.ReplaceLadder(context.Background(), []model.Level{
				{Name: "Bronze", Rank: 0},
				{Name: "Prata", Rank: 1, MinMonthsService: 1, MinCareScore: 10, BonusPercentage: 1},
			})
			So(err, ShouldBeNil)

			stats, err := fleetsim.NewRunner(fleetsim.Config{
				BaseURL: srv.URL, Drivers: 20, Workers: 4, Timeout: 5 * time.Second, Seed: 1,
			}).Run(context.Background())

			Convey("Then the simulation follows the ladder the server reports", func() {
				So(err, ShouldBeNil)
				So(stats.Passes, ShouldHaveLength, 2)
				So(stats.Passes[1].Promoted, ShouldEqual, 0)
			})
		})
	})

	Convey("Given no server", t, func() {
		_, err := fleetsim.NewRunner(fleetsim.Config{
			BaseURL: "http://127.0.0.1:1", Drivers: 1, Timeout: time.Second,
		}).Run(context.Background())

		Convey("Then the health check fails", func() {
			So(err, ShouldNotBeNil)
			So(errors.Is(err, fleetsim.ErrMismatch), ShouldBeFalse)
		})
	})
}
