package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/tierd/internal/adapters/mq/queue"
	"github.com/okian/tierd/internal/adapters/mq/worker"
	"github.com/smartystreets/goconvey/convey"
)

func filledQueue(n int) *queue.InMemoryQueue {
	q := queue.NewInMemoryQueue(queue.WithCapacity(n + 1))
	for i := 0; i < n; i++ {
		_ = q.Put(context.Background(), queue.Job{RunID: "run-1", DriverID: fmt.Sprintf("drv-%d", i)})
	}
	_ = q.Close()
	return q
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a closed queue holding three jobs", t, func() {
		q := filledQueue(3)

		convey.Convey("When a worker drains it", func() {
			var seen []string
			w := worker.NewInMemoryWorker(q, func(ctx context.Context, j queue.Job) error {
				seen = append(seen, j.DriverID)
				return nil
			}, worker.WithName("worker-test"))
			handled := w.Run(context.Background())

			convey.Convey("Then every job is handled in order", func() {
				convey.So(handled, convey.ShouldEqual, 3)
				convey.So(seen, convey.ShouldResemble, []string{"drv-0", "drv-1", "drv-2"})
			})
		})

		convey.Convey("When the handler fails", func() {
			calls := 0
			w := worker.NewInMemoryWorker(q, func(ctx context.Context, j queue.Job) error {
				calls++
				return errors.New("store unavailable")
			})
			handled := w.Run(context.Background())

			convey.Convey("Then the worker keeps going", func() {
				convey.So(calls, convey.ShouldEqual, 3)
				convey.So(handled, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When the context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			calls := 0
			w := worker.NewInMemoryWorker(q, func(ctx context.Context, j queue.Job) error {
				calls++
				return nil
			})

			convey.Convey("Then no job is handled", func() {
				convey.So(w.Run(ctx), convey.ShouldEqual, 0)
				convey.So(calls, convey.ShouldEqual, 0)
			})
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		convey.Convey("When created with a non-positive count", func() {
			p := worker.NewPool(0)

			convey.Convey("Then it falls back to the CPU count", func() {
				convey.So(p.Size(), convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When four workers drain a hundred jobs", func() {
			q := filledQueue(100)
			var mu sync.Mutex
			seen := make(map[string]int)
			var inFlight, peak atomic.Int32

			handled, err := worker.NewPool(4).Run(context.Background(), q, func(ctx context.Context, j queue.Job) error {
				n := inFlight.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)

				mu.Lock()
				seen[j.DriverID]++
				mu.Unlock()
				return nil
			})

			convey.Convey("Then each job is handled exactly once with bounded parallelism", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(handled, convey.ShouldEqual, 100)
				convey.So(len(seen), convey.ShouldEqual, 100)
				for _, n := range seen {
					convey.So(n, convey.ShouldEqual, 1)
				}
				convey.So(peak.Load(), convey.ShouldBeLessThanOrEqualTo, 4)
			})
		})

		convey.Convey("When the deadline passes mid-run", func() {
			q := filledQueue(50)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
			defer cancel()

			handled, err := worker.NewPool(2).Run(ctx, q, func(ctx context.Context, j queue.Job) error {
				time.Sleep(5 * time.Millisecond)
				return nil
			})

			convey.Convey("Then the pool stops early without error", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(handled, convey.ShouldBeLessThan, 50)
				convey.So(q.Len(), convey.ShouldBeGreaterThan, 0)
			})
		})
	})
}
