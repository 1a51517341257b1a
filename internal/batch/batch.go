// Package batch fans a per-item operation out over a set of media ids and
// collects the outcome once every attempt has settled.
package batch

import (
	"context"
	"sync"
)

// Op performs the operation for one id.
type Op func(ctx context.Context, id string) error

type Progress struct {
	Completed int
	Total     int
	ID        string
	Err       error
}

type Failure struct {
	ID  string
	Err error
}

type Summary struct {
	Succeeded []string
	Failures  []Failure
}

// Total is the number of attempts that settled.
func (s Summary) Total() int { return len(s.Succeeded) + len(s.Failures) }

// Run runs op for every id concurrently and waits for all of them. A failing
// item never aborts the others. With concurrency < 1 every id gets its own
// worker. Progress updates are sent best-effort for each settled item; the
// progress channel is not closed here.
//
// Items not started because ctx was cancelled are reported as failures.
func Run(ctx context.Context, ids []string, concurrency int, progress chan<- Progress, op Op) Summary {
	if ctx == nil {
		ctx = context.Background()
	}
	total := len(ids)
	if concurrency < 1 || concurrency > total {
		concurrency = total
	}
	sum := Summary{}
	if total == 0 {
		return sum
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	settle := func(id string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			sum.Failures = append(sum.Failures, Failure{ID: id, Err: err})
		} else {
			sum.Succeeded = append(sum.Succeeded, id)
		}
		completed++
		if progress != nil {
			// never block a worker on a slow receiver
			select {
			case progress <- Progress{Completed: completed, Total: total, ID: id, Err: err}:
			default:
			}
		}
	}

	worker := func() {
		defer wg.Done()
		for id := range jobs {
			var err error
			select {
			case <-ctx.Done():
				err = ctx.Err()
			default:
				err = op(ctx, id)
			}
			settle(id, err)
		}
	}

	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker()
	}
	go func() {
		defer close(jobs)
		for i, id := range ids {
			select {
			case <-ctx.Done():
				for _, rest := range ids[i:] {
					settle(rest, ctx.Err())
				}
				return
			case jobs <- id:
			}
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return sum
}
