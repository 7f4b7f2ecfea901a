package worker

import (
	"context"
	"fmt"
	"sync"
)

// Task is one unit of work run by a Pool
type Task[T any] func(ctx context.Context) (T, error)

// Outcome is what a task produced
type Outcome[T any] struct {
	Value T
	Err   error
}

// Pool runs tasks on a fixed number of worker goroutines
type Pool[T any] struct {
	workers int
}

// NewPool creates a pool with the specified number of workers
func NewPool[T any](workers int) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	return &Pool[T]{workers: workers}
}

// Run executes tasks and returns their outcomes in input order.
// A panicking task fails alone. Tasks not started before ctx ends fail with the context error.
func (p *Pool[T]) Run(ctx context.Context, tasks []Task[T]) []Outcome[T] {
	outcomes := make([]Outcome[T], len(tasks))
	if len(tasks) == 0 {
		return outcomes
	}

	queue := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(p.workers, len(tasks)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range queue {
				outcomes[i] = execute(ctx, tasks[i])
			}
		}()
	}

	for i := range tasks {
		queue <- i
	}
	close(queue)
	wg.Wait()

	return outcomes
}

func execute[T any](ctx context.Context, task Task[T]) (out Outcome[T]) {
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome[T]{Err: fmt.Errorf("task panicked: %v", r)}
		}
	}()

	out.Value, out.Err = task(ctx)
	return out
}
