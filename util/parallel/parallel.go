// Copyright 2019 eBay Inc.
// Primary authors: Simon Fell, Diego Ongaro,
//                  Raymond Kroeker, and Sathish Kandasamy.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package parallel is a utility package for running concurrent tasks.
package parallel

import "context"

// Invoke runs the given callbacks concurrently in a child of 'ctx'. If any
// callback returns an error, Invoke cancels the child context, waits for the
// rest to complete, and returns the first error.
func Invoke(ctx context.Context, calls ...func(ctx context.Context) error) error {
	return InvokeN(ctx, len(calls),
		func(ctx context.Context, i int) error {
			return calls[i](ctx)
		})
}

// InvokeN runs 'call' with i=0, i=1, ..., i=n-1 concurrently in a child of
// 'ctx'. If any call returns an error, InvokeN cancels the child context,
// waits for the remaining calls, and returns the first error. Otherwise it
// returns nil once every call has completed.
func InvokeN(ctx context.Context, n int, call func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			ch <- call(ctx, i)
		}(i)
	}
	var firstErr error
	for i := 0; i < n; i++ {
		err := <-ch
		if err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// Map runs 'call' for each i in [0, n) concurrently and returns the results
// in index order. It has the same error handling as InvokeN; on error the
// partial results are discarded.
func Map[T any](ctx context.Context, n int, call func(ctx context.Context, i int) (T, error)) ([]T, error) {
	res := make([]T, n)
	err := InvokeN(ctx, n, func(ctx context.Context, i int) error {
		var err error
		res[i], err = call(ctx, i)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GoCaptureError is like the go keyword but returns a function that blocks
// until the goroutine exits and then returns the goroutine's error. It's safe
// to call the returned wait function multiple times; it always reports the
// same result.
func GoCaptureError(run func() error) (wait func() error) {
	done := make(chan error, 1)
	go func() {
		done <- run()
		close(done)
	}()
	var resultErr error
	return func() error {
		err, open := <-done
		if open {
			resultErr = err
		}
		return resultErr
	}
}
