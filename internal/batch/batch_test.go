package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
)

func paths(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("file-%02d.scesim", i)
	}
	return out
}

func TestRunKeepsInputOrder(t *testing.T) {
	in := paths(20)
	results := Run(context.Background(), in, 4, func(_ context.Context, path string) (string, error) {
		return "done:" + path, nil
	})
	if len(results) != len(in) {
		t.Fatalf("len(Run()) = %d, want %d", len(results), len(in))
	}
	for i, r := range results {
		if r.Path != in[i] || r.Value != "done:"+in[i] || r.Err != nil {
			t.Fatalf("results[%d] = %+v", i, r)
		}
	}
}

func TestRunRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 16)

	done := make(chan []Result[int])
	go func() {
		done <- Run(context.Background(), paths(16), 3, func(context.Context, string) (int, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			started <- struct{}{}
			<-release
			inFlight.Add(-1)
			return 1, nil
		})
	}()
	for i := 0; i < 3; i++ {
		<-started
	}
	close(release)
	results := <-done

	if got := peak.Load(); got > 3 {
		t.Fatalf("peak concurrency = %d, want <= 3", got)
	}
	if len(Failed(results)) != 0 {
		t.Fatalf("Failed() = %v, want none", Failed(results))
	}
}

func TestRunReportsErrorsPerFile(t *testing.T) {
	boom := errors.New("boom")
	results := Run(context.Background(), paths(5), 2, func(_ context.Context, path string) (int, error) {
		if path == "file-02.scesim" {
			return 0, boom
		}
		return 1, nil
	})
	failed := Failed(results)
	if len(failed) != 1 || failed[0].Path != "file-02.scesim" || !errors.Is(failed[0].Err, boom) {
		t.Fatalf("Failed() = %+v, want only file-02", failed)
	}
	for _, r := range results {
		if r.Path != "file-02.scesim" && r.Value != 1 {
			t.Fatalf("result %s = %+v, want processed", r.Path, r)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	results := Run(ctx, paths(4), 0, func(context.Context, string) (int, error) {
		calls.Add(1)
		return 0, nil
	})
	if calls.Load() != 0 {
		t.Fatalf("fn called %d times after cancel, want 0", calls.Load())
	}
	for _, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Fatalf("result %s error = %v, want context.Canceled", r.Path, r.Err)
		}
	}
}
