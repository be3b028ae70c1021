package fn

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResultBasics(t *testing.T) {
	ok := Ok(42)
	if !ok.IsOk() || ok.IsErr() {
		t.Fatal("Ok result misreported")
	}
	v, err := ok.Unwrap()
	if v != 42 || err != nil {
		t.Fatalf("unwrap: %v %v", v, err)
	}

	e := Err[int](errors.New("boom"))
	if e.IsOk() {
		t.Fatal("Err result misreported")
	}
	if e.UnwrapOr(7) != 7 {
		t.Fatal("UnwrapOr fallback")
	}
}

func TestFromPair(t *testing.T) {
	if r := FromPair(1, nil); r.IsErr() {
		t.Fatal("nil error should be ok")
	}
	if r := FromPair(0, errors.New("x")); r.IsOk() {
		t.Fatal("error should not be ok")
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	attempts := 0
	opts := RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: 2 * time.Millisecond}
	r := Retry(context.Background(), opts, func(context.Context) Result[string] {
		attempts++
		if attempts < 3 {
			return Errf[string]("attempt %d", attempts)
		}
		return Ok("done")
	})
	if r.IsErr() {
		t.Fatal("expected success")
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d", attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := RetryOpts{MaxAttempts: 5, InitialWait: time.Second, MaxWait: time.Second}
	r := Retry(ctx, opts, func(context.Context) Result[int] {
		return Errf[int]("never succeeds")
	})
	_, err := r.Unwrap()
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestChunk(t *testing.T) {
	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("chunks = %v", chunks)
	}
	if Chunk([]int{1}, 0) != nil {
		t.Fatal("n<=0 should return nil")
	}
}

func TestUniqueBy_KeepsLast(t *testing.T) {
	type rec struct {
		k, v string
	}
	in := []rec{{"a", "1"}, {"b", "2"}, {"a", "3"}}
	out := UniqueBy(in, func(r rec) string { return r.k })
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0].v != "3" {
		t.Errorf("expected last occurrence to win, got %v", out[0])
	}
}

func TestGroupBy(t *testing.T) {
	groups := GroupBy([]string{"aa", "ab", "ba"}, func(s string) byte { return s[0] })
	if len(groups['a']) != 2 || len(groups['b']) != 1 {
		t.Fatalf("groups = %v", groups)
	}
}

func TestThen_ShortCircuits(t *testing.T) {
	first := func(_ context.Context, n int) Result[int] { return Errf[int]("fail") }
	second := func(_ context.Context, n int) Result[string] {
		t.Fatal("second should not run")
		return Ok("")
	}
	r := Then(first, second)(context.Background(), 1)
	if r.IsOk() {
		t.Fatal("expected error")
	}
}
