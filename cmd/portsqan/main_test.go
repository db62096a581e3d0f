package main

import (
	"flag"
	"os"
	"reflect"
	"testing"
)

func TestSplitExcluding_NoExclusion(t *testing.T) {
	got := splitExcluding(1, 10, false, 0, 0)
	want := [][2]uint16{{1, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitExcluding_MiddleCarveOut(t *testing.T) {
	got := splitExcluding(1, 10, true, 4, 6)
	want := [][2]uint16{{1, 3}, {7, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitExcluding_ExcludesLeadingEdge(t *testing.T) {
	got := splitExcluding(1, 10, true, 1, 4)
	want := [][2]uint16{{5, 10}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitExcluding_ExcludesTrailingEdge(t *testing.T) {
	got := splitExcluding(1, 10, true, 8, 10)
	want := [][2]uint16{{1, 7}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSplitExcluding_ExclusionOutsideRangeIgnored(t *testing.T) {
	got := splitExcluding(10, 20, true, 1, 5)
	want := [][2]uint16{{10, 20}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestIsSet_DistinguishesZeroFromAbsent(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	n := fs.Uint("n", 0, "")
	if err := fs.Parse([]string{}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if isSet(fs, "n") {
		t.Fatalf("isSet(n) = true before it was provided")
	}

	fs2 := flag.NewFlagSet("test2", flag.ContinueOnError)
	n2 := fs2.Uint("n", 0, "")
	if err := fs2.Parse([]string{"-n=0"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !isSet(fs2, "n") {
		t.Fatalf("isSet(n) = false after explicit -n=0")
	}
	_ = n
	_ = n2
}

func TestRun_RejectsMissingHost(t *testing.T) {
	code := run([]string{"--from=1", "--to=10"}, devNull(t), devNull(t))
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
}

func TestRun_RejectsInvalidRange(t *testing.T) {
	code := run([]string{"--from=10", "--to=1", "127.0.0.1"}, devNull(t), devNull(t))
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
}

func TestRun_RejectsLoneExcludeFlag(t *testing.T) {
	code := run([]string{"--from=1", "--to=10", "--exclude-from=2", "127.0.0.1"}, devNull(t), devNull(t))
	if code != 1 {
		t.Fatalf("run() = %d, want 1", code)
	}
}

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}
