package main

import (
	"testing"

	"github.com/khanhnv2901/seca-probe/cmd"
)

func TestMainRunsRootCommand(t *testing.T) {
	calls := 0
	execCmd = func() { calls++ }
	t.Cleanup(func() { execCmd = cmd.Execute })

	main()

	if calls != 1 {
		t.Fatalf("main ran the root command %d times, want 1", calls)
	}
}
