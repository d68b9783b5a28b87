package rbc

import (
	"fmt"
	"testing"
)

// BenchmarkBroadcast measures a broadcast over an in-memory network for
// different peer counts and completion thresholds.
func BenchmarkBroadcast(b *testing.B) {
	for _, numPeers := range []int{3, 5, 7, 9, 13, 17, 19} {
		rb := New(peers(numPeers), newFakeNetwork(echo), WithBackoff(fastBackoff))
		for _, threshold := range []int{1, numPeers/2 + 1, numPeers} {
			b.Run(fmt.Sprintf("Threshold%d/%d", threshold, numPeers), func(b *testing.B) {
				b.ReportAllocs()
				for b.Loop() {
					if _, err := Broadcast(b.Context(), rb, "msg", Identity[string], newThresholdStatus(threshold)); err != nil {
						b.Fatalf("Broadcast error: %v", err)
					}
				}
			})
		}
	}
}

func BenchmarkBroadcastWithRetries(b *testing.B) {
	const numPeers = 7
	b.ReportAllocs()
	for b.Loop() {
		rb := New(peers(numPeers), newFakeNetwork(failing(2, 0, 1, 2)), WithBackoff(ConstantBackoff(0)))
		if _, err := Broadcast(b.Context(), rb, "msg", Identity[string], newThresholdStatus(numPeers)); err != nil {
			b.Fatalf("Broadcast error: %v", err)
		}
	}
}
