package transport_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/relab/rbc"
	"github.com/relab/rbc/quorum"
	"github.com/relab/rbc/transport"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// BenchmarkBroadcast measures a quorum broadcast over gRPC to in-memory servers.
func BenchmarkBroadcast(b *testing.B) {
	for _, numNodes := range []int{3, 5, 7, 9, 13, 17, 19} {
		cluster := transport.TestServers(b, numNodes, echoHandler)
		mgr := cluster.Manager(b)
		rb := rbc.New(mgr.NodeIDs(), transport.NewSender(mgr), rbc.WithRPCTimeout(time.Second))
		verifier, err := quorum.NewEqualVerifier(mgr.NodeIDs())
		if err != nil {
			b.Fatal(err)
		}
		msg := proto.Message(wrapperspb.String("test"))

		for _, mode := range []quorum.Mode{quorum.Quorum, quorum.All} {
			name := "Quorum"
			if mode == quorum.All {
				name = "All"
			}
			b.Run(fmt.Sprintf("%s/%d", name, numNodes), func(b *testing.B) {
				b.ReportAllocs()
				for b.Loop() {
					set := quorum.NewWeightedAckSet[uint32, proto.Message](verifier, mode)
					if _, err := rbc.Broadcast(b.Context(), rb, msg, rbc.Identity[proto.Message], set); err != nil {
						b.Fatalf("Broadcast error: %v", err)
					}
				}
			})
		}
	}
}
