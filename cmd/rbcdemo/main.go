// Command rbcdemo runs a two-phase reliable broadcast between in-process nodes.
//
// In the first phase a client broadcasts a payload and aggregates the BLS
// signatures of a quorum of nodes into a certificate. In the second phase it
// broadcasts the certificate and collects the nodes' acknowledgments. Faulty
// nodes sign the wrong message and crashed nodes never answer; both are
// retried by the broadcast engine until the aggregation completes without them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/relab/rbc"
	"github.com/relab/rbc/internal/version"
	"github.com/relab/rbc/quorum"
	"github.com/relab/rbc/transport"
	"go.dedis.ch/kyber/v4"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func main() {
	var (
		numNodes   = flag.Int("n", 4, "number of nodes")
		numFaulty  = flag.Int("faulty", 1, "number of nodes returning invalid signatures")
		numCrashed = flag.Int("crashed", 0, "number of nodes that never answer")
		payload    = flag.String("payload", "hello, reliable broadcast", "payload to certify")
		rpcTimeout = flag.Duration("timeout", 500*time.Millisecond, "timeout of each attempt to a node")
		deadline   = flag.Duration("deadline", 10*time.Second, "deadline of the whole demo")
		verbose    = flag.Bool("verbose", false, "log every failed attempt")
		showVer    = flag.Bool("version", false, "print the version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if *showVer {
		fmt.Println(version.String())
		return
	}

	level := pterm.LogLevelWarn
	if *verbose {
		level = pterm.LogLevelDebug
	}
	logger := slog.New(pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(level)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, *deadline)
	defer cancelTimeout()

	if err := run(ctx, logger, config{
		nodes:      *numNodes,
		faulty:     *numFaulty,
		crashed:    *numCrashed,
		payload:    []byte(*payload),
		rpcTimeout: *rpcTimeout,
	}); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

type config struct {
	nodes      int
	faulty     int
	crashed    int
	payload    []byte
	rpcTimeout time.Duration
}

func (c config) validate() error {
	if c.nodes <= 0 {
		return fmt.Errorf("need at least one node, got %d", c.nodes)
	}
	if c.faulty < 0 || c.crashed < 0 || c.faulty+c.crashed > c.nodes {
		return fmt.Errorf("cannot have %d faulty and %d crashed out of %d nodes", c.faulty, c.crashed, c.nodes)
	}
	return nil
}

// role of a node in the demo.
type role int

const (
	honest role = iota
	faulty
	crashed
)

func (r role) String() string {
	switch r {
	case faulty:
		return pterm.Yellow("faulty")
	case crashed:
		return pterm.Red("crashed")
	}
	return pterm.Green("honest")
}

// node is a demo participant signing payloads and checking certificates.
type node struct {
	id       uint32
	role     role
	key      quorum.KeyPair
	verifier *quorum.Verifier[uint32]
	pubs     map[uint32]kyber.Point

	mu      sync.Mutex
	signed  []byte
	sigs    int
	checked int
}

func (n *node) handle(_ context.Context, _ uint32, req proto.Message) (proto.Message, error) {
	switch msg := req.(type) {
	case *wrapperspb.BytesValue:
		n.mu.Lock()
		n.signed = msg.GetValue()
		n.sigs++
		n.mu.Unlock()
		signed := msg.GetValue()
		if n.role == faulty {
			signed = append([]byte("forged:"), signed...)
		}
		sig, err := n.key.Sign(signed)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "sign: %v", err)
		}
		return wrapperspb.Bytes(sig), nil

	case *wrapperspb.StringValue:
		var cert quorum.Certificate[uint32]
		if err := cert.UnmarshalBinary([]byte(msg.GetValue())); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "decode certificate: %v", err)
		}
		if err := cert.Verify(n.verifier, n.pubs); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "verify certificate: %v", err)
		}
		n.mu.Lock()
		defer n.mu.Unlock()
		if n.signed != nil && !cert.Certifies(n.signed) {
			return nil, status.Error(codes.FailedPrecondition, "certificate is for another payload")
		}
		n.checked++
		return wrapperspb.Bool(true), nil
	}
	return nil, status.Errorf(codes.InvalidArgument, "unexpected request %T", req)
}

// step reports the outcome of one phase of the demo.
type step interface {
	Success(message ...any)
	Fail(message ...any)
}

type quietStep struct{}

func (quietStep) Success(...any) {}
func (quietStep) Fail(...any)    {}

// startStep shows a spinner for a phase, unless terminal output is disabled.
// The spinner redraws from its own goroutine.
func startStep(text string) step {
	if !pterm.Output {
		return quietStep{}
	}
	spinner, err := pterm.DefaultSpinner.Start(text)
	if err != nil {
		return quietStep{}
	}
	return spinner
}

func run(ctx context.Context, logger *slog.Logger, cfg config) error {
	if err := cfg.validate(); err != nil {
		return err
	}

	ids := make([]uint32, cfg.nodes)
	nodes := make([]*node, cfg.nodes)
	pubs := make(map[uint32]kyber.Point, cfg.nodes)
	for i := range cfg.nodes {
		ids[i] = uint32(i + 1)
		n := &node{id: ids[i], key: quorum.GenerateKey(), pubs: pubs}
		switch {
		case i >= cfg.nodes-cfg.crashed:
			n.role = crashed
		case i >= cfg.nodes-cfg.crashed-cfg.faulty:
			n.role = faulty
		}
		pubs[n.id] = n.key.Public
		nodes[i] = n
	}
	verifier, err := quorum.NewEqualVerifier(ids)
	if err != nil {
		return err
	}
	if alive := uint64(cfg.nodes - cfg.faulty - cfg.crashed); alive < verifier.QuorumPower() {
		pterm.Warning.Printfln("only %d honest nodes, a certificate needs %d signatures; waiting for the deadline", alive, verifier.QuorumPower())
	}

	mgr := transport.NewManager(
		transport.WithDialOptions(grpc.WithTransportCredentials(insecure.NewCredentials())),
		transport.WithSelfID(uint32(cfg.nodes+1)),
		transport.WithLogger(logger),
	)
	var g errgroup.Group
	systems := make([]*transport.System, 0, cfg.nodes)
	defer func() {
		for _, sys := range systems {
			if err := sys.Stop(); err != nil {
				logger.Error("rbcdemo: stopping node", slog.Any("err", err))
			}
		}
		if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("rbcdemo: serving", slog.Any("err", err))
		}
		if err := mgr.Close(); err != nil {
			logger.Error("rbcdemo: closing connections", slog.Any("err", err))
		}
	}()

	spinner := startStep("Starting nodes...")
	for _, n := range nodes {
		n.verifier = verifier
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			spinner.Fail(err)
			return err
		}
		addr := lis.Addr().String()
		if n.role == crashed {
			// keep the address but refuse connections
			if err := lis.Close(); err != nil {
				spinner.Fail(err)
				return err
			}
		} else {
			sys := transport.NewSystem(lis, n.handle, transport.WithServerLogger(logger))
			systems = append(systems, sys)
			g.Go(sys.Serve)
		}
		if _, err := mgr.AddNode(n.id, addr); err != nil {
			spinner.Fail(err)
			return err
		}
	}
	spinner.Success(fmt.Sprintf("Started %d nodes", cfg.nodes))

	rb := rbc.New(mgr.NodeIDs(), transport.NewSender(mgr),
		rbc.WithRPCTimeout(cfg.rpcTimeout),
		rbc.WithLogger(logger),
	)

	// Phase 1: certify the payload.
	spinner = startStep("Collecting signatures...")
	start := time.Now()
	signatures := quorum.NewSignatureAggregator(verifier, pubs, cfg.payload)
	decodeSig := func(res proto.Message) ([]byte, error) {
		sig, err := rbc.As[*wrapperspb.BytesValue](res)
		if err != nil {
			return nil, err
		}
		return sig.GetValue(), nil
	}
	cert, err := rbc.Broadcast(ctx, rb, proto.Message(wrapperspb.Bytes(cfg.payload)), decodeSig, signatures)
	if err != nil {
		spinner.Fail(err)
		return err
	}
	spinner.Success(fmt.Sprintf("Certificate with %d signatures after %v", len(cert.Signers), time.Since(start).Round(time.Millisecond)))

	// Phase 2: deliver the certificate.
	data, err := cert.MarshalBinary()
	if err != nil {
		return err
	}
	mode := quorum.All
	if cfg.crashed > 0 {
		mode = quorum.Quorum
	}
	spinner = startStep("Delivering certificate...")
	start = time.Now()
	acks, err := rbc.Broadcast(ctx, rb, proto.Message(wrapperspb.String(string(data))),
		rbc.As[*wrapperspb.BoolValue, proto.Message],
		quorum.NewWeightedAckSet[uint32, *wrapperspb.BoolValue](verifier, mode))
	if err != nil {
		spinner.Fail(err)
		return err
	}
	spinner.Success(fmt.Sprintf("Certificate acknowledged by %d nodes after %v", len(acks), time.Since(start).Round(time.Millisecond)))

	return render(nodes, mgr, cert, acks)
}

func render(nodes []*node, mgr *transport.Manager, cert *quorum.Certificate[uint32], acks map[uint32]*wrapperspb.BoolValue) error {
	signers := make(map[uint32]bool, len(cert.Signers))
	for _, id := range cert.Signers {
		signers[id] = true
	}
	data := pterm.TableData{{"Node", "Address", "Role", "Sign requests", "In certificate", "Acknowledged"}}
	for _, n := range nodes {
		tn, _ := mgr.Node(n.id)
		n.mu.Lock()
		sigs := n.sigs
		n.mu.Unlock()
		data = append(data, []string{
			strconv.FormatUint(uint64(n.id), 10),
			tn.Address(),
			n.role.String(),
			strconv.Itoa(sigs),
			yesNo(signers[n.id]),
			yesNo(acks[n.id] != nil),
		})
	}
	pterm.Println()
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}

func yesNo(b bool) string {
	if b {
		return pterm.Green("yes")
	}
	return pterm.Gray("no")
}
