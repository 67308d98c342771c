package node

import (
	"errors"
	"sync"

	"github.com/cipherword/cipherword/access"
	"github.com/cipherword/cipherword/core/types"
	"github.com/cipherword/cipherword/crypto"
	"github.com/cipherword/cipherword/fhe"
	"github.com/cipherword/cipherword/game"
	"github.com/cipherword/cipherword/history"
	"github.com/cipherword/cipherword/ledger"
	"github.com/cipherword/cipherword/log"
	"github.com/cipherword/cipherword/oracle"
	"github.com/cipherword/cipherword/rpc"
)

// servicePrincipal derives a stable address for an internal service role from
// its name. These principals hold decryption rights on handles the service
// operates on (prize pools, balances) but correspond to no external key.
func servicePrincipal(name string) types.Address {
	h := crypto.Keccak256([]byte("cipherword/service/" + name))
	var addr types.Address
	addr.SetBytes(h[12:])
	return addr
}

// Node assembles the full cipherword service: homomorphic engine, in-process
// decryption oracle, callback dispatcher, encrypted ledger, game engine,
// event bus, history journal and the RPC read surface.
type Node struct {
	cfg    Config
	logger *log.Logger

	bus    *EventBus
	fhe    *fhe.MemoryEngine
	oracle *oracle.MemoryOracle
	disp   *oracle.Dispatcher
	ledger *ledger.Ledger
	engine *game.Engine
	store  *history.Store
	rpcSrv *rpc.Server

	mu          sync.Mutex
	started     bool
	stopped     bool
	journalDone chan struct{}
	journalSub  *Subscription
}

// New builds a Node from cfg. Nothing starts listening or journaling until
// Start.
func New(cfg Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := log.New(log.ParseLevel(cfg.LogLevel))
	log.SetDefault(logger)

	engine := fhe.NewMemoryEngine()

	orc, err := oracle.NewMemoryOracle(engine)
	if err != nil {
		return nil, err
	}
	disp := oracle.NewDispatcher(orc.Address())

	ledgerSelf := servicePrincipal("ledger")
	engineSelf := servicePrincipal("engine")

	led := ledger.NewLedger(engine, orc, disp, ledgerSelf, cfg.Game.RequestDeadline)
	acl := access.NewController(cfg.OwnerAddress(), cfg.RelayerAddress(), cfg.RelayerDelay)
	eng := game.NewEngine(cfg.Game, engine, led, orc, disp, acl, engineSelf)

	bus := NewEventBus(cfg.EventBuffer)
	led.SetEmitter(bus)
	eng.SetEmitter(bus)

	// Oracle results re-enter the engine as independent invocations; the
	// queue inside MemoryOracle guarantees the sink never runs inside the
	// call that issued the request.
	orc.SetSink(func(res oracle.Result) {
		if err := eng.HandleDecryptionResult(res); err != nil {
			logger.Module("node").Warn("callback rejected", "request", res.ID, "err", err)
		}
	})

	n := &Node{
		cfg:    cfg,
		logger: logger.Module("node"),
		bus:    bus,
		fhe:    engine,
		oracle: orc,
		disp:   disp,
		ledger: led,
		engine: eng,
	}
	n.rpcSrv = rpc.NewServer(eng, nil, n.subscribeStream)
	return n, nil
}

// Start opens the history journal, begins journaling bus events and starts
// the RPC server.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return errors.New("node: already started")
	}

	store, err := history.Open(n.cfg.ResolvePath("history"))
	if err != nil {
		return err
	}
	n.store = store
	n.rpcSrv = rpc.NewServer(n.engine, store, n.subscribeStream)

	n.journalSub = n.bus.Subscribe()
	n.journalDone = make(chan struct{})
	go n.journalLoop(n.journalSub, n.journalDone)

	if err := n.rpcSrv.Start(n.cfg.RPCAddr()); err != nil {
		n.journalSub.Unsubscribe()
		<-n.journalDone
		store.Close()
		return err
	}

	n.started = true
	n.logger.Info("node started", "name", n.cfg.Name, "rpc", n.rpcSrv.Addr())
	return nil
}

// Stop shuts everything down in reverse order of Start. Safe to call once.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.started || n.stopped {
		return nil
	}
	n.stopped = true

	var firstErr error
	if err := n.rpcSrv.Stop(); err != nil {
		firstErr = err
	}
	n.bus.Close()
	if n.journalDone != nil {
		<-n.journalDone
	}
	if n.store != nil {
		if err := n.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	n.logger.Info("node stopped", "name", n.cfg.Name)
	return firstErr
}

// journalLoop appends every bus event to the history store and records a
// round summary when a round completes.
func (n *Node) journalLoop(sub *Subscription, done chan struct{}) {
	defer close(done)
	for ev := range sub.Chan() {
		if _, err := n.store.Append(ev.Type, ev.Timestamp, ev.Data); err != nil {
			n.logger.Warn("journal append failed", "type", ev.Type, "err", err)
		}
		if ev.Type == types.EventGameEnded {
			n.recordSummary(ev)
		}
	}
}

func (n *Node) recordSummary(ev Event) {
	data, ok := ev.Data.(types.GameEndedEvent)
	if !ok {
		return
	}
	view, err := n.engine.RoundInfo(data.RoundID)
	if err != nil {
		return
	}
	sum := history.RoundSummary{
		RoundID:        view.ID,
		RoomID:         view.RoomID,
		WordLength:     view.WordLength,
		QualifiedCount: len(view.Qualified),
		Winner:         data.Winner,
		CompletedAt:    data.Timestamp,
	}
	if err := n.store.PutRoundSummary(sum); err != nil {
		n.logger.Warn("round summary write failed", "round", view.ID, "err", err)
	}
}

// subscribeStream adapts the event bus to the RPC websocket feed.
func (n *Node) subscribeStream() (<-chan rpc.StreamEvent, func()) {
	sub := n.bus.Subscribe()
	out := make(chan rpc.StreamEvent, n.cfg.EventBuffer)
	go func() {
		defer close(out)
		for ev := range sub.Chan() {
			select {
			case out <- rpc.StreamEvent{Type: ev.Type, Data: ev.Data, Timestamp: ev.Timestamp}:
			default:
				// Slow feed consumer; drop rather than stall the pump.
			}
		}
	}()
	return out, sub.Unsubscribe
}

// Engine returns the game engine. The relayer process drives mutations
// through it directly.
func (n *Node) Engine() *game.Engine { return n.engine }

// Ledger returns the encrypted balance ledger.
func (n *Node) Ledger() *ledger.Ledger { return n.ledger }

// Oracle returns the in-process decryption oracle. Tests and the relayer
// drive delivery through it.
func (n *Node) Oracle() *oracle.MemoryOracle { return n.oracle }

// Bus returns the event bus.
func (n *Node) Bus() *EventBus { return n.bus }

// History returns the journal, or nil before Start.
func (n *Node) History() *history.Store {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.store
}

// RPCAddr returns the bound RPC address once started.
func (n *Node) RPCAddr() string { return n.rpcSrv.Addr() }
