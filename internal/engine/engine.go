package engine

import (
	"fmt"
	"math/big"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"poolbridge/internal/ledger"
	"poolbridge/internal/model"
	"poolbridge/internal/queue"
	"poolbridge/internal/registry"
	"poolbridge/internal/storage"
	"poolbridge/internal/token"
	"poolbridge/internal/vault"
)

// PoolToken is the engine's view of the pool token: transfers plus the
// allowance grant issued to a fresh vault at registration.
type PoolToken interface {
	token.Transferrer
	Approve(owner, spender common.Address, amount *big.Int)
}

// VaultFactory builds the custody vault bound to a new pool.
type VaultFactory func(id model.PoolID) vault.Vault

// Config carries the engine's fixed parameters.
type Config struct {
	Owner          common.Address
	Self           common.Address
	Venue          common.Address
	FeeSink        common.Address
	OperatorPayout common.Address
	WithdrawFeeBps uint32
	ProcessingFee  *big.Int
	EventBuffer    int
}

// Engine is the settlement-queue state machine. It owns the registry, the
// ledger, and the queue; every balance mutation funnels through its
// serialized entry points.
type Engine struct {
	mu     sync.Mutex
	holder atomic.Int64

	cfg Config

	poolToken PoolToken
	gasToken  token.Transferrer
	newVault  VaultFactory

	registry *registry.Registry
	ledger   *ledger.Ledger
	queue    *queue.Queue
	vaults   map[model.PoolID]vault.Vault
	paused   model.PauseFlags

	sink   storage.Sink
	events chan model.QueueEvent
	logger *zap.Logger
	nowFn  func() time.Time
}

// New builds an Engine with its dependencies.
func New(cfg Config, poolToken PoolToken, gasToken token.Transferrer, newVault VaultFactory, sink storage.Sink, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = storage.NopSink{}
	}
	if cfg.ProcessingFee == nil {
		cfg.ProcessingFee = big.NewInt(0)
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	return &Engine{
		cfg:       cfg,
		poolToken: poolToken,
		gasToken:  gasToken,
		newVault:  newVault,
		registry:  registry.New(),
		ledger:    ledger.New(),
		queue:     queue.New(),
		vaults:    make(map[model.PoolID]vault.Vault),
		sink:      sink,
		events:    make(chan model.QueueEvent, cfg.EventBuffer),
		logger:    logger,
		nowFn:     time.Now,
	}
}

// WithClock overrides the engine clock for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nowFn = clock
}

// Events exposes queue-state notifications. Events are dropped rather than
// blocking a settlement when no consumer keeps up.
func (e *Engine) Events() <-chan model.QueueEvent {
	return e.events
}

// Submitted returns the count of requests ever queued.
func (e *Engine) Submitted() uint64 { return e.queue.Submitted() }

// Processed returns the sequence of the last consumed request.
func (e *Engine) Processed() uint64 { return e.queue.Processed() }

// PeekHead returns the next request to settle, or false when drained.
func (e *Engine) PeekHead() (model.Spot, bool) { return e.queue.PeekHead() }

// Spot returns a consumed or pending queue entry by sequence.
func (e *Engine) Spot(sequence uint64) (model.Spot, error) { return e.queue.Get(sequence) }

// Position returns a copy of an account's ledger entry.
func (e *Engine) Position(pool model.PoolID, account common.Address) *model.Position {
	return e.ledger.Position(pool, account)
}

// Pool returns a copy of a pool record.
func (e *Engine) Pool(id model.PoolID) (model.Pool, bool) { return e.registry.Get(id) }

// Pools returns copies of all registered pools.
func (e *Engine) Pools() []model.Pool { return e.registry.List() }

// Positions returns a ledger snapshot for persistence.
func (e *Engine) Positions() map[model.PoolID]map[common.Address]*model.Position {
	return e.ledger.Entries()
}

// Spots returns a queue snapshot for persistence.
func (e *Engine) Spots() []model.Spot { return e.queue.Snapshot() }

// Paused returns the current pause flags.
func (e *Engine) Paused() model.PauseFlags {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// LedgerTotals returns ledger-wide active, pending, and fee sums.
func (e *Engine) LedgerTotals() (active, pending, fee *big.Int) {
	return e.ledger.Totals()
}

// enter takes the engine's serialization lock. Concurrent callers block here
// and run in some serial order; only a re-entry from the goroutine already
// holding the lock (a vault or token sub-call calling back into a mutating
// entry point) is rejected, since letting it block would deadlock.
func (e *Engine) enter() error {
	if e.holder.Load() == goroutineID() {
		return ErrReentrancy
	}
	e.mu.Lock()
	e.holder.Store(goroutineID())
	return nil
}

func (e *Engine) exit() {
	e.holder.Store(0)
	e.mu.Unlock()
}

// goroutineID parses the current goroutine's id from its stack header
// ("goroutine 123 [running]:"). Ids are never zero, so zero marks the lock
// as unheld.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := buf[:n]
	header = header[len("goroutine "):]
	for i, c := range header {
		if c < '0' || c > '9' {
			header = header[:i]
			break
		}
	}
	id, err := strconv.ParseInt(string(header), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("unparseable goroutine header: %q", buf[:n]))
	}
	return id
}

func (e *Engine) journal(record model.SettlementRecord) {
	record.ID = uuid.NewString()
	record.Timestamp = e.nowFn().UTC().Format(time.RFC3339Nano)
	record.Submitted = e.queue.Submitted()
	record.Processed = e.queue.Processed()
	if err := e.sink.PutRecords([]model.SettlementRecord{record}); err != nil {
		e.logger.Warn("journal append failed", zap.Error(err), zap.String("kind", record.Kind))
	}
}

func (e *Engine) emit(kind model.QueueEventKind, spot model.Spot) {
	event := model.QueueEvent{
		Kind:      kind,
		Spot:      spot,
		Submitted: e.queue.Submitted(),
		Processed: e.queue.Processed(),
	}
	select {
	case e.events <- event:
	default:
	}
}
