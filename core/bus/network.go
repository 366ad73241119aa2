package bus

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"stakepool/core/events"
	"stakepool/core/types"
	"stakepool/crypto"
)

var (
	ErrUnknownAccount      = errors.New("bus: unknown account")
	ErrAccountExists       = errors.New("bus: account already deployed")
	ErrNoFactory           = errors.New("bus: no factory for state init kind")
	ErrInsufficientBalance = errors.New("bus: insufficient balance for outbound messages")
	ErrValueBelowFee       = errors.New("bus: attached value does not cover the forward fee")
	ErrMultipleCarry       = errors.New("bus: more than one message carries the remaining balance")
	ErrNoCode              = errors.New("bus: destination has no deployed account")
	ErrStepLimit           = errors.New("bus: delivery step limit reached")
)

const defaultMaxSteps = 100_000

// Factory builds an account from the state init carried by a deploying
// message.
type Factory func(addr crypto.Address, init *types.StateInit) (types.Account, error)

// Store persists committed accounts.
type Store interface {
	Save(info types.AccountInfo, acc types.Account) error
	Delete(addr crypto.Address) error
}

type entry struct {
	acc     types.Account
	kind    string
	balance *big.Int
}

// Network is an in-process message bus. Each account handles one message at
// a time; all delivery happens on the goroutine that calls Run.
type Network struct {
	mu        sync.Mutex
	runID     uuid.UUID
	now       uint64
	chain     types.ChainConfig
	accounts  map[crypto.Address]*entry
	factories map[string]Factory
	queue     *queue
	scheduler Scheduler
	trace     []Transaction
	events    []*types.Event
	collected *big.Int
	maxSteps  int

	logger  *slog.Logger
	tracer  trace.Tracer
	emitter events.Emitter
	store   Store
}

type Option func(*Network)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		if logger != nil {
			n.logger = logger
		}
	}
}

func WithScheduler(s Scheduler) Option {
	return func(n *Network) {
		if s != nil {
			n.scheduler = s
		}
	}
}

func WithEmitter(e events.Emitter) Option {
	return func(n *Network) {
		if e != nil {
			n.emitter = e
		}
	}
}

func WithStore(s Store) Option {
	return func(n *Network) { n.store = s }
}

func WithMaxSteps(steps int) Option {
	return func(n *Network) {
		if steps > 0 {
			n.maxSteps = steps
		}
	}
}

// New creates an empty network running the given chain configuration.
func New(chain types.ChainConfig, opts ...Option) *Network {
	n := &Network{
		runID:     uuid.New(),
		chain:     chain.Clone(),
		accounts:  make(map[crypto.Address]*entry),
		factories: make(map[string]Factory),
		queue:     newQueue(),
		scheduler: FIFO{},
		collected: new(big.Int),
		maxSteps:  defaultMaxSteps,
		logger:    slog.Default(),
		tracer:    otel.Tracer("stakepool/core/bus"),
		emitter:   events.NoopEmitter{},
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("run", n.runID.String())
	return n
}

// RunID identifies this network instance in logs and traces.
func (n *Network) RunID() uuid.UUID { return n.runID }

// Register installs the factory used for state inits of the given kind.
func (n *Network) Register(kind string, f Factory) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.factories[kind] = f
}

// Deploy installs an account directly, outside of message delivery. The
// account keeps any balance already sent to its address.
func (n *Network) Deploy(addr crypto.Address, kind string, acc types.Account, balance *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.accounts[addr]
	if ok && e.acc != nil {
		return fmt.Errorf("%w: %s", ErrAccountExists, addr)
	}
	if !ok {
		e = &entry{balance: new(big.Int)}
		n.accounts[addr] = e
	}
	e.acc = acc
	e.kind = kind
	if balance != nil {
		e.balance.Add(e.balance, balance)
	}
	n.persist(addr, e)
	return nil
}

// Fund credits an address out of thin air. Meant for genesis and tests.
func (n *Network) Fund(addr crypto.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.accounts[addr]
	if !ok {
		e = &entry{balance: new(big.Int)}
		n.accounts[addr] = e
	}
	e.balance.Add(e.balance, amount)
}

func (n *Network) Now() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.now
}

func (n *Network) SetNow(now uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now = now
}

func (n *Network) Advance(seconds uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.now += seconds
}

// Chain returns a copy of the current chain configuration.
func (n *Network) Chain() types.ChainConfig {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.chain.Clone()
}

// SetValidatorSet publishes a new validator set.
func (n *Network) SetValidatorSet(vs types.ValidatorSet) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chain.Validators = vs
}

// Balance returns the balance held at addr.
func (n *Network) Balance(addr crypto.Address) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if e, ok := n.accounts[addr]; ok {
		return new(big.Int).Set(e.balance)
	}
	return new(big.Int)
}

// Info describes the address without exposing its state.
func (n *Network) Info(addr crypto.Address) types.AccountInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.info(addr)
}

func (n *Network) info(addr crypto.Address) types.AccountInfo {
	info := types.AccountInfo{Address: addr, Balance: new(big.Int)}
	e, ok := n.accounts[addr]
	if !ok {
		return info
	}
	info.Balance.Set(e.balance)
	info.Kind = e.kind
	info.Status = types.AccountUninit
	if e.acc != nil {
		info.Status = types.AccountActive
	}
	return info
}

// Account returns a clone of the committed account at addr.
func (n *Network) Account(addr crypto.Address) (types.Account, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.accounts[addr]
	if !ok || e.acc == nil {
		return nil, false
	}
	return e.acc.Clone(), true
}

// Lookup returns a typed clone of the committed account at addr.
func Lookup[T types.Account](n *Network, addr crypto.Address) (T, bool) {
	var zero T
	acc, ok := n.Account(addr)
	if !ok {
		return zero, false
	}
	typed, ok := acc.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Update runs fn against a clone of the account at addr and commits the
// clone when fn succeeds. Used by off-bus drivers such as the election
// authority.
func (n *Network) Update(addr crypto.Address, fn func(types.Account) error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	e, ok := n.accounts[addr]
	if !ok || e.acc == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, addr)
	}
	clone := e.acc.Clone()
	if err := fn(clone); err != nil {
		return err
	}
	e.acc = clone
	n.persist(addr, e)
	return nil
}

// Transactions returns the delivery trace so far.
func (n *Network) Transactions() []Transaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Transaction(nil), n.trace...)
}

// Events returns every committed event so far.
func (n *Network) Events() []*types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*types.Event(nil), n.events...)
}

// CollectedFees returns the forward fees charged so far.
func (n *Network) CollectedFees() *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return new(big.Int).Set(n.collected)
}

// Pending reports the number of queued messages.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.queue.len()
}

func (n *Network) persist(addr crypto.Address, e *entry) {
	if n.store == nil || e == nil || e.acc == nil {
		return
	}
	if err := n.store.Save(n.info(addr), e.acc); err != nil {
		n.logger.Warn("persist account", "account", addr.String(), "error", err)
	}
}
