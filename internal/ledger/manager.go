package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"liquidityZap/internal/tickmath"
)

// DefaultAddress is the singleton manager's well-known address.
var DefaultAddress = common.HexToAddress("0x00000000000000000000000000000000005a4101")

type poolState struct {
	key          PoolKey
	sqrtPriceX96 *big.Int
	tick         int32
	liquidity    *big.Int
}

type positionState struct {
	owner     common.Address
	tickLower int32
	tickUpper int32
	liquidity *big.Int
}

// Manager is the in-memory singleton ledger. It keeps all pools, positions,
// token balances and reserves, and enforces flash accounting: every delta a
// session opens must net to zero before Unlock returns, or the whole session
// is rolled back.
type Manager struct {
	addr common.Address
	log  *zap.Logger

	// gate serializes sessions; it is held for the full Unlock call.
	gate sync.Mutex

	// stateMu guards the maps below for short operations so price reads
	// and session ops issued from inside a callback do not deadlock.
	stateMu   sync.Mutex
	pools     map[common.Hash]*poolState
	positions map[common.Hash]*positionState
	balances  map[Currency]map[common.Address]*big.Int
	reserves  map[Currency]*big.Int
	hooks     map[common.Address]PositionHook
	active    *session
}

func NewManager(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		addr:      DefaultAddress,
		log:       log,
		pools:     make(map[common.Hash]*poolState),
		positions: make(map[common.Hash]*positionState),
		balances:  make(map[Currency]map[common.Address]*big.Int),
		reserves:  make(map[Currency]*big.Int),
		hooks:     make(map[common.Address]PositionHook),
	}
}

func (m *Manager) Address() common.Address {
	return m.addr
}

// RegisterHook binds a hook implementation to the address pools reference.
func (m *Manager) RegisterHook(addr common.Address, h PositionHook) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.hooks[addr] = h
}

// Initialize creates a pool at the given starting price.
func (m *Manager) Initialize(key PoolKey, sqrtPriceX96 *big.Int) (int32, error) {
	if !key.Currency0.Less(key.Currency1) {
		return 0, ErrCurrencyOrder
	}
	if key.Fee > FeeMax {
		return 0, ErrInvalidFee
	}
	if key.TickSpacing <= 0 {
		return 0, fmt.Errorf("%w: tick spacing %d", ErrInvalidTickRange, key.TickSpacing)
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(tickmath.MinSqrtPriceX96) < 0 || sqrtPriceX96.Cmp(tickmath.MaxSqrtPriceX96) > 0 {
		return 0, ErrInvalidSqrtPrice
	}

	tick, err := tickmath.TickAtSqrtPrice(sqrtPriceX96)
	if err != nil {
		return 0, err
	}

	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	id := key.ID()
	if _, ok := m.pools[id]; ok {
		return 0, ErrPoolExists
	}
	m.pools[id] = &poolState{
		key:          key,
		sqrtPriceX96: new(big.Int).Set(sqrtPriceX96),
		tick:         tick,
		liquidity:    big.NewInt(0),
	}

	m.log.Info("pool initialized",
		zap.String("pool", id.Hex()),
		zap.String("currency0", key.Currency0.String()),
		zap.String("currency1", key.Currency1.String()),
		zap.Uint32("fee", key.Fee),
		zap.Int32("tick_spacing", key.TickSpacing),
		zap.Int32("tick", tick),
	)
	return tick, nil
}

// ReadPrice returns a point-in-time price snapshot.
func (m *Manager) ReadPrice(key PoolKey) (PriceState, error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	pool, ok := m.pools[key.ID()]
	if !ok {
		return PriceState{}, ErrPoolNotInitialized
	}
	return PriceState{
		SqrtPriceX96: new(big.Int).Set(pool.sqrtPriceX96),
		Tick:         pool.tick,
	}, nil
}

// Unlock opens the single global session. The gate is the serialization
// primitive: concurrent callers queue here, one session at a time.
func (m *Manager) Unlock(locker common.Address, cb SessionCallback, payload []byte) ([]byte, error) {
	m.gate.Lock()
	defer m.gate.Unlock()

	m.stateMu.Lock()
	if m.active != nil {
		m.stateMu.Unlock()
		return nil, ErrSessionActive
	}
	snap := m.snapshot()
	sess := &session{
		m:      m,
		id:     uuid.New(),
		locker: locker,
		deltas: make(map[Currency]*big.Int),
		synced: make(map[Currency]*big.Int),
	}
	m.active = sess
	m.stateMu.Unlock()

	m.log.Debug("session open", zap.String("session", sess.id.String()), zap.String("locker", locker.Hex()))

	result, err := cb.UnlockCallback(m.addr, sess, payload)

	m.stateMu.Lock()
	sess.closed = true
	m.active = nil

	if err == nil {
		err = sess.checkSettled()
	}
	if err != nil {
		m.restore(snap)
		m.stateMu.Unlock()
		m.log.Debug("session rolled back", zap.String("session", sess.id.String()), zap.Error(err))
		return nil, err
	}
	m.stateMu.Unlock()

	// The zero-sum check passed: the session is committed. Only now do the
	// queued hook notifications go out; settled state cannot be unwound, so
	// a delivery failure is logged and dropped.
	for _, p := range sess.pending {
		if err := p.hook.AfterLiquidityAdded(m.addr, p.key, p.tickLower, p.tickUpper, p.liquidity, p.hookData); err != nil {
			m.log.Warn("hook delivery failed",
				zap.String("session", sess.id.String()),
				zap.String("pool", p.key.ID().Hex()),
				zap.Error(err))
		}
	}

	m.log.Debug("session committed", zap.String("session", sess.id.String()))
	return result, nil
}

// --- bootstrap and inspection helpers (used by the CLI and tests) ---

// MintBalance credits an external balance out of thin air.
func (m *Manager) MintBalance(c Currency, to common.Address, amount *big.Int) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	m.credit(c, to, amount)
}

// BalanceOf returns an external balance.
func (m *Manager) BalanceOf(c Currency, addr common.Address) *big.Int {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if accts, ok := m.balances[c]; ok {
		if b, ok := accts[addr]; ok {
			return new(big.Int).Set(b)
		}
	}
	return big.NewInt(0)
}

// SeedLiquidity provisions a pool with liquidity and backs it with reserves,
// bypassing settlement. Bootstrap only; sessions never call this.
func (m *Manager) SeedLiquidity(key PoolKey, owner common.Address, tickLower, tickUpper int32, liquidity *big.Int) error {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()

	pool, ok := m.pools[key.ID()]
	if !ok {
		return ErrPoolNotInitialized
	}
	if err := validateRange(key, tickLower, tickUpper); err != nil {
		return err
	}

	sqrtA, err := tickmath.SqrtPriceAtTick(tickLower)
	if err != nil {
		return err
	}
	sqrtB, err := tickmath.SqrtPriceAtTick(tickUpper)
	if err != nil {
		return err
	}
	amount0, amount1 := tickmath.AmountsForLiquidity(pool.sqrtPriceX96, sqrtA, sqrtB, liquidity, true)

	pk := positionID(owner, tickLower, tickUpper, common.Hash{})
	pos, ok := m.positions[pk]
	if !ok {
		pos = &positionState{owner: owner, tickLower: tickLower, tickUpper: tickUpper, liquidity: big.NewInt(0)}
		m.positions[pk] = pos
	}
	pos.liquidity.Add(pos.liquidity, liquidity)
	if tickLower <= pool.tick && pool.tick < tickUpper {
		pool.liquidity.Add(pool.liquidity, liquidity)
	}

	m.addReserve(key.Currency0, amount0)
	m.addReserve(key.Currency1, amount1)
	return nil
}

// PoolLiquidity returns a pool's in-range liquidity.
func (m *Manager) PoolLiquidity(key PoolKey) (*big.Int, error) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	pool, ok := m.pools[key.ID()]
	if !ok {
		return nil, ErrPoolNotInitialized
	}
	return new(big.Int).Set(pool.liquidity), nil
}

// PositionLiquidity returns the liquidity of one position.
func (m *Manager) PositionLiquidity(owner common.Address, tickLower, tickUpper int32, salt common.Hash) *big.Int {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if pos, ok := m.positions[positionID(owner, tickLower, tickUpper, salt)]; ok {
		return new(big.Int).Set(pos.liquidity)
	}
	return big.NewInt(0)
}

// Reserve returns the ledger's holdings of a currency.
func (m *Manager) Reserve(c Currency) *big.Int {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	if r, ok := m.reserves[c]; ok {
		return new(big.Int).Set(r)
	}
	return big.NewInt(0)
}

// --- internals ---

func (m *Manager) credit(c Currency, to common.Address, amount *big.Int) {
	accts, ok := m.balances[c]
	if !ok {
		accts = make(map[common.Address]*big.Int)
		m.balances[c] = accts
	}
	b, ok := accts[to]
	if !ok {
		b = big.NewInt(0)
		accts[to] = b
	}
	b.Add(b, amount)
}

func (m *Manager) debit(c Currency, from common.Address, amount *big.Int) error {
	accts, ok := m.balances[c]
	if !ok {
		return fmt.Errorf("%w: %s has no %s", ErrInsufficientBalance, from.Hex(), c)
	}
	b, ok := accts[from]
	if !ok || b.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %v of %s, needs %v", ErrInsufficientBalance, from.Hex(), b, c, amount)
	}
	b.Sub(b, amount)
	return nil
}

func (m *Manager) addReserve(c Currency, amount *big.Int) {
	r, ok := m.reserves[c]
	if !ok {
		r = big.NewInt(0)
		m.reserves[c] = r
	}
	r.Add(r, amount)
}

func (m *Manager) reserve(c Currency) *big.Int {
	if r, ok := m.reserves[c]; ok {
		return r
	}
	r := big.NewInt(0)
	m.reserves[c] = r
	return r
}

var positionDomain = []byte("zap.position.ledger.v1")

func positionID(owner common.Address, tickLower, tickUpper int32, salt common.Hash) common.Hash {
	buf := make([]byte, 0, len(positionDomain)+20+4+4+32)
	buf = append(buf, positionDomain...)
	buf = append(buf, owner.Bytes()...)
	buf = appendInt32(buf, tickLower)
	buf = appendInt32(buf, tickUpper)
	buf = append(buf, salt.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

func appendInt32(buf []byte, v int32) []byte {
	return append(buf, byte(uint32(v)>>24), byte(uint32(v)>>16), byte(uint32(v)>>8), byte(uint32(v)))
}

func validateRange(key PoolKey, tickLower, tickUpper int32) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidTickRange, tickLower, tickUpper)
	}
	if tickLower < tickmath.MinTick || tickUpper > tickmath.MaxTick {
		return fmt.Errorf("%w: [%d, %d) outside tick bounds", ErrInvalidTickRange, tickLower, tickUpper)
	}
	if tickLower%key.TickSpacing != 0 || tickUpper%key.TickSpacing != 0 {
		return fmt.Errorf("%w: [%d, %d) with spacing %d", ErrUnalignedTick, tickLower, tickUpper, key.TickSpacing)
	}
	return nil
}

// managerState is a deep copy used for session rollback.
type managerState struct {
	pools     map[common.Hash]*poolState
	positions map[common.Hash]*positionState
	balances  map[Currency]map[common.Address]*big.Int
	reserves  map[Currency]*big.Int
}

func (m *Manager) snapshot() *managerState {
	st := &managerState{
		pools:     make(map[common.Hash]*poolState, len(m.pools)),
		positions: make(map[common.Hash]*positionState, len(m.positions)),
		balances:  make(map[Currency]map[common.Address]*big.Int, len(m.balances)),
		reserves:  make(map[Currency]*big.Int, len(m.reserves)),
	}
	for id, p := range m.pools {
		st.pools[id] = &poolState{
			key:          p.key,
			sqrtPriceX96: new(big.Int).Set(p.sqrtPriceX96),
			tick:         p.tick,
			liquidity:    new(big.Int).Set(p.liquidity),
		}
	}
	for id, p := range m.positions {
		st.positions[id] = &positionState{
			owner:     p.owner,
			tickLower: p.tickLower,
			tickUpper: p.tickUpper,
			liquidity: new(big.Int).Set(p.liquidity),
		}
	}
	for c, accts := range m.balances {
		cp := make(map[common.Address]*big.Int, len(accts))
		for a, b := range accts {
			cp[a] = new(big.Int).Set(b)
		}
		st.balances[c] = cp
	}
	for c, r := range m.reserves {
		st.reserves[c] = new(big.Int).Set(r)
	}
	return st
}

func (m *Manager) restore(st *managerState) {
	m.pools = st.pools
	m.positions = st.positions
	m.balances = st.balances
	m.reserves = st.reserves
}
