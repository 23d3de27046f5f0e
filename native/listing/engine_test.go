package listing

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	coreerrors "listingchain/core/errors"
	"listingchain/core/events"
	"listingchain/native/escrow"
)

type entryKey struct {
	listing common.Address
	index   uint64
}

type mockState struct {
	fixed     map[common.Address]*FixedListing
	versioned map[common.Address]*VersionedListing
	purchases map[entryKey]*Purchase
	versions  map[entryKey]*Version
	escrows   map[common.Address]*escrow.Escrow
	balances  map[common.Address]*uint256.Int
}

func newMockState() *mockState {
	return &mockState{
		fixed:     make(map[common.Address]*FixedListing),
		versioned: make(map[common.Address]*VersionedListing),
		purchases: make(map[entryKey]*Purchase),
		versions:  make(map[entryKey]*Version),
		escrows:   make(map[common.Address]*escrow.Escrow),
		balances:  make(map[common.Address]*uint256.Int),
	}
}

func (m *mockState) FixedListingGet(addr common.Address) (*FixedListing, bool, error) {
	l, ok := m.fixed[addr]
	return l.Clone(), ok, nil
}

func (m *mockState) FixedListingPut(l *FixedListing) error {
	m.fixed[l.Address] = l.Clone()
	return nil
}

func (m *mockState) VersionedListingGet(addr common.Address) (*VersionedListing, bool, error) {
	l, ok := m.versioned[addr]
	return l.Clone(), ok, nil
}

func (m *mockState) VersionedListingPut(l *VersionedListing) error {
	m.versioned[l.Address] = l.Clone()
	return nil
}

func (m *mockState) ListingPurchaseGet(listing common.Address, index uint64) (*Purchase, bool, error) {
	p, ok := m.purchases[entryKey{listing, index}]
	return p.Clone(), ok, nil
}

func (m *mockState) ListingPurchasePut(listing common.Address, index uint64, p *Purchase) error {
	m.purchases[entryKey{listing, index}] = p.Clone()
	return nil
}

func (m *mockState) ListingVersionGet(listing common.Address, index uint64) (*Version, bool, error) {
	v, ok := m.versions[entryKey{listing, index}]
	if !ok {
		return nil, false, nil
	}
	out := *v
	return &out, true, nil
}

func (m *mockState) ListingVersionPut(listing common.Address, index uint64, v *Version) error {
	out := *v
	m.versions[entryKey{listing, index}] = &out
	return nil
}

func (m *mockState) EscrowGet(addr common.Address) (*escrow.Escrow, bool, error) {
	e, ok := m.escrows[addr]
	return e.Clone(), ok, nil
}

func (m *mockState) EscrowPut(e *escrow.Escrow) error {
	m.escrows[e.Address] = e.Clone()
	return nil
}

func (m *mockState) BalanceGet(addr common.Address) (*uint256.Int, error) {
	if bal, ok := m.balances[addr]; ok {
		return new(uint256.Int).Set(bal), nil
	}
	return new(uint256.Int), nil
}

func (m *mockState) BalancePut(addr common.Address, amount *uint256.Int) error {
	m.balances[addr] = new(uint256.Int).Set(amount)
	return nil
}

// pay credits the listing the way the ledger forwards a call's attached value.
func (m *mockState) pay(listing common.Address, amount uint64) *uint256.Int {
	bal, _ := m.BalanceGet(listing)
	m.balances[listing] = bal.Add(bal, uint256.NewInt(amount))
	return uint256.NewInt(amount)
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) { c.events = append(c.events, evt) }

var (
	registryAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	sellerAddr   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	buyerAddr    = common.HexToAddress("0x3000000000000000000000000000000000000003")
	otherAddr    = common.HexToAddress("0x4000000000000000000000000000000000000004")
	contentA     = common.HexToHash("0xaa")
	contentB     = common.HexToHash("0xbb")
)

// tester is satisfied by *testing.T and *rapid.T.
type tester interface {
	Helper()
	Fatalf(format string, args ...any)
}

type fixture struct {
	engine  *Engine
	escrows *escrow.Engine
	state   *mockState
	emitter *captureEmitter
	now     uint64
}

func newFixture(t tester) *fixture {
	t.Helper()
	f := &fixture{state: newMockState(), emitter: &captureEmitter{}, now: 1_000}
	clock := func() uint64 { return f.now }
	f.escrows = escrow.NewEngine()
	f.escrows.SetState(f.state)
	f.escrows.SetNowFunc(clock)
	f.escrows.SetEmitter(f.emitter)
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetEscrowEngine(f.escrows)
	f.engine.SetEmitter(f.emitter)
	f.engine.SetNowFunc(clock)
	return f
}

func (f *fixture) createFixed(t tester, units uint64) *FixedListing {
	t.Helper()
	l, err := f.engine.CreateFixed(FixedParams{
		Registry:    registryAddr,
		Nonce:       uint64(len(f.state.fixed) + len(f.state.versioned)),
		Seller:      sellerAddr,
		ContentHash: contentA,
		Price:       uint256.NewInt(33),
		Units:       units,
	})
	if err != nil {
		t.Fatalf("create fixed: %v", err)
	}
	return l
}

func (f *fixture) createVersioned(t tester) *VersionedListing {
	t.Helper()
	l, err := f.engine.CreateVersioned(VersionedParams{
		Registry:    registryAddr,
		Nonce:       uint64(len(f.state.fixed) + len(f.state.versioned)),
		Seller:      sellerAddr,
		ContentHash: contentA,
	})
	if err != nil {
		t.Fatalf("create versioned: %v", err)
	}
	return l
}

func TestCreateFixedSetsExpiration(t *testing.T) {
	f := newFixture(t)
	l := f.createFixed(t, 5)
	if l.Address != Address(registryAddr, 0) {
		t.Fatalf("unexpected address %s", l.Address.Hex())
	}
	if l.Created != 1_000 || l.Expiration != 1_000+DefaultDuration {
		t.Fatalf("unexpected timestamps created=%d expiration=%d", l.Created, l.Expiration)
	}
	if l.Status(f.now) != StatusActive {
		t.Fatalf("expected active, got %s", l.Status(f.now))
	}
}

func TestCreateFixedRejectsInvalidParams(t *testing.T) {
	f := newFixture(t)
	cases := []FixedParams{
		{Registry: registryAddr, Seller: sellerAddr, Price: uint256.NewInt(1)},
		{Registry: registryAddr, Seller: sellerAddr, Units: 1},
		{Registry: registryAddr, Price: uint256.NewInt(1), Units: 1},
	}
	for i, params := range cases {
		if _, err := f.engine.CreateFixed(params); !errors.Is(err, coreerrors.ErrInvalidArgument) {
			t.Fatalf("case %d: expected invalid argument, got %v", i, err)
		}
	}
}

func TestCreateRejectsReusedAddress(t *testing.T) {
	f := newFixture(t)
	f.createFixed(t, 1)
	_, err := f.engine.CreateVersioned(VersionedParams{Registry: registryAddr, Nonce: 0, Seller: sellerAddr})
	if !errors.Is(err, errAddressInUse) {
		t.Fatalf("expected address in use, got %v", err)
	}
}

func TestListingDurationOverride(t *testing.T) {
	f := newFixture(t)
	f.engine.SetListingDuration(10)
	l := f.createFixed(t, 1)
	if l.Expiration != 1_010 {
		t.Fatalf("expected expiration 1010, got %d", l.Expiration)
	}
	f.engine.SetListingDuration(0)
	if f.engine.ListingDuration() != DefaultDuration {
		t.Fatalf("zero duration should restore the default")
	}
}

func TestBuyOpensEscrow(t *testing.T) {
	f := newFixture(t)
	l := f.createFixed(t, 5)

	p, err := f.engine.Buy(buyerAddr, l.Address, 3, f.state.pay(l.Address, 6))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if p.Escrow != escrow.Address(l.Address, 0) || p.Units != 3 || p.Value.Uint64() != 6 {
		t.Fatalf("unexpected purchase %+v", p)
	}
	stored, err := f.engine.Fixed(l.Address)
	if err != nil {
		t.Fatalf("fixed: %v", err)
	}
	if stored.UnitsAvailable != 2 || stored.Purchases != 1 {
		t.Fatalf("unexpected listing after buy: %+v", stored)
	}
	esc := f.state.escrows[p.Escrow]
	if esc == nil || esc.Buyer != buyerAddr || esc.Seller != sellerAddr || esc.HeldValue.Uint64() != 6 {
		t.Fatalf("unexpected escrow %+v", esc)
	}
	if got := f.state.balances[p.Escrow].Uint64(); got != 6 {
		t.Fatalf("expected escrow balance 6, got %d", got)
	}
	if len(f.emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.emitter.events))
	}
	payload := events.Payload(f.emitter.events[0])
	if payload.Type != EventTypeListingPurchased || payload.Attributes["escrow"] != p.Escrow.Hex() || payload.Attributes["units"] != "3" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	got, err := f.engine.Purchase(l.Address, 0)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if got.Escrow != p.Escrow {
		t.Fatalf("purchase entry mismatch")
	}
}

func TestBuyRejectsOversell(t *testing.T) {
	f := newFixture(t)
	l := f.createFixed(t, 5)
	if _, err := f.engine.Buy(buyerAddr, l.Address, 3, f.state.pay(l.Address, 6)); err != nil {
		t.Fatalf("first buy: %v", err)
	}
	_, err := f.engine.Buy(otherAddr, l.Address, 3, nil)
	if !errors.Is(err, coreerrors.ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory, got %v", err)
	}
	stored, _ := f.engine.Fixed(l.Address)
	if stored.UnitsAvailable != 2 || stored.Purchases != 1 {
		t.Fatalf("rejected buy mutated listing: %+v", stored)
	}
	if _, err := f.engine.Buy(otherAddr, l.Address, 0, nil); !errors.Is(err, coreerrors.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for zero units, got %v", err)
	}
}

func TestBuyAfterExpiration(t *testing.T) {
	f := newFixture(t)
	l := f.createFixed(t, 5)
	f.now = l.Expiration

	// Expiry wins over the inventory check.
	for _, units := range []uint64{1, 10} {
		if _, err := f.engine.Buy(buyerAddr, l.Address, units, nil); !errors.Is(err, coreerrors.ErrExpired) {
			t.Fatalf("buy %d: expected expired, got %v", units, err)
		}
	}
	stored, _ := f.engine.Fixed(l.Address)
	if stored.UnitsAvailable != 5 {
		t.Fatalf("expired buy changed inventory to %d", stored.UnitsAvailable)
	}
	if stored.Status(f.now) != StatusExpired {
		t.Fatalf("expected expired status, got %s", stored.Status(f.now))
	}
}

func TestCloseRequiresSeller(t *testing.T) {
	f := newFixture(t)
	l := f.createFixed(t, 5)
	p, err := f.engine.Buy(buyerAddr, l.Address, 1, f.state.pay(l.Address, 33))
	if err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := f.engine.Close(buyerAddr, l.Address); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	stored, _ := f.engine.Fixed(l.Address)
	if stored.UnitsAvailable != 4 {
		t.Fatalf("non-seller close changed units to %d", stored.UnitsAvailable)
	}

	closed, err := f.engine.Close(sellerAddr, l.Address)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.UnitsAvailable != 0 || closed.Status(f.now) != StatusClosed {
		t.Fatalf("unexpected closed listing %+v", closed)
	}
	if f.state.escrows[p.Escrow].Status != escrow.StatusOpen {
		t.Fatalf("close touched an existing escrow")
	}
	if _, err := f.engine.Buy(buyerAddr, l.Address, 1, nil); !errors.Is(err, coreerrors.ErrInsufficientInventory) {
		t.Fatalf("expected insufficient inventory after close, got %v", err)
	}
	// Closing twice is allowed and keeps zero units.
	if _, err := f.engine.Close(sellerAddr, l.Address); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestPurchaseIndexOutOfRange(t *testing.T) {
	f := newFixture(t)
	l := f.createFixed(t, 5)
	if _, err := f.engine.Purchase(l.Address, 0); !errors.Is(err, coreerrors.ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range, got %v", err)
	}
	if _, err := f.engine.Purchase(otherAddr, 0); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSettleAndRefundPurchase(t *testing.T) {
	f := newFixture(t)
	l := f.createFixed(t, 5)
	if _, err := f.engine.Buy(buyerAddr, l.Address, 1, f.state.pay(l.Address, 33)); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := f.engine.Buy(otherAddr, l.Address, 1, f.state.pay(l.Address, 33)); err != nil {
		t.Fatalf("buy: %v", err)
	}

	if _, err := f.engine.SettlePurchase(sellerAddr, l.Address, 0); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("seller settle: expected unauthorized, got %v", err)
	}
	if _, err := f.engine.RefundPurchase(buyerAddr, l.Address, 0); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("buyer refund: expected unauthorized, got %v", err)
	}

	settled, err := f.engine.SettlePurchase(buyerAddr, l.Address, 0)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != escrow.StatusSettled || f.state.balances[sellerAddr].Uint64() != 33 {
		t.Fatalf("settle did not pay seller")
	}
	if _, err := f.engine.RefundPurchase(sellerAddr, l.Address, 0); !errors.Is(err, coreerrors.ErrAlreadyFinalized) {
		t.Fatalf("expected already finalized, got %v", err)
	}

	if _, err := f.engine.RefundPurchase(sellerAddr, l.Address, 1); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got := f.state.balances[otherAddr].Uint64(); got != 33 {
		t.Fatalf("expected refund of 33, got %d", got)
	}
}

func TestVersionedUpdate(t *testing.T) {
	f := newFixture(t)
	l := f.createVersioned(t)

	if _, err := f.engine.Update(buyerAddr, l.Address, 0, contentB); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	// Authorization is checked before the version.
	if _, err := f.engine.Update(buyerAddr, l.Address, 7, contentB); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for stale non-seller, got %v", err)
	}
	if _, err := f.engine.Update(sellerAddr, l.Address, 1, contentB); !errors.Is(err, coreerrors.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	f.now = 2_000
	if _, err := f.engine.Update(sellerAddr, l.Address, 0, contentB); err != nil {
		t.Fatalf("update: %v", err)
	}
	current, err := f.engine.CurrentVersion(l.Address)
	if err != nil || current != 1 {
		t.Fatalf("expected current version 1, got %d (%v)", current, err)
	}
	hash, err := f.engine.ContentHash(l.Address)
	if err != nil || hash != contentB {
		t.Fatalf("unexpected content hash %s (%v)", hash.Hex(), err)
	}
	v0, err := f.engine.Data(l.Address, 0)
	if err != nil || v0.ContentHash != contentA || v0.Timestamp != 1_000 {
		t.Fatalf("unexpected version 0 %+v (%v)", v0, err)
	}
	v1, err := f.engine.Data(l.Address, 1)
	if err != nil || v1.Timestamp != 2_000 {
		t.Fatalf("unexpected version 1 %+v (%v)", v1, err)
	}
	if _, err := f.engine.Data(l.Address, 2); !errors.Is(err, coreerrors.ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range, got %v", err)
	}
	if _, err := f.engine.Update(sellerAddr, l.Address, 0, contentA); !errors.Is(err, coreerrors.ErrVersionConflict) {
		t.Fatalf("expected stale update to conflict, got %v", err)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType() != EventTypeListingUpdated {
		t.Fatalf("expected one update event, got %+v", f.emitter.events)
	}
}

func TestRequestSnapshotsVersion(t *testing.T) {
	f := newFixture(t)
	l := f.createVersioned(t)
	details := common.HexToHash("0xbeef")

	p, err := f.engine.Request(buyerAddr, l.Address, details, f.state.pay(l.Address, 10))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := f.engine.Update(sellerAddr, l.Address, 0, contentB); err != nil {
		t.Fatalf("update: %v", err)
	}

	esc := f.state.escrows[p.Escrow]
	if esc.Version != 0 || esc.ContentHash != details || esc.HeldValue.Uint64() != 10 {
		t.Fatalf("escrow did not keep its snapshot: %+v", esc)
	}
	stored, err := f.engine.Purchase(l.Address, 0)
	if err != nil || stored.Version != 0 {
		t.Fatalf("unexpected request entry %+v (%v)", stored, err)
	}

	p2, err := f.engine.Request(otherAddr, l.Address, details, nil)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if p2.Version != 1 {
		t.Fatalf("expected second request against version 1, got %d", p2.Version)
	}
	n, err := f.engine.PurchasesLength(l.Address)
	if err != nil || n != 2 {
		t.Fatalf("expected two requests, got %d (%v)", n, err)
	}
	payload := events.Payload(f.emitter.events[0])
	if payload.Type != EventTypeListingRequested || payload.Attributes["version"] != "0" {
		t.Fatalf("unexpected request event %+v", payload)
	}
}

func TestKindOf(t *testing.T) {
	f := newFixture(t)
	fixed := f.createFixed(t, 1)
	versioned := f.createVersioned(t)
	if k, err := f.engine.KindOf(fixed.Address); err != nil || k != KindFixed {
		t.Fatalf("expected fixed, got %s (%v)", k, err)
	}
	if k, err := f.engine.KindOf(versioned.Address); err != nil || k != KindVersioned {
		t.Fatalf("expected versioned, got %s (%v)", k, err)
	}
	if _, err := f.engine.Buy(buyerAddr, versioned.Address, 1, nil); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("buy on versioned listing: expected not found, got %v", err)
	}
}
