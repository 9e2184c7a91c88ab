package market

import (
	"math/big"
	"strings"
	"time"

	"tokenmart/core/events"
	"tokenmart/core/types"
	nativecommon "tokenmart/native/common"
)

const marketModuleName = "market"

type engineState interface {
	MarketAssetGet(id uint64) (*AssetRecord, bool, error)
	MarketAssetPut(record *AssetRecord) error
	MarketCounterGet() (uint64, error)
	MarketCounterPut(counter uint64) error
	MarketMetadataSeen(pointer string) (bool, error)
	MarketMetadataMark(pointer string) error
	MarketKeywordAppend(keyword string, id uint64) error
	MarketKeywordList(keyword string) ([]uint64, error)
	MarketOwnerAppend(owner [20]byte, id uint64) error
	MarketOwnerList(owner [20]byte) ([]uint64, error)
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// OwnershipRegistry is the external authority for who holds each asset ID.
// The ledger caches the owner; the registry decides, and both are updated in
// the same atomic step.
type OwnershipRegistry interface {
	Mint(assetID uint64, owner [20]byte) error
	Transfer(from, to [20]byte, assetID uint64) error
	OwnerOf(assetID uint64) ([20]byte, error)
	Exists(assetID uint64) (bool, error)
}

// Engine owns the asset ledger, the keyword and owner indices, and the
// monotonic ID counter. It implements listing creation and price management;
// settlement composes it (see Settlement).
type Engine struct {
	state    engineState
	registry OwnershipRegistry
	emitter  events.Emitter
	nowFn    func() int64
	pauses   nativecommon.PauseView

	// busy is the reentrancy exclusion flag shared by every state-mutating
	// entry point, including settlement. Operations run to completion as a
	// single unit of work; the only hazard is a nested call triggered by a
	// recipient reacting to a disbursement.
	busy bool
}

// NewEngine constructs a listing engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRegistry configures the ownership registry collaborator.
func (e *Engine) SetRegistry(registry OwnershipRegistry) { e.registry = registry }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses configures the administrative pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// enter claims the exclusion flag, failing fast when a guarded operation is
// already in progress.
func (e *Engine) enter() error {
	if e.busy {
		return ErrReentrancy
	}
	e.busy = true
	return nil
}

func (e *Engine) leave() { e.busy = false }

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.registry == nil {
		return errNilRegistry
	}
	return nil
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{BalanceMinor: big.NewInt(0)}
	}
	if acc.BalanceMinor == nil {
		acc.BalanceMinor = big.NewInt(0)
	}
	return acc
}

func validListingInput(in ListingInput) error {
	if in.PriceMinor == nil || in.PriceMinor.Sign() <= 0 {
		return ErrInvalidPrice
	}
	if in.RoyaltyPercent > 100 {
		return ErrInvalidRoyalty
	}
	return nil
}

// Create allocates the next asset ID, records the listing, updates both
// indices, and registers initial ownership with the registry. The caller is
// expected to hold the marketplace-owner capability; the facade checks it.
func (e *Engine) Create(owner [20]byte, in ListingInput) (*AssetRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return nil, err
	}
	if err := validListingInput(in); err != nil {
		return nil, err
	}
	pointer := strings.TrimSpace(in.MetadataPointer)
	seen, err := e.state.MarketMetadataSeen(pointer)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, ErrDuplicateMetadata
	}
	return e.applyListing(owner, in, pointer)
}

// BulkCreate behaves as N sequential Create calls over parallel slices, in
// slice order. Every item is validated before any is applied so a failing
// item rejects the whole batch.
func (e *Engine) BulkCreate(owner [20]byte, names, descriptions []string, prices []*big.Int, keywords [][]string, royaltyPercents []uint32, royaltyRecipients [][20]byte, metadataPointers []string) ([]*AssetRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return nil, err
	}
	count := len(names)
	if len(descriptions) != count || len(prices) != count || len(keywords) != count ||
		len(royaltyPercents) != count || len(royaltyRecipients) != count || len(metadataPointers) != count {
		return nil, ErrArityMismatch
	}
	inputs := make([]ListingInput, count)
	batchPointers := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		inputs[i] = ListingInput{
			Name:             names[i],
			Description:      descriptions[i],
			PriceMinor:       prices[i],
			Keywords:         keywords[i],
			RoyaltyPercent:   royaltyPercents[i],
			RoyaltyRecipient: royaltyRecipients[i],
			MetadataPointer:  metadataPointers[i],
		}
		if err := validListingInput(inputs[i]); err != nil {
			return nil, err
		}
		pointer := strings.TrimSpace(inputs[i].MetadataPointer)
		if _, dup := batchPointers[pointer]; dup {
			return nil, ErrDuplicateMetadata
		}
		batchPointers[pointer] = struct{}{}
		seen, err := e.state.MarketMetadataSeen(pointer)
		if err != nil {
			return nil, err
		}
		if seen {
			return nil, ErrDuplicateMetadata
		}
	}
	records := make([]*AssetRecord, 0, count)
	for _, in := range inputs {
		record, err := e.applyListing(owner, in, strings.TrimSpace(in.MetadataPointer))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (e *Engine) applyListing(owner [20]byte, in ListingInput, pointer string) (*AssetRecord, error) {
	counter, err := e.state.MarketCounterGet()
	if err != nil {
		return nil, err
	}
	id := counter + 1
	if err := e.state.MarketCounterPut(id); err != nil {
		return nil, err
	}
	record := &AssetRecord{
		ID:               id,
		Owner:            owner,
		Name:             strings.TrimSpace(in.Name),
		Description:      strings.TrimSpace(in.Description),
		PriceMinor:       new(big.Int).Set(in.PriceMinor),
		Listed:           true,
		RoyaltyPercent:   in.RoyaltyPercent,
		RoyaltyRecipient: in.RoyaltyRecipient,
		MetadataPointer:  pointer,
		CreatedAt:        e.now(),
	}
	if err := e.state.MarketAssetPut(record); err != nil {
		return nil, err
	}
	if err := e.state.MarketMetadataMark(pointer); err != nil {
		return nil, err
	}
	for _, keyword := range in.Keywords {
		trimmed := strings.TrimSpace(keyword)
		if trimmed == "" {
			continue
		}
		if err := e.state.MarketKeywordAppend(trimmed, id); err != nil {
			return nil, err
		}
	}
	if err := e.state.MarketOwnerAppend(owner, id); err != nil {
		return nil, err
	}
	if err := e.registry.Mint(id, owner); err != nil {
		return nil, err
	}
	e.emit(ListedEvent(record))
	return record.Clone(), nil
}

// Relist puts a previously sold asset back on sale at a new price. The caller
// must be the owner as reported by the registry, not the cached ledger owner.
func (e *Engine) Relist(caller [20]byte, assetID uint64, newPrice *big.Int) (*AssetRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return nil, err
	}
	record, err := e.reprice(caller, assetID, newPrice)
	if err != nil {
		return nil, err
	}
	record.Listed = true
	if err := e.state.MarketAssetPut(record); err != nil {
		return nil, err
	}
	e.emit(ListedEvent(record))
	return record.Clone(), nil
}

// SetPrice updates the asking price without touching the sale state.
func (e *Engine) SetPrice(caller [20]byte, assetID uint64, newPrice *big.Int) (*AssetRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()
	if err := nativecommon.Guard(e.pauses, marketModuleName); err != nil {
		return nil, err
	}
	record, err := e.reprice(caller, assetID, newPrice)
	if err != nil {
		return nil, err
	}
	if err := e.state.MarketAssetPut(record); err != nil {
		return nil, err
	}
	return record.Clone(), nil
}

// reprice validates ownership against the registry and applies the new price.
// Callers persist the returned record.
func (e *Engine) reprice(caller [20]byte, assetID uint64, newPrice *big.Int) (*AssetRecord, error) {
	record, ok, err := e.state.MarketAssetGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, ErrNotFound
	}
	registryOwner, err := e.registry.OwnerOf(assetID)
	if err != nil {
		return nil, err
	}
	if caller != registryOwner {
		return nil, ErrUnauthorized
	}
	if newPrice == nil || newPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	// Reconcile a diverged cache while we hold the authoritative answer.
	record.Owner = registryOwner
	record.PriceMinor = new(big.Int).Set(newPrice)
	return record, nil
}

// Asset returns the listing record for the supplied asset ID.
func (e *Engine) Asset(assetID uint64) (*AssetRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	record, ok, err := e.state.MarketAssetGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, ErrNotFound
	}
	return record.Clone(), nil
}

// ListedAssets enumerates every record currently offered for sale. Listing
// volume is expected to stay low-to-moderate, so a linear scan suffices.
func (e *Engine) ListedAssets() ([]*AssetRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	counter, err := e.state.MarketCounterGet()
	if err != nil {
		return nil, err
	}
	listed := make([]*AssetRecord, 0)
	for id := uint64(1); id <= counter; id++ {
		record, ok, err := e.state.MarketAssetGet(id)
		if err != nil {
			return nil, err
		}
		if ok && record != nil && record.Listed {
			listed = append(listed, record.Clone())
		}
	}
	return listed, nil
}

// OwnerAssets returns the asset IDs recorded under the owner index.
func (e *Engine) OwnerAssets(owner [20]byte) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.MarketOwnerList(owner)
}

// OwnerRecords resolves the owner index into full listing records.
func (e *Engine) OwnerRecords(owner [20]byte) ([]*AssetRecord, error) {
	ids, err := e.OwnerAssets(owner)
	if err != nil {
		return nil, err
	}
	records := make([]*AssetRecord, 0, len(ids))
	for _, id := range ids {
		record, ok, err := e.state.MarketAssetGet(id)
		if err != nil {
			return nil, err
		}
		if ok && record != nil {
			records = append(records, record.Clone())
		}
	}
	return records, nil
}

// KeywordAssets returns the asset IDs tagged with the keyword.
func (e *Engine) KeywordAssets(keyword string) ([]uint64, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.MarketKeywordList(keyword)
}
