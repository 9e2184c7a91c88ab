package registry

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownAsset marks lookups for asset IDs that were never minted.
	ErrUnknownAsset = errors.New("registry: asset not minted")
	// ErrAlreadyMinted is returned when minting an asset ID a second time.
	ErrAlreadyMinted = errors.New("registry: asset already minted")
	// ErrNotOwner is returned when a transfer names a sender that does not
	// hold the asset.
	ErrNotOwner = errors.New("registry: sender does not own asset")

	errNilStore = errors.New("registry: storage not configured")
)

// storage abstracts the subset of state manager functionality required by the
// ownership registry.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

const assetKeyPrefix = "registry/asset/"

func assetKey(assetID uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", assetKeyPrefix, assetID))
}

type ownershipRecord struct {
	Owner    [20]byte `json:"owner"`
	MintedAt int64    `json:"mintedAt"`
	Version  uint64   `json:"version"`
}

// Registry is the authoritative record of which address holds each asset ID.
// The marketplace ledger caches the owner for display; this registry decides
// authorization and every ownership mutation touches both in the same step.
type Registry struct {
	store storage
	nowFn func() int64
}

// New constructs a registry bound to the supplied storage backend.
func New(store storage) *Registry {
	return &Registry{
		store: store,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the wall clock, primarily used in tests.
func (r *Registry) SetNowFunc(now func() int64) {
	if r == nil {
		return
	}
	if now == nil {
		r.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	r.nowFn = now
}

func (r *Registry) now() int64 {
	if r == nil || r.nowFn == nil {
		return time.Now().Unix()
	}
	return r.nowFn()
}

// Mint records the initial owner of a fresh asset ID.
func (r *Registry) Mint(assetID uint64, owner [20]byte) error {
	if r == nil || r.store == nil {
		return errNilStore
	}
	existing := new(ownershipRecord)
	ok, err := r.store.KVGet(assetKey(assetID), existing)
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyMinted
	}
	record := &ownershipRecord{Owner: owner, MintedAt: r.now(), Version: 1}
	return r.store.KVPut(assetKey(assetID), record)
}

// Transfer moves the asset from its current holder to the recipient. The
// sender must match the recorded owner exactly.
func (r *Registry) Transfer(from, to [20]byte, assetID uint64) error {
	if r == nil || r.store == nil {
		return errNilStore
	}
	record := new(ownershipRecord)
	ok, err := r.store.KVGet(assetKey(assetID), record)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownAsset
	}
	if record.Owner != from {
		return ErrNotOwner
	}
	record.Owner = to
	record.Version++
	return r.store.KVPut(assetKey(assetID), record)
}

// OwnerOf returns the recorded holder of the asset ID.
func (r *Registry) OwnerOf(assetID uint64) ([20]byte, error) {
	var zero [20]byte
	if r == nil || r.store == nil {
		return zero, errNilStore
	}
	record := new(ownershipRecord)
	ok, err := r.store.KVGet(assetKey(assetID), record)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, ErrUnknownAsset
	}
	return record.Owner, nil
}

// Exists reports whether the asset ID has been minted.
func (r *Registry) Exists(assetID uint64) (bool, error) {
	if r == nil || r.store == nil {
		return false, errNilStore
	}
	return r.store.KVGet(assetKey(assetID), nil)
}
