package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tokenmart/core/types"
	"tokenmart/native/market"
)

var (
	marketCounterKey   = []byte("market/counter")
	marketAssetPrefix  = "market/asset/"
	marketMetaPrefix   = "market/meta/"
	marketKeywordPref  = "market/keyword/"
	marketOwnerPrefix  = "market/owner/"
	accountStatePrefix = "account/"
)

// Manager layers a JSON codec over a raw key-value database and exposes the
// typed accessors the marketplace engines and the ownership registry consume.
type Manager struct {
	db Database
}

// NewManager wraps the supplied database.
func NewManager(db Database) *Manager {
	return &Manager{db: db}
}

// KVGet decodes the value stored under key into out, reporting whether the key
// was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errors.New("storage: manager not configured")
	}
	raw, err := m.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage: decode %q: %w", key, err)
	}
	return true, nil
}

// KVPut encodes value as JSON and stores it under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errors.New("storage: manager not configured")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

func assetKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", marketAssetPrefix, id))
}

// Metadata pointers and keywords are caller-supplied strings; digesting them
// keeps arbitrary input out of the keyspace.
func metadataKey(pointer string) []byte {
	digest := ethcrypto.Keccak256([]byte(strings.TrimSpace(pointer)))
	return []byte(fmt.Sprintf("%s%x", marketMetaPrefix, digest))
}

func keywordKey(keyword string) []byte {
	normalized := strings.ToLower(strings.TrimSpace(keyword))
	digest := ethcrypto.Keccak256([]byte(normalized))
	return []byte(fmt.Sprintf("%s%x", marketKeywordPref, digest))
}

func ownerIndexKey(owner [20]byte) []byte {
	return []byte(fmt.Sprintf("%s%x", marketOwnerPrefix, owner))
}

func accountKey(addr []byte) []byte {
	return []byte(fmt.Sprintf("%s%x", accountStatePrefix, addr))
}

// MarketAssetGet loads the listing record for the supplied asset ID.
func (m *Manager) MarketAssetGet(id uint64) (*market.AssetRecord, bool, error) {
	record := new(market.AssetRecord)
	ok, err := m.KVGet(assetKey(id), record)
	if err != nil || !ok {
		return nil, false, err
	}
	return record, true, nil
}

// MarketAssetPut persists the listing record keyed by its asset ID.
func (m *Manager) MarketAssetPut(record *market.AssetRecord) error {
	if record == nil {
		return nil
	}
	return m.KVPut(assetKey(record.ID), record)
}

// MarketCounterGet returns the highest asset ID assigned so far.
func (m *Manager) MarketCounterGet() (uint64, error) {
	var counter uint64
	if _, err := m.KVGet(marketCounterKey, &counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// MarketCounterPut records the highest assigned asset ID.
func (m *Manager) MarketCounterPut(counter uint64) error {
	return m.KVPut(marketCounterKey, counter)
}

// MarketMetadataSeen reports whether the metadata pointer is already in use.
func (m *Manager) MarketMetadataSeen(pointer string) (bool, error) {
	if m == nil || m.db == nil {
		return false, errors.New("storage: manager not configured")
	}
	return m.db.Has(metadataKey(pointer))
}

// MarketMetadataMark records the metadata pointer as used.
func (m *Manager) MarketMetadataMark(pointer string) error {
	return m.KVPut(metadataKey(pointer), true)
}

// MarketKeywordAppend appends the asset ID to the keyword index.
func (m *Manager) MarketKeywordAppend(keyword string, id uint64) error {
	key := keywordKey(keyword)
	var ids []uint64
	if _, err := m.KVGet(key, &ids); err != nil {
		return err
	}
	return m.KVPut(key, append(ids, id))
}

// MarketKeywordList returns the asset IDs recorded under the keyword.
func (m *Manager) MarketKeywordList(keyword string) ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(keywordKey(keyword), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// MarketOwnerAppend appends the asset ID to the owner index.
func (m *Manager) MarketOwnerAppend(owner [20]byte, id uint64) error {
	key := ownerIndexKey(owner)
	var ids []uint64
	if _, err := m.KVGet(key, &ids); err != nil {
		return err
	}
	return m.KVPut(key, append(ids, id))
}

// MarketOwnerList returns the asset IDs recorded under the owner.
func (m *Manager) MarketOwnerList(owner [20]byte) ([]uint64, error) {
	var ids []uint64
	if _, err := m.KVGet(ownerIndexKey(owner), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetAccount loads the account for the supplied address, returning nil when
// the account has never been funded.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.KVGet(accountKey(addr), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return account, nil
}

// PutAccount persists the account under the supplied address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return nil
	}
	return m.KVPut(accountKey(addr), account)
}
