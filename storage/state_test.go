package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tokenmart/core/types"
	"tokenmart/native/market"
)

func TestAssetRoundTrip(t *testing.T) {
	manager := NewManager(NewMemDB())

	_, ok, err := manager.MarketAssetGet(1)
	require.NoError(t, err)
	require.False(t, ok)

	var owner [20]byte
	owner[0] = 0xAA
	record := &market.AssetRecord{
		ID:              1,
		Owner:           owner,
		Name:            "Nebula",
		Description:     "first print",
		PriceMinor:      big.NewInt(100),
		Listed:          true,
		MetadataPointer: "ipfs://nebula",
		CreatedAt:       1_700_000_000,
	}
	require.NoError(t, manager.MarketAssetPut(record))

	loaded, ok, err := manager.MarketAssetGet(1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, record.Name, loaded.Name)
	require.Zero(t, loaded.PriceMinor.Cmp(record.PriceMinor))
	require.Equal(t, record.Owner, loaded.Owner)
}

func TestCounterRoundTrip(t *testing.T) {
	manager := NewManager(NewMemDB())

	counter, err := manager.MarketCounterGet()
	require.NoError(t, err)
	require.Zero(t, counter)

	require.NoError(t, manager.MarketCounterPut(7))
	counter, err = manager.MarketCounterGet()
	require.NoError(t, err)
	require.Equal(t, uint64(7), counter)
}

func TestMetadataDedup(t *testing.T) {
	manager := NewManager(NewMemDB())

	seen, err := manager.MarketMetadataSeen("ipfs://nebula")
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, manager.MarketMetadataMark("ipfs://nebula"))

	seen, err = manager.MarketMetadataSeen("ipfs://nebula")
	require.NoError(t, err)
	require.True(t, seen)

	// Surrounding whitespace is not a distinct pointer.
	seen, err = manager.MarketMetadataSeen("  ipfs://nebula  ")
	require.NoError(t, err)
	require.True(t, seen)
}

func TestKeywordIndexAppends(t *testing.T) {
	manager := NewManager(NewMemDB())

	require.NoError(t, manager.MarketKeywordAppend("Art", 1))
	require.NoError(t, manager.MarketKeywordAppend("art", 2))

	ids, err := manager.MarketKeywordList("ART")
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2}, ids)

	ids, err = manager.MarketKeywordList("unknown")
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestOwnerIndexAppends(t *testing.T) {
	manager := NewManager(NewMemDB())

	var owner, other [20]byte
	owner[0] = 0xAA
	other[0] = 0xBB

	require.NoError(t, manager.MarketOwnerAppend(owner, 1))
	require.NoError(t, manager.MarketOwnerAppend(owner, 3))

	ids, err := manager.MarketOwnerList(owner)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 3}, ids)

	ids, err = manager.MarketOwnerList(other)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestAccountAbsenceIsNil(t *testing.T) {
	manager := NewManager(NewMemDB())

	var addr [20]byte
	addr[0] = 0xCC

	account, err := manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Nil(t, account)

	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Nonce: 2, BalanceMinor: big.NewInt(500)}))

	account, err = manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Equal(t, uint64(2), account.Nonce)
	require.Zero(t, account.BalanceMinor.Cmp(big.NewInt(500)))
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")

	db, err := NewLevelDB(path)
	require.NoError(t, err)
	manager := NewManager(db)
	require.NoError(t, manager.MarketCounterPut(9))
	db.Close()

	db, err = NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	manager = NewManager(db)
	counter, err := manager.MarketCounterGet()
	require.NoError(t, err)
	require.Equal(t, uint64(9), counter)
}
