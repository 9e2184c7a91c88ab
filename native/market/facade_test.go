package market

import (
	"errors"
	"math/big"
	"testing"
)

type countingMetrics struct {
	listings  int
	purchases int
	volume    *big.Int
	failures  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{volume: big.NewInt(0), failures: make(map[string]int)}
}

func (c *countingMetrics) RecordListing() { c.listings++ }

func (c *countingMetrics) RecordPurchase(valueMinor *big.Int) {
	c.purchases++
	if valueMinor != nil {
		c.volume.Add(c.volume, valueMinor)
	}
}

func (c *countingMetrics) RecordFailure(op string) { c.failures[op]++ }

func newTestMarketplace(t *testing.T, owners ...[20]byte) (*Marketplace, *mockState) {
	t.Helper()
	engine, state, _, _ := newTestEngine()
	settlement := NewSettlement(engine)
	facade := NewMarketplace(engine, settlement, NewStaticAuthorizer(owners...))
	return facade, state
}

func TestFacadeRejectsUnauthorizedCreate(t *testing.T) {
	authorizedOwner := addr(1)
	stranger := addr(2)
	facade, _ := newTestMarketplace(t, authorizedOwner)
	metrics := newCountingMetrics()
	facade.SetMetrics(metrics)

	in := ListingInput{Name: "Nebula", PriceMinor: price(100), RoyaltyRecipient: addr(9), MetadataPointer: "p"}
	if _, err := facade.Create(stranger, in); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if metrics.failures["create"] != 1 {
		t.Fatalf("failure not recorded: %v", metrics.failures)
	}
	if _, err := facade.Create(authorizedOwner, in); err != nil {
		t.Fatalf("authorized create: %v", err)
	}
	if metrics.listings != 1 {
		t.Fatalf("listing not recorded: %d", metrics.listings)
	}
}

func TestFacadeBulkCreateAuthorization(t *testing.T) {
	authorizedOwner := addr(1)
	facade, _ := newTestMarketplace(t, authorizedOwner)
	_, err := facade.BulkCreate(addr(2),
		[]string{"a"}, []string{""}, []*big.Int{price(1)},
		[][]string{nil}, []uint32{0}, [][20]byte{addr(9)}, []string{"p"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestFacadePurchaseFlowAndMetrics(t *testing.T) {
	owner := addr(1)
	buyer := addr(2)
	facade, state := newTestMarketplace(t, owner)
	metrics := newCountingMetrics()
	facade.SetMetrics(metrics)

	record, err := facade.Create(owner, ListingInput{
		Name: "Nebula", PriceMinor: price(100), RoyaltyPercent: 10,
		RoyaltyRecipient: addr(9), MetadataPointer: "p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	state.fund(buyer, 100)
	receipt, err := facade.Purchase(buyer, record.ID, price(100))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if receipt.ID == "" {
		t.Fatalf("receipt missing identifier")
	}
	if metrics.purchases != 1 || metrics.volume.Cmp(price(100)) != 0 {
		t.Fatalf("purchase metrics wrong: %d %s", metrics.purchases, metrics.volume)
	}
	listed, err := facade.ListedAssets()
	if err != nil || len(listed) != 0 {
		t.Fatalf("sold asset still enumerated: %d err=%v", len(listed), err)
	}
}

func TestFacadeMetadata(t *testing.T) {
	owner := addr(1)
	facade, _ := newTestMarketplace(t, owner)
	record, err := facade.Create(owner, ListingInput{
		Name: "Nebula", Description: "first print", PriceMinor: price(100),
		RoyaltyRecipient: addr(9), MetadataPointer: "ipfs://nebula",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	plain, err := facade.Metadata(record.ID, false)
	if err != nil || plain != "ipfs://nebula" {
		t.Fatalf("plain metadata wrong: %q err=%v", plain, err)
	}
	embedded, err := facade.Metadata(record.ID, true)
	if err != nil {
		t.Fatalf("embedded metadata: %v", err)
	}
	if embedded == plain || embedded == "" {
		t.Fatalf("embedded payload not rendered: %q", embedded)
	}
	if _, err := facade.Metadata(99, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
