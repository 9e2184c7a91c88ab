package market

import (
	"errors"
	"math/big"
	"testing"
)

func newTestSettlement(t *testing.T) (*Settlement, *Engine, *mockState, *fakeRegistry, *eventSink) {
	t.Helper()
	engine, state, reg, sink := newTestEngine()
	return NewSettlement(engine), engine, state, reg, sink
}

func mustCreate(t *testing.T, engine *Engine, owner [20]byte, name string, priceMinor int64, royaltyPercent uint32, royaltyRecipient [20]byte, pointer string) *AssetRecord {
	t.Helper()
	record, err := engine.Create(owner, ListingInput{
		Name:             name,
		PriceMinor:       price(priceMinor),
		RoyaltyPercent:   royaltyPercent,
		RoyaltyRecipient: royaltyRecipient,
		MetadataPointer:  pointer,
	})
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return record
}

func TestPurchaseSettlesExactly(t *testing.T) {
	settlement, engine, state, reg, sink := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	royaltyRecipient := addr(3)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, royaltyRecipient, "p")
	state.fund(buyer, 1000)

	receipt, err := settlement.Purchase(buyer, record.ID, price(100))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if receipt.Seller != seller || receipt.Buyer != buyer {
		t.Fatalf("receipt parties wrong: %+v", receipt)
	}
	if receipt.RoyaltyAmount.Cmp(price(10)) != 0 || receipt.SellerProceeds.Cmp(price(90)) != 0 {
		t.Fatalf("split wrong: royalty=%s seller=%s", receipt.RoyaltyAmount, receipt.SellerProceeds)
	}
	if got := state.balance(buyer); got.Cmp(price(900)) != 0 {
		t.Fatalf("buyer balance = %s, want 900", got)
	}
	if got := state.balance(seller); got.Cmp(price(90)) != 0 {
		t.Fatalf("seller balance = %s, want 90", got)
	}
	if got := state.balance(royaltyRecipient); got.Cmp(price(10)) != 0 {
		t.Fatalf("royalty balance = %s, want 10", got)
	}
	// Disbursements sum to the payment exactly.
	total := new(big.Int).Add(receipt.SellerProceeds, receipt.RoyaltyAmount)
	total.Add(total, receipt.CommissionAmount)
	if total.Cmp(receipt.Payment) != 0 {
		t.Fatalf("value created or destroyed: %s != %s", total, receipt.Payment)
	}

	updated, err := engine.Asset(record.ID)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if updated.Owner != buyer || updated.Listed {
		t.Fatalf("ledger not updated: %+v", updated)
	}
	if got, _ := reg.OwnerOf(record.ID); got != buyer {
		t.Fatalf("registry owner not transferred")
	}
	ids, _ := state.MarketOwnerList(buyer)
	if len(ids) != 1 || ids[0] != record.ID {
		t.Fatalf("owner index not updated on sale: %v", ids)
	}

	for _, eventType := range []string{EventTypeRoyaltyPaid, EventTypeBought, EventTypeTransferred} {
		if n := len(sink.ofType(eventType)); n != 1 {
			t.Fatalf("expected exactly one %s event, got %d", eventType, n)
		}
	}
	bought := sink.ofType(EventTypeBought)[0]
	if bought.Attributes["payment"] != "100" {
		t.Fatalf("bought event payment wrong: %v", bought.Attributes)
	}
}

func TestPurchaseOverpaymentScalesFees(t *testing.T) {
	settlement, engine, state, _, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 1000)

	receipt, err := settlement.Purchase(buyer, record.ID, price(150))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// Fees are a flat percentage of the payment actually sent, so the
	// overpayment raises both the royalty and the seller residual.
	if receipt.RoyaltyAmount.Cmp(price(15)) != 0 {
		t.Fatalf("royalty = %s, want 15", receipt.RoyaltyAmount)
	}
	if receipt.SellerProceeds.Cmp(price(135)) != 0 {
		t.Fatalf("seller proceeds = %s, want 135", receipt.SellerProceeds)
	}
}

func TestPurchaseCommissionVariant(t *testing.T) {
	settlement, engine, state, _, sink := newTestSettlement(t)
	operator := addr(7)
	if err := settlement.SetCommission(operator, 5); err != nil {
		t.Fatalf("set commission: %v", err)
	}
	seller := addr(1)
	buyer := addr(2)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 100)

	receipt, err := settlement.Purchase(buyer, record.ID, price(100))
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if receipt.CommissionAmount.Cmp(price(5)) != 0 {
		t.Fatalf("commission = %s, want 5", receipt.CommissionAmount)
	}
	if receipt.SellerProceeds.Cmp(price(85)) != 0 {
		t.Fatalf("seller proceeds = %s, want 85", receipt.SellerProceeds)
	}
	if got := state.balance(operator); got.Cmp(price(5)) != 0 {
		t.Fatalf("operator balance = %s, want 5", got)
	}
	if n := len(sink.ofType(EventTypeCommissionPaid)); n != 1 {
		t.Fatalf("expected one commission event, got %d", n)
	}
}

func TestCommissionRangeValidated(t *testing.T) {
	settlement, _, _, _, _ := newTestSettlement(t)
	if err := settlement.SetCommission(addr(7), 101); !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("expected ErrInvalidCommission, got %v", err)
	}
}

func TestPurchasePreconditionOrder(t *testing.T) {
	settlement, engine, state, _, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 1000)
	state.fund(seller, 0)

	if _, err := settlement.Purchase(buyer, 99, price(100)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := settlement.Purchase(seller, record.ID, price(100)); !errors.Is(err, ErrSelfPurchase) {
		t.Fatalf("expected ErrSelfPurchase, got %v", err)
	}
	if _, err := settlement.Purchase(buyer, record.ID, price(99)); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if got := state.balance(buyer); got.Cmp(price(1000)) != 0 {
		t.Fatalf("failed purchase moved funds: %s", got)
	}
}

func TestPurchaseAlreadySoldLeavesStateUnchanged(t *testing.T) {
	settlement, engine, state, reg, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	late := addr(4)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 100)
	state.fund(late, 500)

	if _, err := settlement.Purchase(buyer, record.ID, price(100)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := settlement.Purchase(late, record.ID, price(100)); !errors.Is(err, ErrAlreadySold) {
		t.Fatalf("expected ErrAlreadySold, got %v", err)
	}
	if got := state.balance(late); got.Cmp(price(500)) != 0 {
		t.Fatalf("failed purchase moved funds: %s", got)
	}
	if got, _ := reg.OwnerOf(record.ID); got != buyer {
		t.Fatalf("ownership changed by failed purchase")
	}
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	settlement, engine, state, _, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 50)
	if _, err := settlement.Purchase(buyer, record.ID, price(100)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestBulkPurchaseSplitsPerItem(t *testing.T) {
	settlement, engine, state, reg, sink := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	royaltyRecipient := addr(3)
	records, err := engine.BulkCreate(seller,
		[]string{"a", "b"},
		[]string{"", ""},
		[]*big.Int{price(100), price(200)},
		[][]string{nil, nil},
		[]uint32{10, 20},
		[][20]byte{royaltyRecipient, royaltyRecipient},
		[]string{"p1", "p2"},
	)
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	state.fund(buyer, 300)

	receipts, err := settlement.BulkPurchase(buyer, []uint64{records[0].ID, records[1].ID}, price(300))
	if err != nil {
		t.Fatalf("bulk purchase: %v", err)
	}
	if len(receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(receipts))
	}
	// Royalty basis is each item's own price: 10% of 100 plus 20% of 200.
	if got := state.balance(royaltyRecipient); got.Cmp(price(50)) != 0 {
		t.Fatalf("royalty total = %s, want 50", got)
	}
	if got := state.balance(buyer); got.Cmp(price(0)) != 0 {
		t.Fatalf("buyer balance = %s, want 0", got)
	}
	if got := state.balance(seller); got.Cmp(price(250)) != 0 {
		t.Fatalf("seller balance = %s, want 250", got)
	}
	for _, record := range records {
		if got, _ := reg.OwnerOf(record.ID); got != buyer {
			t.Fatalf("asset %d not transferred", record.ID)
		}
	}
	transferred := sink.ofType(EventTypeTransferred)
	if len(transferred) != 2 {
		t.Fatalf("expected 2 transferred events, got %d", len(transferred))
	}
	if transferred[0].Attributes["assetId"] != "1" || transferred[1].Attributes["assetId"] != "2" {
		t.Fatalf("transferred events out of asset-ID order: %v %v",
			transferred[0].Attributes, transferred[1].Attributes)
	}
}

func TestBulkPurchaseOverpaymentStaysWithBuyer(t *testing.T) {
	settlement, engine, state, _, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 500)

	receipts, err := settlement.BulkPurchase(buyer, []uint64{record.ID}, price(400))
	if err != nil {
		t.Fatalf("bulk purchase: %v", err)
	}
	// The aggregate payment only authorizes the batch; each item settles at
	// its listed price and the surplus never leaves the buyer.
	if receipts[0].Payment.Cmp(price(100)) != 0 {
		t.Fatalf("item settled at %s, want listed price 100", receipts[0].Payment)
	}
	if got := state.balance(buyer); got.Cmp(price(400)) != 0 {
		t.Fatalf("buyer balance = %s, want 400", got)
	}
}

func TestBulkPurchaseAllOrNothing(t *testing.T) {
	settlement, engine, state, reg, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	records, err := engine.BulkCreate(seller,
		[]string{"a", "b"},
		[]string{"", ""},
		[]*big.Int{price(100), price(200)},
		[][]string{nil, nil},
		[]uint32{10, 20},
		[][20]byte{addr(3), addr(3)},
		[]string{"p1", "p2"},
	)
	if err != nil {
		t.Fatalf("bulk create: %v", err)
	}
	state.fund(buyer, 1000)

	if _, err := settlement.BulkPurchase(buyer, []uint64{records[0].ID, records[1].ID}, price(299)); !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	for _, record := range records {
		if got, _ := reg.OwnerOf(record.ID); got != seller {
			t.Fatalf("asset %d changed owner in failed batch", record.ID)
		}
	}
	if got := state.balance(buyer); got.Cmp(price(1000)) != 0 {
		t.Fatalf("funds moved in failed batch: %s", got)
	}
}

func TestBulkPurchaseRejectsMixedBatch(t *testing.T) {
	settlement, engine, state, _, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 1000)

	if _, err := settlement.BulkPurchase(buyer, []uint64{record.ID, 99}, price(1000)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown batch member, got %v", err)
	}
	if _, err := settlement.BulkPurchase(buyer, []uint64{record.ID, record.ID}, price(1000)); !errors.Is(err, ErrAlreadySold) {
		t.Fatalf("expected ErrAlreadySold for duplicate batch member, got %v", err)
	}
	if got := state.balance(buyer); got.Cmp(price(1000)) != 0 {
		t.Fatalf("funds moved in failed batch: %s", got)
	}
}

func TestRelistAfterSaleMakesPurchasableAgain(t *testing.T) {
	settlement, engine, state, _, sink := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	next := addr(4)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 100)
	state.fund(next, 500)

	if _, err := settlement.Purchase(buyer, record.ID, price(100)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	listedBefore := len(sink.ofType(EventTypeListed))
	relisted, err := engine.Relist(buyer, record.ID, price(500))
	if err != nil {
		t.Fatalf("relist: %v", err)
	}
	if !relisted.Listed || relisted.PriceMinor.Cmp(price(500)) != 0 {
		t.Fatalf("relist did not refresh listing: %+v", relisted)
	}
	if len(sink.ofType(EventTypeListed)) != listedBefore+1 {
		t.Fatalf("relist did not emit a fresh listed event")
	}
	receipt, err := settlement.Purchase(next, record.ID, price(500))
	if err != nil {
		t.Fatalf("repurchase after relist: %v", err)
	}
	// Royalty keeps accruing to the original recipient on secondary sales.
	if receipt.RoyaltyAmount.Cmp(price(50)) != 0 {
		t.Fatalf("secondary royalty = %s, want 50", receipt.RoyaltyAmount)
	}
}

func TestReentrantPurchaseRejected(t *testing.T) {
	settlement, engine, state, _, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	first := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p1")
	second := mustCreate(t, engine, seller, "Quasar", 100, 10, addr(3), "p2")
	state.fund(buyer, 1000)

	var nestedErr error
	nested := false
	// Simulate a recipient reacting to its credit by calling back into the
	// settlement engine mid-operation.
	state.onPutAccount = func(addrBytes []byte) {
		if nested || string(addrBytes) != string(seller[:]) {
			return
		}
		nested = true
		_, nestedErr = settlement.Purchase(buyer, second.ID, price(100))
	}

	if _, err := settlement.Purchase(buyer, first.ID, price(100)); err != nil {
		t.Fatalf("outer purchase: %v", err)
	}
	if !nested {
		t.Fatalf("nested call never triggered")
	}
	if !errors.Is(nestedErr, ErrReentrancy) {
		t.Fatalf("expected ErrReentrancy from nested call, got %v", nestedErr)
	}
	// The nested rejection must not have touched the second asset.
	untouched, err := engine.Asset(second.ID)
	if err != nil {
		t.Fatalf("asset: %v", err)
	}
	if !untouched.Listed || untouched.Owner != seller {
		t.Fatalf("nested call mutated state: %+v", untouched)
	}
}

func TestReentrantListingRejected(t *testing.T) {
	settlement, engine, state, _, _ := newTestSettlement(t)
	seller := addr(1)
	buyer := addr(2)
	record := mustCreate(t, engine, seller, "Nebula", 100, 10, addr(3), "p")
	state.fund(buyer, 100)

	var nestedErr error
	nested := false
	state.onPutAccount = func(addrBytes []byte) {
		if nested || string(addrBytes) != string(seller[:]) {
			return
		}
		nested = true
		_, nestedErr = engine.Relist(buyer, record.ID, price(1))
	}
	if _, err := settlement.Purchase(buyer, record.ID, price(100)); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !nested || !errors.Is(nestedErr, ErrReentrancy) {
		t.Fatalf("expected nested relist rejection, got %v", nestedErr)
	}
}
