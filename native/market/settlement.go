package market

import (
	"math/big"

	"github.com/google/uuid"

	nativecommon "tokenmart/native/common"
)

var oneHundred = big.NewInt(100)

// Settlement executes purchases against the listing engine: it validates
// state and funds, flips ownership in the ledger and the registry, and splits
// the payment between seller, royalty recipient, and (when configured) the
// platform operator.
type Settlement struct {
	engine            *Engine
	operator          [20]byte
	commissionPercent uint32
}

// NewSettlement constructs a settlement engine bound to the listing engine.
func NewSettlement(engine *Engine) *Settlement {
	return &Settlement{engine: engine}
}

// SetCommission enables the commission variant: percent of every payment is
// routed to the operator. A zero percent disables the commission path.
func (s *Settlement) SetCommission(operator [20]byte, percent uint32) error {
	if s == nil {
		return errNilEngine
	}
	if percent > 100 {
		return ErrInvalidCommission
	}
	s.operator = operator
	s.commissionPercent = percent
	return nil
}

func (s *Settlement) ready() error {
	if s == nil || s.engine == nil {
		return errNilEngine
	}
	return s.engine.ready()
}

// percentage computes floor(amount * pct / 100).
func percentage(amount *big.Int, pct uint32) *big.Int {
	share := new(big.Int).Mul(amount, big.NewInt(int64(pct)))
	return share.Div(share, oneHundred)
}

// Purchase settles a single sale. Preconditions are checked in a fixed order,
// each with its own failure mode, before any state is touched.
func (s *Settlement) Purchase(buyer [20]byte, assetID uint64, payment *big.Int) (*Receipt, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.engine.enter(); err != nil {
		return nil, err
	}
	defer s.engine.leave()
	if err := nativecommon.Guard(s.engine.pauses, marketModuleName); err != nil {
		return nil, err
	}
	record, err := s.validatePurchase(buyer, assetID)
	if err != nil {
		return nil, err
	}
	if payment == nil || payment.Cmp(record.PriceMinor) < 0 {
		return nil, ErrInsufficientPayment
	}
	buyerAccount, err := s.engine.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	buyerAccount = ensureAccount(buyerAccount)
	if buyerAccount.BalanceMinor.Cmp(payment) < 0 {
		return nil, ErrInsufficientFunds
	}
	buyerAccount.BalanceMinor = new(big.Int).Sub(buyerAccount.BalanceMinor, payment)
	if err := s.engine.state.PutAccount(buyer[:], buyerAccount); err != nil {
		return nil, err
	}
	return s.settle(buyer, record, payment)
}

// BulkPurchase settles a batch of sales all-or-nothing. Pass one validates
// every item and accumulates the aggregate price; a single payment check
// covers the batch. Pass two settles each item with its own listed price as
// the fee basis, so an overpayment never inflates royalties or commission;
// the surplus stays with the buyer.
func (s *Settlement) BulkPurchase(buyer [20]byte, assetIDs []uint64, totalPayment *big.Int) ([]*Receipt, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if err := s.engine.enter(); err != nil {
		return nil, err
	}
	defer s.engine.leave()
	if err := nativecommon.Guard(s.engine.pauses, marketModuleName); err != nil {
		return nil, err
	}
	records := make([]*AssetRecord, 0, len(assetIDs))
	totalPrice := big.NewInt(0)
	requested := make(map[uint64]struct{}, len(assetIDs))
	for _, assetID := range assetIDs {
		if _, dup := requested[assetID]; dup {
			// A repeated ID would be sold by its own earlier batch entry.
			return nil, ErrAlreadySold
		}
		requested[assetID] = struct{}{}
		record, err := s.validatePurchase(buyer, assetID)
		if err != nil {
			return nil, err
		}
		totalPrice.Add(totalPrice, record.PriceMinor)
		records = append(records, record)
	}
	if totalPayment == nil || totalPayment.Cmp(totalPrice) < 0 {
		return nil, ErrInsufficientPayment
	}
	buyerAccount, err := s.engine.state.GetAccount(buyer[:])
	if err != nil {
		return nil, err
	}
	buyerAccount = ensureAccount(buyerAccount)
	if buyerAccount.BalanceMinor.Cmp(totalPrice) < 0 {
		return nil, ErrInsufficientFunds
	}
	buyerAccount.BalanceMinor = new(big.Int).Sub(buyerAccount.BalanceMinor, totalPrice)
	if err := s.engine.state.PutAccount(buyer[:], buyerAccount); err != nil {
		return nil, err
	}
	receipts := make([]*Receipt, 0, len(records))
	for _, record := range records {
		receipt, err := s.settle(buyer, record, record.PriceMinor)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}
	return receipts, nil
}

// validatePurchase runs the shared precondition sequence without mutating
// anything: exists, still listed, buyer is not the owner.
func (s *Settlement) validatePurchase(buyer [20]byte, assetID uint64) (*AssetRecord, error) {
	record, ok, err := s.engine.state.MarketAssetGet(assetID)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, ErrNotFound
	}
	if !record.Listed {
		return nil, ErrAlreadySold
	}
	if record.Owner == buyer {
		return nil, ErrSelfPurchase
	}
	return record, nil
}

// settle performs the checks-effects-interactions sequence for one asset. The
// buyer has already been debited for payment. Ledger state is mutated before
// any disbursement so a reactive recipient observes the sold state.
func (s *Settlement) settle(buyer [20]byte, record *AssetRecord, payment *big.Int) (*Receipt, error) {
	previousOwner := record.Owner

	royaltyAmount := percentage(payment, record.RoyaltyPercent)
	commissionAmount := big.NewInt(0)
	var zeroAddr [20]byte
	commissionEnabled := s.commissionPercent > 0 && s.operator != zeroAddr
	if commissionEnabled {
		commissionAmount = percentage(payment, s.commissionPercent)
	}
	sellerProceeds := new(big.Int).Sub(payment, royaltyAmount)
	sellerProceeds.Sub(sellerProceeds, commissionAmount)

	record.Owner = buyer
	record.Listed = false
	if err := s.engine.state.MarketAssetPut(record); err != nil {
		return nil, err
	}
	if err := s.engine.state.MarketOwnerAppend(buyer, record.ID); err != nil {
		return nil, err
	}
	if err := s.engine.registry.Transfer(previousOwner, buyer, record.ID); err != nil {
		return nil, err
	}

	if err := s.credit(previousOwner, sellerProceeds); err != nil {
		return nil, err
	}
	if royaltyAmount.Sign() > 0 {
		if err := s.credit(record.RoyaltyRecipient, royaltyAmount); err != nil {
			return nil, err
		}
		s.engine.emit(RoyaltyPaidEvent(record.ID, record.RoyaltyRecipient, royaltyAmount.String()))
	}
	if commissionAmount.Sign() > 0 {
		if err := s.credit(s.operator, commissionAmount); err != nil {
			return nil, err
		}
		s.engine.emit(CommissionPaidEvent(record.ID, s.operator, commissionAmount.String()))
	}
	s.engine.emit(BoughtEvent(record.ID, buyer, previousOwner, payment.String()))
	s.engine.emit(TransferredEvent(record.ID, previousOwner, buyer))

	return &Receipt{
		ID:               uuid.NewString(),
		AssetID:          record.ID,
		Buyer:            buyer,
		Seller:           previousOwner,
		Payment:          new(big.Int).Set(payment),
		RoyaltyAmount:    royaltyAmount,
		CommissionAmount: commissionAmount,
		SellerProceeds:   sellerProceeds,
		SettledAt:        s.engine.now(),
	}, nil
}

func (s *Settlement) credit(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	account, err := s.engine.state.GetAccount(addr[:])
	if err != nil {
		return err
	}
	account = ensureAccount(account)
	account.BalanceMinor = new(big.Int).Add(account.BalanceMinor, amount)
	return s.engine.state.PutAccount(addr[:], account)
}
