package market

import "math/big"

// AssetRecord is the marketplace-side listing for a unique asset. The record
// is created exactly once, never deleted, and only transitions between the
// listed and sold states through a sale or an owner relist.
type AssetRecord struct {
	ID               uint64   `json:"id"`
	Owner            [20]byte `json:"owner"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	PriceMinor       *big.Int `json:"priceMinor"`
	Listed           bool     `json:"listed"`
	RoyaltyPercent   uint32   `json:"royaltyPercent"`
	RoyaltyRecipient [20]byte `json:"royaltyRecipient"`
	MetadataPointer  string   `json:"metadataPointer"`
	CreatedAt        int64    `json:"createdAt"`
}

// Clone returns a deep copy of the record.
func (a *AssetRecord) Clone() *AssetRecord {
	if a == nil {
		return nil
	}
	clone := *a
	if a.PriceMinor != nil {
		clone.PriceMinor = new(big.Int).Set(a.PriceMinor)
	}
	return &clone
}

// ListingInput carries the caller-supplied fields for a single listing.
type ListingInput struct {
	Name             string
	Description      string
	PriceMinor       *big.Int
	Keywords         []string
	RoyaltyPercent   uint32
	RoyaltyRecipient [20]byte
	MetadataPointer  string
}

// Receipt summarises one settled purchase.
type Receipt struct {
	ID               string   `json:"id"`
	AssetID          uint64   `json:"assetId"`
	Buyer            [20]byte `json:"buyer"`
	Seller           [20]byte `json:"seller"`
	Payment          *big.Int `json:"payment"`
	RoyaltyAmount    *big.Int `json:"royaltyAmount"`
	CommissionAmount *big.Int `json:"commissionAmount"`
	SellerProceeds   *big.Int `json:"sellerProceeds"`
	SettledAt        int64    `json:"settledAt"`
}

// Clone returns a deep copy of the receipt.
func (r *Receipt) Clone() *Receipt {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Payment != nil {
		clone.Payment = new(big.Int).Set(r.Payment)
	}
	if r.RoyaltyAmount != nil {
		clone.RoyaltyAmount = new(big.Int).Set(r.RoyaltyAmount)
	}
	if r.CommissionAmount != nil {
		clone.CommissionAmount = new(big.Int).Set(r.CommissionAmount)
	}
	if r.SellerProceeds != nil {
		clone.SellerProceeds = new(big.Int).Set(r.SellerProceeds)
	}
	return &clone
}
