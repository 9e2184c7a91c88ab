package market

import (
	"fmt"

	"tokenmart/core/events"
	"tokenmart/core/types"
	"tokenmart/crypto"
)

const (
	// EventTypeListed is emitted when an asset is listed or relisted.
	EventTypeListed = "market.listed"
	// EventTypeBought is emitted when a purchase settles.
	EventTypeBought = "market.bought"
	// EventTypeTransferred is emitted when ownership moves to the buyer.
	EventTypeTransferred = "market.transferred"
	// EventTypeRoyaltyPaid is emitted when a royalty share is disbursed.
	EventTypeRoyaltyPaid = "market.royalty.paid"
	// EventTypeCommissionPaid is emitted when the operator share is disbursed.
	EventTypeCommissionPaid = "market.commission.paid"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func addrString(addr [20]byte) string {
	return crypto.MustNewAddress(addr).String()
}

func idString(id uint64) string {
	return fmt.Sprintf("%d", id)
}

// ListedEvent announces a fresh or refreshed listing.
func ListedEvent(record *AssetRecord) *types.Event {
	return &types.Event{
		Type: EventTypeListed,
		Attributes: map[string]string{
			"assetId":         idString(record.ID),
			"owner":           addrString(record.Owner),
			"name":            record.Name,
			"description":     record.Description,
			"priceMinor":      record.PriceMinor.String(),
			"metadataPointer": record.MetadataPointer,
		},
	}
}

// BoughtEvent announces a settled purchase.
func BoughtEvent(assetID uint64, buyer, previousOwner [20]byte, payment string) *types.Event {
	return &types.Event{
		Type: EventTypeBought,
		Attributes: map[string]string{
			"assetId":       idString(assetID),
			"buyer":         addrString(buyer),
			"previousOwner": addrString(previousOwner),
			"payment":       payment,
		},
	}
}

// TransferredEvent announces the ownership move backing a purchase.
func TransferredEvent(assetID uint64, from, to [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeTransferred,
		Attributes: map[string]string{
			"assetId": idString(assetID),
			"from":    addrString(from),
			"to":      addrString(to),
		},
	}
}

// RoyaltyPaidEvent announces a royalty disbursement.
func RoyaltyPaidEvent(assetID uint64, recipient [20]byte, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeRoyaltyPaid,
		Attributes: map[string]string{
			"assetId":   idString(assetID),
			"recipient": addrString(recipient),
			"amount":    amount,
		},
	}
}

// CommissionPaidEvent announces an operator commission disbursement.
func CommissionPaidEvent(assetID uint64, operator [20]byte, amount string) *types.Event {
	return &types.Event{
		Type: EventTypeCommissionPaid,
		Attributes: map[string]string{
			"assetId":  idString(assetID),
			"operator": addrString(operator),
			"amount":   amount,
		},
	}
}
