package market

import (
	"log/slog"
	"math/big"
)

// Authorizer gates the owner-privileged listing operations.
type Authorizer interface {
	IsAuthorizedOwner(caller [20]byte) bool
}

// Metrics receives operation outcomes for instrumentation. Implementations
// live outside this package; a nil Metrics disables recording.
type Metrics interface {
	RecordListing()
	RecordPurchase(valueMinor *big.Int)
	RecordFailure(op string)
}

// Marketplace is the public operation surface. It composes the listing and
// settlement engines, enforces the owner capability on listing creation, and
// records logs and metrics around every operation.
type Marketplace struct {
	lister     *Engine
	settlement *Settlement
	auth       Authorizer
	logger     *slog.Logger
	metrics    Metrics
}

// NewMarketplace wires the facade around the supplied engines.
func NewMarketplace(lister *Engine, settlement *Settlement, auth Authorizer) *Marketplace {
	return &Marketplace{
		lister:     lister,
		settlement: settlement,
		auth:       auth,
		logger:     slog.Default(),
	}
}

// SetLogger overrides the structured logger used by the facade.
func (m *Marketplace) SetLogger(logger *slog.Logger) {
	if m == nil || logger == nil {
		return
	}
	m.logger = logger
}

// SetMetrics configures the metrics sink.
func (m *Marketplace) SetMetrics(metrics Metrics) {
	if m == nil {
		return
	}
	m.metrics = metrics
}

func (m *Marketplace) authorized(caller [20]byte) bool {
	if m.auth == nil {
		return false
	}
	return m.auth.IsAuthorizedOwner(caller)
}

func (m *Marketplace) fail(op string, err error) error {
	if m.metrics != nil {
		m.metrics.RecordFailure(op)
	}
	m.logger.Warn("market operation failed", "op", op, "err", err)
	return err
}

// Create lists a new asset. The caller must hold the marketplace-owner
// capability.
func (m *Marketplace) Create(caller [20]byte, in ListingInput) (*AssetRecord, error) {
	if !m.authorized(caller) {
		return nil, m.fail("create", ErrUnauthorized)
	}
	record, err := m.lister.Create(caller, in)
	if err != nil {
		return nil, m.fail("create", err)
	}
	if m.metrics != nil {
		m.metrics.RecordListing()
	}
	m.logger.Info("asset listed", "assetId", record.ID, "priceMinor", record.PriceMinor.String())
	return record, nil
}

// BulkCreate lists a batch of assets from parallel slices.
func (m *Marketplace) BulkCreate(caller [20]byte, names, descriptions []string, prices []*big.Int, keywords [][]string, royaltyPercents []uint32, royaltyRecipients [][20]byte, metadataPointers []string) ([]*AssetRecord, error) {
	if !m.authorized(caller) {
		return nil, m.fail("bulkCreate", ErrUnauthorized)
	}
	records, err := m.lister.BulkCreate(caller, names, descriptions, prices, keywords, royaltyPercents, royaltyRecipients, metadataPointers)
	if err != nil {
		return nil, m.fail("bulkCreate", err)
	}
	if m.metrics != nil {
		for range records {
			m.metrics.RecordListing()
		}
	}
	m.logger.Info("assets listed", "count", len(records))
	return records, nil
}

// Relist puts a sold asset back on sale; ownership is authorized inside the
// engine against the registry, not here.
func (m *Marketplace) Relist(caller [20]byte, assetID uint64, newPrice *big.Int) (*AssetRecord, error) {
	record, err := m.lister.Relist(caller, assetID, newPrice)
	if err != nil {
		return nil, m.fail("relist", err)
	}
	if m.metrics != nil {
		m.metrics.RecordListing()
	}
	m.logger.Info("asset relisted", "assetId", record.ID, "priceMinor", record.PriceMinor.String())
	return record, nil
}

// SetPrice updates the asking price of an owned asset.
func (m *Marketplace) SetPrice(caller [20]byte, assetID uint64, newPrice *big.Int) (*AssetRecord, error) {
	record, err := m.lister.SetPrice(caller, assetID, newPrice)
	if err != nil {
		return nil, m.fail("setPrice", err)
	}
	m.logger.Info("asset repriced", "assetId", record.ID, "priceMinor", record.PriceMinor.String())
	return record, nil
}

// Purchase settles a single sale for the buyer.
func (m *Marketplace) Purchase(buyer [20]byte, assetID uint64, payment *big.Int) (*Receipt, error) {
	receipt, err := m.settlement.Purchase(buyer, assetID, payment)
	if err != nil {
		return nil, m.fail("purchase", err)
	}
	if m.metrics != nil {
		m.metrics.RecordPurchase(receipt.Payment)
	}
	m.logger.Info("asset purchased", "assetId", receipt.AssetID, "payment", receipt.Payment.String())
	return receipt, nil
}

// BulkPurchase settles a batch of sales all-or-nothing.
func (m *Marketplace) BulkPurchase(buyer [20]byte, assetIDs []uint64, totalPayment *big.Int) ([]*Receipt, error) {
	receipts, err := m.settlement.BulkPurchase(buyer, assetIDs, totalPayment)
	if err != nil {
		return nil, m.fail("bulkPurchase", err)
	}
	if m.metrics != nil {
		for _, receipt := range receipts {
			m.metrics.RecordPurchase(receipt.Payment)
		}
	}
	m.logger.Info("assets purchased", "count", len(receipts))
	return receipts, nil
}

// Asset returns the listing record for the supplied asset ID.
func (m *Marketplace) Asset(assetID uint64) (*AssetRecord, error) {
	return m.lister.Asset(assetID)
}

// ListedAssets enumerates every asset currently offered for sale.
func (m *Marketplace) ListedAssets() ([]*AssetRecord, error) {
	return m.lister.ListedAssets()
}

// OwnerAssets returns the asset IDs recorded under the owner index.
func (m *Marketplace) OwnerAssets(owner [20]byte) ([]uint64, error) {
	return m.lister.OwnerAssets(owner)
}

// OwnerRecords resolves the owner index into full listing records.
func (m *Marketplace) OwnerRecords(owner [20]byte) ([]*AssetRecord, error) {
	return m.lister.OwnerRecords(owner)
}

// KeywordAssets returns the asset IDs tagged with the keyword.
func (m *Marketplace) KeywordAssets(keyword string) ([]uint64, error) {
	return m.lister.KeywordAssets(keyword)
}

// Metadata renders the display payload for an asset.
func (m *Marketplace) Metadata(assetID uint64, embed bool) (string, error) {
	record, err := m.lister.Asset(assetID)
	if err != nil {
		return "", err
	}
	return RenderMetadata(record.Name, record.Description, record.MetadataPointer, embed)
}

// StaticAuthorizer authorizes a fixed set of marketplace owners, typically
// sourced from configuration.
type StaticAuthorizer map[[20]byte]struct{}

// NewStaticAuthorizer builds an authorizer over the supplied owners.
func NewStaticAuthorizer(owners ...[20]byte) StaticAuthorizer {
	set := make(StaticAuthorizer, len(owners))
	for _, owner := range owners {
		set[owner] = struct{}{}
	}
	return set
}

// IsAuthorizedOwner implements the Authorizer interface.
func (s StaticAuthorizer) IsAuthorizedOwner(caller [20]byte) bool {
	_, ok := s[caller]
	return ok
}
