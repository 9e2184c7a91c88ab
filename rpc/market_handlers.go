package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"tokenmart/crypto"
	"tokenmart/explorer"
	"tokenmart/native/market"
)

type listingParams struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	PriceMinor       string   `json:"priceMinor"`
	Keywords         []string `json:"keywords"`
	RoyaltyPercent   uint32   `json:"royaltyPercent"`
	RoyaltyRecipient string   `json:"royaltyRecipient"`
	MetadataPointer  string   `json:"metadataPointer"`
}

type createParams struct {
	Caller string `json:"caller"`
	listingParams
}

type bulkCreateParams struct {
	Caller   string          `json:"caller"`
	Listings []listingParams `json:"listings"`
}

type repriceParams struct {
	Caller     string `json:"caller"`
	AssetID    uint64 `json:"assetId"`
	PriceMinor string `json:"priceMinor"`
}

type purchaseParams struct {
	Buyer        string `json:"buyer"`
	AssetID      uint64 `json:"assetId"`
	PaymentMinor string `json:"paymentMinor"`
}

type bulkPurchaseParams struct {
	Buyer             string   `json:"buyer"`
	AssetIDs          []uint64 `json:"assetIds"`
	TotalPaymentMinor string   `json:"totalPaymentMinor"`
}

type assetQueryParams struct {
	AssetID uint64 `json:"assetId"`
}

type ownerQueryParams struct {
	Owner string `json:"owner"`
}

type keywordQueryParams struct {
	Keyword string `json:"keyword"`
}

type metadataParams struct {
	AssetID uint64 `json:"assetId"`
	Embed   bool   `json:"embed"`
}

type eventsParams struct {
	AssetID uint64 `json:"assetId"`
	Type    string `json:"type"`
	Limit   int    `json:"limit"`
}

type assetResult struct {
	ID               uint64   `json:"id"`
	Owner            string   `json:"owner"`
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	PriceMinor       string   `json:"priceMinor"`
	Listed           bool     `json:"listed"`
	RoyaltyPercent   uint32   `json:"royaltyPercent"`
	RoyaltyRecipient string   `json:"royaltyRecipient,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	MetadataPointer  string   `json:"metadataPointer"`
	CreatedAt        int64    `json:"createdAt"`
}

type receiptResult struct {
	ID               string `json:"id"`
	AssetID          uint64 `json:"assetId"`
	Buyer            string `json:"buyer"`
	Seller           string `json:"seller"`
	Payment          string `json:"payment"`
	RoyaltyAmount    string `json:"royaltyAmount"`
	CommissionAmount string `json:"commissionAmount"`
	SellerProceeds   string `json:"sellerProceeds"`
	SettledAt        int64  `json:"settledAt"`
}

type archivedEventResult struct {
	Type       string            `json:"type"`
	AssetID    string            `json:"assetId,omitempty"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt int64             `json:"recordedAt"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected params array of length 1")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parseAddress(raw string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(raw))
	if err != nil {
		return out, err
	}
	return decoded.Fixed(), nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", raw)
	}
	return amount, nil
}

func formatAsset(record *market.AssetRecord) assetResult {
	out := assetResult{
		ID:              record.ID,
		Owner:           crypto.MustNewAddress(record.Owner).String(),
		Name:            record.Name,
		Description:     record.Description,
		Listed:          record.Listed,
		RoyaltyPercent:  record.RoyaltyPercent,
		MetadataPointer: record.MetadataPointer,
		CreatedAt:       record.CreatedAt,
	}
	if record.PriceMinor != nil {
		out.PriceMinor = record.PriceMinor.String()
	}
	if record.RoyaltyPercent > 0 {
		out.RoyaltyRecipient = crypto.MustNewAddress(record.RoyaltyRecipient).String()
	}
	return out
}

func formatAssets(records []*market.AssetRecord) []assetResult {
	out := make([]assetResult, 0, len(records))
	for _, record := range records {
		out = append(out, formatAsset(record))
	}
	return out
}

func formatReceipt(receipt *market.Receipt) receiptResult {
	return receiptResult{
		ID:               receipt.ID,
		AssetID:          receipt.AssetID,
		Buyer:            crypto.MustNewAddress(receipt.Buyer).String(),
		Seller:           crypto.MustNewAddress(receipt.Seller).String(),
		Payment:          receipt.Payment.String(),
		RoyaltyAmount:    receipt.RoyaltyAmount.String(),
		CommissionAmount: receipt.CommissionAmount.String(),
		SellerProceeds:   receipt.SellerProceeds.String(),
		SettledAt:        receipt.SettledAt,
	}
}

func (p listingParams) toInput() (market.ListingInput, error) {
	price, err := parseAmount(p.PriceMinor)
	if err != nil {
		return market.ListingInput{}, err
	}
	in := market.ListingInput{
		Name:            p.Name,
		Description:     p.Description,
		PriceMinor:      price,
		Keywords:        p.Keywords,
		RoyaltyPercent:  p.RoyaltyPercent,
		MetadataPointer: p.MetadataPointer,
	}
	if p.RoyaltyPercent > 0 {
		recipient, err := parseAddress(p.RoyaltyRecipient)
		if err != nil {
			return market.ListingInput{}, fmt.Errorf("royalty recipient: %w", err)
		}
		in.RoyaltyRecipient = recipient
	}
	return in, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, req *RPCRequest) {
	var params createParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller: "+err.Error())
		return
	}
	input, err := params.toInput()
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	record, err := s.facade.Create(caller, input)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAsset(record))
}

func (s *Server) handleBulkCreate(w http.ResponseWriter, req *RPCRequest) {
	var params bulkCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller: "+err.Error())
		return
	}
	count := len(params.Listings)
	names := make([]string, 0, count)
	descriptions := make([]string, 0, count)
	prices := make([]*big.Int, 0, count)
	keywords := make([][]string, 0, count)
	royaltyPercents := make([]uint32, 0, count)
	royaltyRecipients := make([][20]byte, 0, count)
	pointers := make([]string, 0, count)
	for i, listing := range params.Listings {
		input, err := listing.toInput()
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, fmt.Sprintf("listing %d: %v", i, err))
			return
		}
		names = append(names, input.Name)
		descriptions = append(descriptions, input.Description)
		prices = append(prices, input.PriceMinor)
		keywords = append(keywords, input.Keywords)
		royaltyPercents = append(royaltyPercents, input.RoyaltyPercent)
		royaltyRecipients = append(royaltyRecipients, input.RoyaltyRecipient)
		pointers = append(pointers, input.MetadataPointer)
	}
	records, err := s.facade.BulkCreate(caller, names, descriptions, prices, keywords, royaltyPercents, royaltyRecipients, pointers)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAssets(records))
}

func (s *Server) handleRelist(w http.ResponseWriter, req *RPCRequest) {
	s.handleReprice(w, req, true)
}

func (s *Server) handleSetPrice(w http.ResponseWriter, req *RPCRequest) {
	s.handleReprice(w, req, false)
}

func (s *Server) handleReprice(w http.ResponseWriter, req *RPCRequest, relist bool) {
	var params repriceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "caller: "+err.Error())
		return
	}
	price, err := parseAmount(params.PriceMinor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	var record *market.AssetRecord
	if relist {
		record, err = s.facade.Relist(caller, params.AssetID, price)
	} else {
		record, err = s.facade.SetPrice(caller, params.AssetID, price)
	}
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAsset(record))
}

func (s *Server) handlePurchase(w http.ResponseWriter, req *RPCRequest) {
	var params purchaseParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "buyer: "+err.Error())
		return
	}
	payment, err := parseAmount(params.PaymentMinor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	receipt, err := s.facade.Purchase(buyer, params.AssetID, payment)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatReceipt(receipt))
}

func (s *Server) handleBulkPurchase(w http.ResponseWriter, req *RPCRequest) {
	var params bulkPurchaseParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	buyer, err := parseAddress(params.Buyer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "buyer: "+err.Error())
		return
	}
	payment, err := parseAmount(params.TotalPaymentMinor)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	receipts, err := s.facade.BulkPurchase(buyer, params.AssetIDs, payment)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	results := make([]receiptResult, 0, len(receipts))
	for _, receipt := range receipts {
		results = append(results, formatReceipt(receipt))
	}
	writeResult(w, req.ID, results)
}

func (s *Server) handleGet(w http.ResponseWriter, req *RPCRequest) {
	var params assetQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	record, err := s.facade.Asset(params.AssetID)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAsset(record))
}

func (s *Server) handleListed(w http.ResponseWriter, req *RPCRequest) {
	records, err := s.facade.ListedAssets()
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAssets(records))
}

func (s *Server) handleOwnerAssets(w http.ResponseWriter, req *RPCRequest) {
	var params ownerQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "owner: "+err.Error())
		return
	}
	records, err := s.facade.OwnerRecords(owner)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAssets(records))
}

func (s *Server) handleKeywordAssets(w http.ResponseWriter, req *RPCRequest) {
	var params keywordQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	ids, err := s.facade.KeywordAssets(params.Keyword)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, ids)
}

func (s *Server) handleMetadata(w http.ResponseWriter, req *RPCRequest) {
	var params metadataParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
		return
	}
	rendered, err := s.facade.Metadata(params.AssetID, params.Embed)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"metadata": rendered})
}

func (s *Server) handleEvents(w http.ResponseWriter, req *RPCRequest) {
	if s.archive == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "event archive not configured")
		return
	}
	params := eventsParams{}
	if len(req.Params) > 0 {
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error())
			return
		}
	}
	var events []archivedEventResult
	switch {
	case params.AssetID > 0:
		archived, err := s.archive.ByAsset(strconv.FormatUint(params.AssetID, 10), params.Limit)
		if err != nil {
			writeDomainError(w, req.ID, err)
			return
		}
		events = formatArchived(archived)
	case params.Type != "":
		archived, err := s.archive.ByType(params.Type, params.Limit)
		if err != nil {
			writeDomainError(w, req.ID, err)
			return
		}
		events = formatArchived(archived)
	default:
		archived, err := s.archive.Recent(params.Limit)
		if err != nil {
			writeDomainError(w, req.ID, err)
			return
		}
		events = formatArchived(archived)
	}
	writeResult(w, req.ID, events)
}

func formatArchived(records []explorer.ArchivedEvent) []archivedEventResult {
	out := make([]archivedEventResult, 0, len(records))
	for _, record := range records {
		attrs := map[string]string{}
		_ = json.Unmarshal([]byte(record.Attributes), &attrs)
		out = append(out, archivedEventResult{
			Type:       record.Type,
			AssetID:    record.AssetID,
			Attributes: attrs,
			RecordedAt: record.RecordedAt.Unix(),
		})
	}
	return out
}
