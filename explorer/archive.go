package explorer

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"tokenmart/core/events"
	"tokenmart/core/types"
)

// ArchivedEvent is one marketplace event persisted for later inspection.
type ArchivedEvent struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Type       string `gorm:"index"`
	AssetID    string `gorm:"index"`
	Attributes string
	RecordedAt time.Time
}

// Archive persists every emitted marketplace event into SQLite so operators
// can reconstruct listing and settlement history without replaying state.
type Archive struct {
	db *gorm.DB
}

// Open creates or opens the archive database at the supplied path.
func Open(path string) (*Archive, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ArchivedEvent{}); err != nil {
		return nil, err
	}
	return &Archive{db: db}, nil
}

// Emit implements the events.Emitter interface. Events that do not expose a
// structured payload are ignored.
func (a *Archive) Emit(evt events.Event) {
	if a == nil || a.db == nil || evt == nil {
		return
	}
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := typed.Event()
	if payload == nil {
		return
	}
	attrs, err := json.Marshal(payload.Attributes)
	if err != nil {
		return
	}
	record := ArchivedEvent{
		Type:       payload.Type,
		AssetID:    payload.Attributes["assetId"],
		Attributes: string(attrs),
		RecordedAt: time.Now().UTC(),
	}
	// Emission is fire-and-forget; a failed insert must not abort the
	// settlement that produced the event.
	a.db.Create(&record)
}

// ByAsset returns the archived events for one asset, oldest first.
func (a *Archive) ByAsset(assetID string, limit int) ([]ArchivedEvent, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("explorer: archive not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	var out []ArchivedEvent
	err := a.db.Where("asset_id = ?", assetID).Order("id asc").Limit(limit).Find(&out).Error
	return out, err
}

// ByType returns the archived events of one type, oldest first.
func (a *Archive) ByType(eventType string, limit int) ([]ArchivedEvent, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("explorer: archive not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	var out []ArchivedEvent
	err := a.db.Where("type = ?", eventType).Order("id asc").Limit(limit).Find(&out).Error
	return out, err
}

// Recent returns the newest archived events across all types.
func (a *Archive) Recent(limit int) ([]ArchivedEvent, error) {
	if a == nil || a.db == nil {
		return nil, errors.New("explorer: archive not configured")
	}
	if limit <= 0 {
		limit = 100
	}
	var out []ArchivedEvent
	err := a.db.Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}
