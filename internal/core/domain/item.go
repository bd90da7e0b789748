package domain

import "time"

// TradeUpInputCount is the number of input items a trade-up contract consumes.
const TradeUpInputCount = 10

// ItemDescriptor describes an item returned by the coordinator.
type ItemDescriptor struct {
	ItemID     string         `json:"itemId,omitempty"`
	DefIndex   int            `json:"defIndex,omitempty"`
	PaintIndex int            `json:"paintIndex,omitempty"`
	PaintSeed  int            `json:"paintSeed,omitempty"`
	PaintWear  float64        `json:"paintWear,omitempty"`
	Rarity     int            `json:"rarity,omitempty"`
	Quality    int            `json:"quality,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// InventoryItem is a single entry of the account inventory.
type InventoryItem struct {
	AssetID    string  `json:"assetId"`
	DefIndex   int     `json:"defIndex"`
	ItemID     string  `json:"itemId,omitempty"`
	PaintIndex int     `json:"paintIndex,omitempty"`
	PaintSeed  int     `json:"paintSeed,omitempty"`
	PaintWear  float64 `json:"paintWear,omitempty"`
	Rarity     int     `json:"rarity,omitempty"`
	Quality    int     `json:"quality,omitempty"`
}

// TradeUpResult is produced once per completed trade-up and never mutated afterwards.
type TradeUpResult struct {
	ID            string          `json:"id"`
	Success       bool            `json:"success"`
	OutputItem    *ItemDescriptor `json:"outputItem,omitempty"`
	InputAssetIDs []string        `json:"inputAssetIds"`
	Timestamp     time.Time       `json:"timestamp"`
}
