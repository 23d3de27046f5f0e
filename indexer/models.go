package indexer

import (
	"gorm.io/gorm"
)

// EventRecord is one published event. Sequence is the ledger-assigned
// position and doubles as the primary key, so replays are ignored.
type EventRecord struct {
	Sequence   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type       string `gorm:"size:64;index"`
	Attributes string `gorm:"type:text"`
}

// ListingRecord is the read-side projection of a listing built from
// creation, purchase, close and update events.
type ListingRecord struct {
	Address        string `gorm:"size:42;primaryKey"`
	Registry       string `gorm:"size:42;index"`
	Storage        string `gorm:"size:42"`
	Seller         string `gorm:"size:42;index"`
	Kind           string `gorm:"size:16"`
	Position       uint64
	ContentHash    string `gorm:"size:66"`
	Price          string `gorm:"size:80"`
	UnitsAvailable uint64
	Created        uint64
	Expiration     uint64
	Closed         bool
	Version        uint64
	Purchases      uint64
	LastSequence   uint64
}

// AutoMigrate creates or updates the index tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &ListingRecord{})
}
