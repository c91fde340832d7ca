// internal/models/certificate.go
package models

import (
	"time"
)

type Participants struct {
	Producer    string `json:"producer" gorm:"size:42"`
	Distributor string `json:"distributor" gorm:"size:42"`
	Retailer    string `json:"retailer" gorm:"size:42"`
	Consumer    string `json:"consumer" gorm:"size:42"`
}

// CertificateRecord is the attested snapshot of a product at a given stage.
// Records are never updated; a stage transition produces a new record.
type CertificateRecord struct {
	ID              string       `json:"id" gorm:"primaryKey;size:32"`
	ProductID       string       `json:"productId" gorm:"size:64;not null;index"`
	ProductName     string       `json:"productName" gorm:"size:255;not null"`
	Status          Stage        `json:"status" gorm:"not null"`
	TransactionHash string       `json:"transactionHash" gorm:"size:66;not null;uniqueIndex"`
	BlockNumber     uint64       `json:"blockNumber"`
	Timestamp       time.Time    `json:"timestamp" gorm:"not null"`
	Participants    Participants `json:"participants" gorm:"embedded;embeddedPrefix:participant_"`
}

// BlockchainData is the anchoring metadata of the transaction that recorded a
// stage transition.
type BlockchainData struct {
	BlockHash string `json:"blockHash" gorm:"size:66"`
	GasUsed   uint64 `json:"gasUsed"`
	GasPrice  string `json:"gasPrice" gorm:"size:78"`
	Nonce     uint64 `json:"nonce"`
}

// Certificate is the registry row: the record plus its anchor.
type Certificate struct {
	CertificateRecord `gorm:"embedded"`
	Anchor            BlockchainData `json:"blockchainData" gorm:"embedded;embeddedPrefix:anchor_"`
	CreatedAt         time.Time      `json:"created_at"`
}

func (Certificate) TableName() string {
	return "certificates"
}

// ProductSnapshot is the product state captured when a stage completes.
type ProductSnapshot struct {
	ProductID    string       `json:"product_id" validate:"required,max=64"`
	ProductName  string       `json:"product_name" validate:"required,max=255"`
	Participants Participants `json:"participants"`
}
