package model

import (
	"strings"
	"time"
)

// InputRecord is one customer row read from the input CSV.
type InputRecord struct {
	Position        int    `json:"position" csv:"-"` // 1-based row index in the ingested sequence
	Email           string `json:"email" csv:"customer_email"`
	ExternalStoreID string `json:"external_store_id,omitempty" csv:"external_store_id,omitempty"`
	StoreName       string `json:"store_name,omitempty" csv:"name,omitempty"`
}

// StoredRecord is a customer document keyed by normalized email.
type StoredRecord struct {
	Email              string         `json:"email" bson:"email" yaml:"email"`
	Data               map[string]any `json:"data,omitempty" bson:"data,omitempty" yaml:"data,omitempty"`
	ExternalStoreID    string         `json:"externalStoreId,omitempty" bson:"externalStoreId,omitempty" yaml:"externalStoreId,omitempty"`
	StoreName          string         `json:"storeName,omitempty" bson:"storeName,omitempty" yaml:"storeName,omitempty"`
	StoreInfoUpdatedAt *time.Time     `json:"storeInfoUpdatedAt,omitempty" bson:"storeInfoUpdatedAt,omitempty" yaml:"storeInfoUpdatedAt,omitempty"`
	ProcessedAt        *time.Time     `json:"processedAt,omitempty" bson:"processedAt,omitempty" yaml:"processedAt,omitempty"`
}

// HasStoreInfo reports whether both store fields are populated.
func (r StoredRecord) HasStoreInfo() bool {
	return r.ExternalStoreID != "" && r.StoreName != ""
}

// StoreInfoPatch is a set-only update of a stored record's store metadata.
// Nil fields are left untouched on the stored side. UpdatedAt is always written.
type StoreInfoPatch struct {
	ExternalStoreID *string
	StoreName       *string
	UpdatedAt       time.Time
}

// NewStoreInfoPatch builds a patch from the non-empty store fields of in.
func NewStoreInfoPatch(in InputRecord, now time.Time) StoreInfoPatch {
	p := StoreInfoPatch{UpdatedAt: now}
	if in.ExternalStoreID != "" {
		id := in.ExternalStoreID
		p.ExternalStoreID = &id
	}
	if in.StoreName != "" {
		name := in.StoreName
		p.StoreName = &name
	}
	return p
}

// Empty reports whether the patch carries no store fields.
func (p StoreInfoPatch) Empty() bool {
	return p.ExternalStoreID == nil && p.StoreName == nil
}

// Changes reports whether applying p to rec would change any store field.
// The timestamp is not considered.
func (p StoreInfoPatch) Changes(rec StoredRecord) bool {
	if p.ExternalStoreID != nil && *p.ExternalStoreID != rec.ExternalStoreID {
		return true
	}
	if p.StoreName != nil && *p.StoreName != rec.StoreName {
		return true
	}
	return false
}

// StoreCount is one (storeName, externalStoreId) group with its customer count.
type StoreCount struct {
	StoreName       string `json:"storeName" bson:"storeName" yaml:"storeName"`
	ExternalStoreID string `json:"externalStoreId" bson:"externalStoreId" yaml:"externalStoreId"`
	Customers       int64  `json:"customers" bson:"count" yaml:"customers"`
}

// NormalizeEmail returns the lookup key for an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
