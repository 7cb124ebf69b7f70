package types

import (
	"fmt"
	"time"
)

type QualityStatus string

const (
	QualityPending  QualityStatus = "pending"
	QualityApproved QualityStatus = "approved"
	QualityRejected QualityStatus = "rejected"
)

// ParseVerdict accepts only the two final quality outcomes.
func ParseVerdict(s string) (QualityStatus, error) {
	switch q := QualityStatus(s); q {
	case QualityApproved, QualityRejected:
		return q, nil
	}
	return "", fmt.Errorf("unknown verdict %q: %w", s, ErrValidation)
}

type RecordKind string

const (
	RecordProcess  RecordKind = "process"
	RecordCleaning RecordKind = "cleaning"
)

// CleaningProduct marks records produced by a finished cleaning cycle.
const CleaningProduct = "Cleaning"

type ProcessRecord struct {
	ID            int64         `json:"id"`
	EquipmentID   int64         `json:"equipment_id"`
	EquipmentName string        `json:"equipment_name"`
	Kind          RecordKind    `json:"kind"`
	Product       string        `json:"product"`
	WorkOrder     string        `json:"work_order"`
	Responsible   string        `json:"responsible"`
	FinalizedAt   time.Time     `json:"finalized_at"`
	Quality       QualityStatus `json:"quality"`
	AnalyzedAt    *time.Time    `json:"analyzed_at,omitempty"`
	AnalyzedBy    string        `json:"analyzed_by,omitempty"`
}

func (r *ProcessRecord) Clone() *ProcessRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.AnalyzedAt != nil {
		t := *r.AnalyzedAt
		c.AnalyzedAt = &t
	}
	return &c
}
