package storage

import "poolbridge/internal/model"

// Sink is an append-only destination for settlement journal records.
type Sink interface {
	PutRecords(records []model.SettlementRecord) error
}

// NopSink discards records.
type NopSink struct{}

func (NopSink) PutRecords([]model.SettlementRecord) error { return nil }
