package audit

import (
	"testing"

	"poolbridge/internal/model"
)

func journalRoundTrip() []model.SettlementRecord {
	return []model.SettlementRecord{
		{Kind: model.RecordSubmitted, Sequence: 1, Pool: 1, Account: "0xA", RequestKind: "deposit", Amount: "1000", Submitted: 1, Processed: 0},
		{Kind: model.RecordSettled, Sequence: 1, Pool: 1, Account: "0xA", RequestKind: "deposit", Status: "executed", Amount: "1000", Shares: "1000", Submitted: 1, Processed: 1},
		{Kind: model.RecordSubmitted, Sequence: 2, Pool: 1, Account: "0xA", RequestKind: "withdraw", Amount: "1000", Submitted: 2, Processed: 1},
		{Kind: model.RecordSettled, Sequence: 2, Pool: 1, Account: "0xA", RequestKind: "withdraw", Status: "executed", Amount: "1000", Receivable: "1000", Fee: "5", Pending: "995", Submitted: 2, Processed: 2},
		{Kind: model.RecordClaimed, Pool: 1, Account: "0xA", Fee: "5", Pending: "995", Submitted: 2, Processed: 2},
	}
}

func TestVerifyCleanJournal(t *testing.T) {
	report := NewVerifier(nil).Verify(journalRoundTrip())
	if !report.OK() {
		t.Fatalf("clean journal flagged: %v", report.Violations)
	}
	if report.Executed != 2 || report.Skipped != 0 || report.Claims != 1 {
		t.Fatalf("report counts: %+v", report)
	}
	if report.Submitted != 2 || report.Processed != 2 {
		t.Fatalf("report counters: %+v", report)
	}
}

func TestVerifyFlagsCursorRegression(t *testing.T) {
	records := journalRoundTrip()
	records[3].Processed = 0 // cursor moves backwards

	report := NewVerifier(nil).Verify(records)
	if report.OK() {
		t.Fatalf("regressing cursor not flagged")
	}
}

func TestVerifyFlagsNegativeBalance(t *testing.T) {
	records := []model.SettlementRecord{
		{Kind: model.RecordSubmitted, Sequence: 1, Pool: 1, Account: "0xA", RequestKind: "withdraw", Amount: "10", Submitted: 1, Processed: 0},
		{Kind: model.RecordSettled, Sequence: 1, Pool: 1, Account: "0xA", RequestKind: "withdraw", Status: "executed", Amount: "10", Receivable: "10", Fee: "0", Pending: "10", Submitted: 1, Processed: 1},
	}
	report := NewVerifier(nil).Verify(records)
	if report.OK() {
		t.Fatalf("negative active balance not flagged")
	}
}

func TestVerifyFlagsSkippedWithDeltas(t *testing.T) {
	records := []model.SettlementRecord{
		{Kind: model.RecordSubmitted, Sequence: 1, Pool: 1, Account: "0xA", RequestKind: "deposit", Amount: "10", Submitted: 1, Processed: 0},
		{Kind: model.RecordSettled, Sequence: 1, Pool: 1, Account: "0xA", RequestKind: "deposit", Status: "skipped", Reason: "hardcap exceeded", Shares: "10", Submitted: 1, Processed: 1},
	}
	report := NewVerifier(nil).Verify(records)
	if report.OK() {
		t.Fatalf("skipped record with balance deltas not flagged")
	}
	if report.Skipped != 1 {
		t.Fatalf("skipped count: %d", report.Skipped)
	}
}

func TestVerifyFlagsOverClaim(t *testing.T) {
	records := journalRoundTrip()
	records[4].Pending = "996"

	report := NewVerifier(nil).Verify(records)
	if report.OK() {
		t.Fatalf("over-claim not flagged")
	}
}

func TestVerifyFlagsFeeSplitMismatch(t *testing.T) {
	records := journalRoundTrip()
	records[3].Fee = "4" // 4 + 995 != 1000

	report := NewVerifier(nil).Verify(records)
	if report.OK() {
		t.Fatalf("fee split mismatch not flagged")
	}
}
