package audit

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"poolbridge/internal/model"
)

// Report summarizes a journal replay.
type Report struct {
	Submitted  uint64
	Processed  uint64
	Executed   uint64
	Skipped    uint64
	Claims     uint64
	Violations []string
}

// OK reports whether the replay found no invariant violations.
func (r Report) OK() bool { return len(r.Violations) == 0 }

// Verifier replays a settlement journal and re-checks the queue and ledger
// invariants offline: monotonic drain, non-negative balances, and claims
// matching accrued withdrawals.
type Verifier struct {
	logger *zap.Logger
}

func NewVerifier(logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{logger: logger}
}

type replayPosition struct {
	active  *big.Int
	pending *big.Int
	fee     *big.Int
}

// Verify replays records in journal order.
func (v *Verifier) Verify(records []model.SettlementRecord) Report {
	report := Report{}
	positions := make(map[string]*replayPosition)

	flag := func(format string, args ...interface{}) {
		violation := fmt.Sprintf(format, args...)
		report.Violations = append(report.Violations, violation)
		v.logger.Warn("invariant violation", zap.String("detail", violation))
	}

	key := func(pool uint64, account string) string {
		return fmt.Sprintf("%d/%s", pool, account)
	}
	position := func(pool uint64, account string) *replayPosition {
		k := key(pool, account)
		p, ok := positions[k]
		if !ok {
			p = &replayPosition{active: big.NewInt(0), pending: big.NewInt(0), fee: big.NewInt(0)}
			positions[k] = p
		}
		return p
	}

	for i, record := range records {
		if record.Processed > record.Submitted {
			flag("record %d: processed %d exceeds submitted %d", i, record.Processed, record.Submitted)
		}
		if record.Submitted < report.Submitted {
			flag("record %d: submitted count regressed %d -> %d", i, report.Submitted, record.Submitted)
		}
		if record.Processed < report.Processed {
			flag("record %d: cursor regressed %d -> %d", i, report.Processed, record.Processed)
		}

		switch record.Kind {
		case model.RecordSubmitted:
			if record.Submitted != report.Submitted+1 {
				flag("record %d: submission jumped %d -> %d", i, report.Submitted, record.Submitted)
			}

		case model.RecordSettled:
			if record.Processed != report.Processed+1 {
				flag("record %d: cursor advanced by %d, want 1", i, record.Processed-report.Processed)
			}
			switch record.Status {
			case model.SpotExecuted.String():
				report.Executed++
				if err := v.applyExecuted(record, position(record.Pool, record.Account)); err != nil {
					flag("record %d: %v", i, err)
				}
			case model.SpotSkipped.String():
				report.Skipped++
				if record.Shares != "" || record.Receivable != "" || record.Fee != "" || record.Pending != "" {
					flag("record %d: skipped spot carries balance deltas", i)
				}
			default:
				flag("record %d: unknown settled status %q", i, record.Status)
			}

		case model.RecordClaimed:
			report.Claims++
			if err := v.applyClaim(record, position(record.Pool, record.Account)); err != nil {
				flag("record %d: %v", i, err)
			}

		default:
			flag("record %d: unknown kind %q", i, record.Kind)
		}

		report.Submitted = record.Submitted
		report.Processed = record.Processed
	}

	return report
}

func (v *Verifier) applyExecuted(record model.SettlementRecord, p *replayPosition) error {
	switch record.RequestKind {
	case model.KindDeposit.String():
		shares, err := model.ParseAmount(record.Shares)
		if err != nil {
			return fmt.Errorf("deposit shares: %w", err)
		}
		p.active.Add(p.active, shares)
		return nil

	case model.KindWithdraw.String():
		amount, err := model.ParseAmount(record.Amount)
		if err != nil {
			return fmt.Errorf("withdraw amount: %w", err)
		}
		if p.active.Cmp(amount) < 0 {
			return fmt.Errorf("active balance went negative: have %s, debit %s", p.active, amount)
		}
		p.active.Sub(p.active, amount)

		pending, err := model.ParseAmount(record.Pending)
		if err != nil {
			return fmt.Errorf("withdraw pending: %w", err)
		}
		fee, err := model.ParseAmount(record.Fee)
		if err != nil {
			return fmt.Errorf("withdraw fee: %w", err)
		}
		receivable, err := model.ParseAmount(record.Receivable)
		if err != nil {
			return fmt.Errorf("withdraw receivable: %w", err)
		}
		if sum := new(big.Int).Add(pending, fee); sum.Cmp(receivable) != 0 {
			return fmt.Errorf("pending %s + fee %s != receivable %s", pending, fee, receivable)
		}
		p.pending.Add(p.pending, pending)
		p.fee.Add(p.fee, fee)
		return nil

	default:
		return fmt.Errorf("unknown request kind %q", record.RequestKind)
	}
}

func (v *Verifier) applyClaim(record model.SettlementRecord, p *replayPosition) error {
	pending, err := model.ParseAmount(record.Pending)
	if err != nil {
		return fmt.Errorf("claim pending: %w", err)
	}
	fee, err := model.ParseAmount(record.Fee)
	if err != nil {
		return fmt.Errorf("claim fee: %w", err)
	}
	if p.pending.Cmp(pending) < 0 {
		return fmt.Errorf("claimed pending %s exceeds accrued %s", pending, p.pending)
	}
	if p.fee.Cmp(fee) < 0 {
		return fmt.Errorf("claimed fee %s exceeds accrued %s", fee, p.fee)
	}
	p.pending.Sub(p.pending, pending)
	p.fee.Sub(p.fee, fee)
	return nil
}
