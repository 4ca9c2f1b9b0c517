package memory

import (
	"context"
	"sync"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/sheets"
)

// Publisher keeps the last published report per owner in memory.
type Publisher struct {
	mu      sync.Mutex
	reports map[string]ledger.Report
	count   int
}

var (
	_ sheets.SummaryPublisher = (*Publisher)(nil)
	_ sheets.SummaryReader    = (*Publisher)(nil)
)

func New() *Publisher {
	return &Publisher{reports: make(map[string]ledger.Report)}
}

func (p *Publisher) PublishSummary(_ context.Context, owner core.Identity, report ledger.Report) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	report.Rows = append([]ledger.Row(nil), report.Rows...)
	p.reports[owner.Key] = report
	p.count++
	return nil
}

func (p *Publisher) ReadSummary(_ context.Context, owner core.Identity) ([][]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	report, ok := p.reports[owner.Key]
	if !ok {
		return nil, nil
	}
	return sheets.Rows(report), nil
}

// Last returns the report most recently published for owner.
func (p *Publisher) Last(owner core.Identity) (ledger.Report, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.reports[owner.Key]
	return r, ok
}

// Published counts every PublishSummary call.
func (p *Publisher) Published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
