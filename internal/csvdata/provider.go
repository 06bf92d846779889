// Package csvdata implements C2: serving rows from parsed CSV data
// sources to virtual users under the all_threads / per_thread sharing
// disciplines.
//
// No retrieved repo parameterizes load by external CSV rows directly
// (the closest prior art binds data via step-output references, not
// CSV fixture data), so this package is new: a small mutex-guarded
// struct with zap logging for the one warning case (CsvExhausted),
// written in the surrounding codebase's idiom.
package csvdata

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Rixmerz/rmeter/internal/plan"
)

// cursor tracks the next row index to serve, and whether the
// exhaustion warning has already fired once.
type cursor struct {
	mu            sync.Mutex
	next          int
	warnedOnce    bool
}

// Provider serves rows for one CSV source under its configured sharing
// mode. Sharing decides whether all VUs draw from one shared cursor or
// each VU gets its own.
type Provider struct {
	source *plan.CSVSource
	logger *zap.Logger

	shared *cursor // used when Sharing == all_threads

	mu        sync.Mutex
	perThread map[int]*cursor // used when Sharing == per_thread, keyed by VU id
}

// NewProvider builds a Provider for one CSV source.
func NewProvider(source *plan.CSVSource, logger *zap.Logger) *Provider {
	p := &Provider{source: source, logger: logger}
	if source.Sharing == plan.SharingAllThreads {
		p.shared = &cursor{}
	} else {
		p.perThread = make(map[int]*cursor)
	}
	return p
}

// Name returns the underlying source's name, used to key the binding
// map a VU merges into its iteration scope.
func (p *Provider) Name() string {
	return p.source.Name
}

// Next draws the next row for vuID (ignored under all_threads) and
// returns a column -> cell binding, drawn once per loop iteration.
func (p *Provider) Next(vuID int) map[string]string {
	c := p.cursorFor(vuID)
	row := p.draw(c)
	return p.bind(row)
}

func (p *Provider) cursorFor(vuID int) *cursor {
	if p.source.Sharing == plan.SharingAllThreads {
		return p.shared
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.perThread[vuID]
	if !ok {
		c = &cursor{}
		p.perThread[vuID] = c
	}
	return c
}

func (p *Provider) draw(c *cursor) []string {
	rows := p.source.Rows
	if len(rows) == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next >= len(rows) {
		if p.source.Recycle {
			c.next = 0
		} else {
			if !c.warnedOnce {
				c.warnedOnce = true
				if p.logger != nil {
					p.logger.Warn("CsvExhausted",
						zap.String("source", p.source.Name),
						zap.Int("rows", len(rows)),
					)
				}
			}
			// recycle=false: subsequent iterations reuse the last row.
			return rows[len(rows)-1]
		}
	}

	row := rows[c.next]
	c.next++
	return row
}

func (p *Provider) bind(row []string) map[string]string {
	binding := make(map[string]string, len(p.source.Columns))
	for i, col := range p.source.Columns {
		if i < len(row) {
			binding[col] = row[i]
		} else {
			binding[col] = ""
		}
	}
	return binding
}
