package calculation

import (
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// DefaultRMDStartAge is the age at which required distributions begin.
const DefaultRMDStartAge = 73

// DefaultRMDTableTTL bounds how long a fetched table is trusted.
const DefaultRMDTableTTL = 24 * time.Hour

// uniformLifetimeTable is the IRS Uniform Lifetime Table (Pub. 590-B, 2022+).
// The 120 row also covers every older age.
var uniformLifetimeTable = map[int]string{
	72: "27.4", 73: "26.5", 74: "25.5", 75: "24.6", 76: "23.7", 77: "22.9",
	78: "22.0", 79: "21.1", 80: "20.2", 81: "19.4", 82: "18.5", 83: "17.7",
	84: "16.8", 85: "16.0", 86: "15.2", 87: "14.4", 88: "13.7", 89: "12.9",
	90: "12.2", 91: "11.5", 92: "10.8", 93: "10.1", 94: "9.5", 95: "8.9",
	96: "8.4", 97: "7.8", 98: "7.3", 99: "6.8", 100: "6.4", 101: "6.0",
	102: "5.6", 103: "5.2", 104: "4.9", 105: "4.6", 106: "4.3", 107: "4.1",
	108: "3.9", 109: "3.7", 110: "3.5", 111: "3.4", 112: "3.3", 113: "3.1",
	114: "3.0", 115: "2.9", 116: "2.8", 117: "2.7", 118: "2.5", 119: "2.3",
	120: "2.0",
}

// RMDTable maps age to distribution period.
type RMDTable struct {
	factors  map[int]decimal.Decimal
	minAge   int
	maxAge   int
	source   string
	loadedAt time.Time
}

// NewRMDTable builds a table and checks it covers every age from startAge
// through the oldest age a household member can reach.
func NewRMDTable(source string, factors map[int]decimal.Decimal, startAge int) (*RMDTable, error) {
	if len(factors) == 0 {
		return nil, &DataError{Source: source, Detail: "RMD table is empty"}
	}
	ages := make([]int, 0, len(factors))
	for age, f := range factors {
		if !f.IsPositive() {
			return nil, &DataError{Source: source, Detail: fmt.Sprintf("non-positive distribution period %s at age %d", f, age)}
		}
		ages = append(ages, age)
	}
	sort.Ints(ages)

	t := &RMDTable{factors: factors, minAge: ages[0], maxAge: ages[len(ages)-1], source: source, loadedAt: nowFunc()}
	if t.minAge > startAge {
		return nil, &DataError{Source: source, Detail: fmt.Sprintf("RMD table starts at age %d, after start age %d", t.minAge, startAge)}
	}
	for age := startAge; age <= t.maxAge; age++ {
		if _, ok := factors[age]; !ok {
			return nil, &DataError{Source: source, Detail: fmt.Sprintf("RMD table has no entry for age %d", age)}
		}
	}
	if t.maxAge < maxLifeExpectancy {
		return nil, &DataError{Source: source, Detail: fmt.Sprintf("RMD table ends at age %d, before age %d", t.maxAge, maxLifeExpectancy)}
	}
	return t, nil
}

// FactorForAge returns the published distribution period for age, or an
// error wrapping ErrNotFound outside the table.
func (t *RMDTable) FactorForAge(age int) (decimal.Decimal, error) {
	f, ok := t.factors[age]
	if !ok {
		return decimal.Zero, fmt.Errorf("rmd factor for age %d (table covers %d-%d): %w", age, t.minAge, t.maxAge, ErrNotFound)
	}
	return f, nil
}

// Factor is FactorForAge with ages past the table mapped to its last row,
// which NewRMDTable guarantees is the terminal "120 and over" period.
// Callers must not ask for ages below the configured start age.
func (t *RMDTable) Factor(age int) decimal.Decimal {
	if age > t.maxAge {
		age = t.maxAge
	}
	return t.factors[age]
}

// Range reports the covered ages.
func (t *RMDTable) Range() (int, int) { return t.minAge, t.maxAge }

// RMDSource fetches raw age→period rows.
type RMDSource interface {
	Name() string
	Fetch(ctx context.Context) (map[int]decimal.Decimal, error)
}

// StaticRMDSource serves the built-in IRS table.
type StaticRMDSource struct{}

func (StaticRMDSource) Name() string { return "irs-uniform-lifetime" }

func (StaticRMDSource) Fetch(context.Context) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(uniformLifetimeTable))
	for age, s := range uniformLifetimeTable {
		out[age] = decimal.RequireFromString(s)
	}
	return out, nil
}

// HTTPRMDSource downloads a CSV of "age,factor" rows. A header row is allowed.
type HTTPRMDSource struct {
	client *resty.Client
	url    string
}

// NewHTTPRMDSource returns a source reading url with retries.
func NewHTTPRMDSource(url string, timeout time.Duration) *HTTPRMDSource {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(3)
	client.SetRetryWaitTime(500 * time.Millisecond)
	client.SetRetryMaxWaitTime(5 * time.Second)
	client.SetHeader("Accept", "text/csv")
	return &HTTPRMDSource{client: client, url: url}
}

func (s *HTTPRMDSource) Name() string { return s.url }

func (s *HTTPRMDSource) Fetch(ctx context.Context) (map[int]decimal.Decimal, error) {
	resp, err := s.client.R().SetContext(ctx).Get(s.url)
	if err != nil {
		return nil, &DataError{Source: s.url, Detail: fmt.Sprintf("fetch RMD table: %v", err)}
	}
	if resp.StatusCode() != 200 {
		return nil, &DataError{Source: s.url, Detail: fmt.Sprintf("fetch RMD table: HTTP %d", resp.StatusCode())}
	}
	return parseRMDCSV(s.url, resp.String())
}

func parseRMDCSV(source, body string) (map[int]decimal.Decimal, error) {
	r := csv.NewReader(strings.NewReader(body))
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, &DataError{Source: source, Detail: fmt.Sprintf("parse RMD table: %v", err)}
	}

	out := make(map[int]decimal.Decimal, len(records))
	for i, rec := range records {
		age, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			if i == 0 {
				continue
			}
			return nil, &DataError{Source: source, Detail: fmt.Sprintf("row %d: invalid age %q", i+1, rec[0])}
		}
		factor, err := decimal.NewFromString(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, &DataError{Source: source, Detail: fmt.Sprintf("row %d: invalid factor %q", i+1, rec[1])}
		}
		out[age] = factor
	}
	return out, nil
}

// RMDTableProvider caches the RMD table for a TTL. It is the only state
// shared across trajectories and is safe for concurrent use.
type RMDTableProvider struct {
	source   RMDSource
	ttl      time.Duration
	startAge int
	logger   Logger

	mu    sync.RWMutex
	table *RMDTable
}

// NewRMDTableProvider returns a provider; a nil source uses the built-in table.
func NewRMDTableProvider(source RMDSource, startAge int, ttl time.Duration, logger Logger) *RMDTableProvider {
	if source == nil {
		source = StaticRMDSource{}
	}
	if ttl <= 0 {
		ttl = DefaultRMDTableTTL
	}
	if startAge <= 0 {
		startAge = DefaultRMDStartAge
	}
	return &RMDTableProvider{source: source, ttl: ttl, startAge: startAge, logger: orNop(logger)}
}

// StartAge is the first age with a required distribution.
func (p *RMDTableProvider) StartAge() int { return p.startAge }

// Table returns the cached table, refreshing it once the TTL has passed.
func (p *RMDTableProvider) Table(ctx context.Context) (*RMDTable, error) {
	p.mu.RLock()
	t := p.table
	p.mu.RUnlock()
	if t != nil && nowFunc().Sub(t.loadedAt) < p.ttl {
		return t, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.table != nil && nowFunc().Sub(p.table.loadedAt) < p.ttl {
		return p.table, nil
	}

	factors, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	fresh, err := NewRMDTable(p.source.Name(), factors, p.startAge)
	if err != nil {
		return nil, err
	}
	minAge, maxAge := fresh.Range()
	p.logger.Infof("loaded RMD table from %s (ages %d-%d)", p.source.Name(), minAge, maxAge)
	p.table = fresh
	return fresh, nil
}

// FactorForAge looks age up in the current table.
func (p *RMDTableProvider) FactorForAge(ctx context.Context, age int) (decimal.Decimal, error) {
	t, err := p.Table(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return t.FactorForAge(age)
}
