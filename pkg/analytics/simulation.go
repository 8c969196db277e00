package analytics

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

// Fixture seeds a simulation: report suite id -> category -> raw API records.
type Fixture struct {
	Company Company                     `yaml:"company" json:"company"`
	Suites  map[string]map[string][]any `yaml:"suites" json:"suites"`
}

// WriteRecord is one write the simulation accepted.
type WriteRecord struct {
	RSID     string
	Category catalog.Category
	Items    int
	At       time.Time
}

type failKey struct {
	rsid     string
	category catalog.Category
}

// Simulation keeps report suites in memory and behaves like the admin API:
// idempotent categories upsert by key, full-set categories are replaced.
// It is safe for concurrent use.
type Simulation struct {
	mu sync.Mutex

	company   Company
	suites    map[string]map[catalog.Category][]any
	connected bool

	failConnect error
	failFetch   map[failKey]error
	failWrite   map[failKey]error

	writes  []WriteRecord
	fetches int
}

// NewSimulation creates a simulation seeded from fixture, which may be nil.
func NewSimulation(fixture *Fixture) *Simulation {
	s := &Simulation{
		company:   Company{Name: "Simulated Company", GlobalCompanyID: "simulated0"},
		suites:    map[string]map[catalog.Category][]any{},
		failFetch: map[failKey]error{},
		failWrite: map[failKey]error{},
	}
	if fixture == nil {
		return s
	}

	if fixture.Company.Name != "" {
		s.company = fixture.Company
	}
	for rsid, categories := range fixture.Suites {
		s.AddSuite(rsid)
		for name, records := range categories {
			c, err := catalog.ParseCategory(name)
			if err != nil {
				continue
			}
			s.suites[rsid][c] = catalog.CloneRecords(records)
		}
	}
	return s
}

// LoadSimulation reads a YAML or JSON fixture file.
func LoadSimulation(path string) (*Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}

	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}

	for rsid, categories := range fixture.Suites {
		for name := range categories {
			if _, err := catalog.ParseCategory(name); err != nil {
				return nil, errors.Wrapf(err, "fixture suite %s", rsid)
			}
		}
	}

	return NewSimulation(&fixture), nil
}

// AddSuite registers an empty report suite.
func (s *Simulation) AddSuite(rsid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suites[rsid]; !ok {
		s.suites[rsid] = map[catalog.Category][]any{}
	}
}

// Seed replaces the items of one category without recording a write.
func (s *Simulation) Seed(rsid string, c catalog.Category, items []catalog.Item) {
	s.AddSuite(rsid)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suites[rsid][c] = catalog.ToRecords(catalog.MustDescribe(c), items)
}

// Suites lists the known report suite ids.
func (s *Simulation) Suites() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.suites))
	for rsid := range s.suites {
		out = append(out, rsid)
	}
	sort.Strings(out)
	return out
}

// FailConnect makes Connect fail with err. Nil clears it.
func (s *Simulation) FailConnect(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failConnect = err
}

// FailFetch makes fetches of c from rsid fail with err. An empty category
// matches every category. Nil clears the failure.
func (s *Simulation) FailFetch(rsid string, c catalog.Category, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setFailure(s.failFetch, failKey{rsid, c}, err)
}

// FailWrite makes writes of c to rsid fail with err. An empty category
// matches every category. Nil clears the failure.
func (s *Simulation) FailWrite(rsid string, c catalog.Category, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	setFailure(s.failWrite, failKey{rsid, c}, err)
}

// Writes returns the accepted writes in order.
func (s *Simulation) Writes() []WriteRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WriteRecord, len(s.writes))
	copy(out, s.writes)
	return out
}

// Fetches counts the fetch calls served, failed ones included.
func (s *Simulation) Fetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *Simulation) Connect(ctx context.Context) (*Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failConnect != nil {
		return nil, syncerr.Connection(s.failConnect, "simulated connection failure")
	}
	s.connected = true
	company := s.company

	otelzap.Ctx(ctx).Debug("Connected to simulation", zap.String("company", company.Name))
	return &company, nil
}

func (s *Simulation) Fetch(ctx context.Context, rsid string, c catalog.Category) ([]catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++

	if !s.connected {
		return nil, syncerr.Connection(nil, "not connected: call Connect first")
	}
	desc, err := catalog.Describe(c)
	if err != nil {
		return nil, syncerr.UnknownCategory(string(c))
	}
	if err := lookupFailure(s.failFetch, rsid, c); err != nil {
		if errors.Is(err, syncerr.ErrConnection) {
			return nil, err
		}
		return nil, syncerr.RemoteFetch(err, rsid, string(c))
	}

	suite, ok := s.suites[rsid]
	if !ok {
		return nil, syncerr.RemoteFetch(errors.Newf("report suite %q not found", rsid), rsid, string(c))
	}

	items, err := catalog.FromRecords(desc, suite[c])
	if err != nil {
		return nil, syncerr.RemoteFetch(err, rsid, string(c))
	}
	return items, nil
}

func (s *Simulation) Write(ctx context.Context, rsid string, c catalog.Category, items []catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return syncerr.Connection(nil, "not connected: call Connect first")
	}
	desc, err := catalog.Describe(c)
	if err != nil {
		return syncerr.UnknownCategory(string(c))
	}
	if err := lookupFailure(s.failWrite, rsid, c); err != nil {
		if errors.Is(err, syncerr.ErrConnection) {
			return err
		}
		return syncerr.RemoteWrite(err, rsid, string(c))
	}

	suite, ok := s.suites[rsid]
	if !ok {
		return syncerr.RemoteWrite(errors.Newf("report suite %q not found", rsid), rsid, string(c))
	}

	if desc.Idempotent {
		existing, err := catalog.FromRecords(desc, suite[c])
		if err != nil {
			return syncerr.RemoteWrite(err, rsid, string(c))
		}
		suite[c] = catalog.ToRecords(desc, upsert(existing, items))
	} else {
		suite[c] = catalog.ToRecords(desc, items)
	}

	s.writes = append(s.writes, WriteRecord{RSID: rsid, Category: c, Items: len(items), At: time.Now().UTC()})

	otelzap.Ctx(ctx).Debug("Simulated write",
		zap.String("rsid", rsid),
		zap.String("category", string(c)),
		zap.Int("items", len(items)))
	return nil
}

func upsert(existing, incoming []catalog.Item) []catalog.Item {
	out := catalog.CloneItems(existing)
	index := make(map[string]int, len(out))
	for i, item := range out {
		index[item.Key] = i
	}
	for _, item := range incoming {
		if i, ok := index[item.Key]; ok {
			out[i] = item.Clone()
			continue
		}
		index[item.Key] = len(out)
		out = append(out, item.Clone())
	}
	return out
}

func setFailure(m map[failKey]error, key failKey, err error) {
	if err == nil {
		delete(m, key)
		return
	}
	m[key] = err
}

func lookupFailure(m map[failKey]error, rsid string, c catalog.Category) error {
	if err, ok := m[failKey{rsid, c}]; ok {
		return err
	}
	return m[failKey{rsid, ""}]
}
