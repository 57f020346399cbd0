package sources

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"

	"gdpetl/internal/etl"
)

// ── Table selection ────────────────────────────────────────
// A page usually holds several tables. The selector decides which <tbody>
// is the data table; strategies are registered by name and chosen by
// configuration.

const (
	StrategyPosition = "position"
	StrategyHeader   = "header"
	StrategyColumns  = "columns"
)

// SelectorConfig configures a table selection strategy.
type SelectorConfig struct {
	Strategy string   `json:"strategy"`          // "position" | "header" | "columns"
	Index    int      `json:"index"`             // position: 0-based tbody index
	Headers  []string `json:"headers,omitempty"` // header: substrings every header must contain
	Columns  int      `json:"columns,omitempty"` // columns: exact td count of a data row
}

// TableSelector picks the authoritative table body out of a document.
// It returns *etl.StructureError when no body qualifies.
type TableSelector interface {
	Name() string
	Select(doc *goquery.Document) (*goquery.Selection, error)
}

// SelectorFactory builds a selector from its configuration.
type SelectorFactory func(cfg SelectorConfig) (TableSelector, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]SelectorFactory{}
)

// RegisterSelector registers a selection strategy by name.
// Called from init().
func RegisterSelector(name string, f SelectorFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// NewSelector builds the selector named by cfg.Strategy. An empty strategy
// means "position".
func NewSelector(cfg SelectorConfig) (TableSelector, error) {
	name := cfg.Strategy
	if name == "" {
		name = StrategyPosition
	}
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown table selector %q (known: %s)", name, strings.Join(ListSelectors(), ", "))
	}
	return f(cfg)
}

// ListSelectors returns the registered strategy names, sorted.
func ListSelectors() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterSelector(StrategyPosition, func(cfg SelectorConfig) (TableSelector, error) {
		if cfg.Index < 0 {
			return nil, fmt.Errorf("position selector: negative index %d", cfg.Index)
		}
		return &positionSelector{index: cfg.Index}, nil
	})
	RegisterSelector(StrategyHeader, func(cfg SelectorConfig) (TableSelector, error) {
		if len(cfg.Headers) == 0 {
			return nil, fmt.Errorf("header selector: no headers configured")
		}
		needles := make([]string, len(cfg.Headers))
		for i, h := range cfg.Headers {
			needles[i] = strings.ToLower(strings.TrimSpace(h))
		}
		return &headerSelector{needles: needles}, nil
	})
	RegisterSelector(StrategyColumns, func(cfg SelectorConfig) (TableSelector, error) {
		if cfg.Columns <= 0 {
			return nil, fmt.Errorf("columns selector: column count must be positive")
		}
		return &columnsSelector{count: cfg.Columns}, nil
	})
}

// positionSelector takes the n-th <tbody> in document order.
type positionSelector struct {
	index int
}

func (s *positionSelector) Name() string { return StrategyPosition }

func (s *positionSelector) Select(doc *goquery.Document) (*goquery.Selection, error) {
	bodies := doc.Find("tbody")
	if bodies.Length() <= s.index {
		return nil, &etl.StructureError{
			Reason: fmt.Sprintf("found %d table bodies, need at least %d", bodies.Length(), s.index+1),
		}
	}
	return bodies.Eq(s.index), nil
}

// headerSelector takes the first body whose own table has header cells
// matching every needle.
type headerSelector struct {
	needles []string
}

func (s *headerSelector) Name() string { return StrategyHeader }

func (s *headerSelector) Select(doc *goquery.Document) (*goquery.Selection, error) {
	var found *goquery.Selection
	doc.Find("tbody").EachWithBreak(func(_ int, body *goquery.Selection) bool {
		table := body.Closest("table")
		var headers []string
		ownCells(table, "th").Each(func(_ int, th *goquery.Selection) {
			headers = append(headers, strings.ToLower(collapseSpace(th.Text())))
		})
		if matchesAll(headers, s.needles) {
			found = body
			return false
		}
		return true
	})
	if found == nil {
		return nil, &etl.StructureError{
			Reason: fmt.Sprintf("no table has headers matching %q", s.needles),
		}
	}
	return found, nil
}

// columnsSelector takes the first body holding a row with exactly count
// data cells.
type columnsSelector struct {
	count int
}

func (s *columnsSelector) Name() string { return StrategyColumns }

func (s *columnsSelector) Select(doc *goquery.Document) (*goquery.Selection, error) {
	var found *goquery.Selection
	doc.Find("tbody").EachWithBreak(func(_ int, body *goquery.Selection) bool {
		ownRows(body).EachWithBreak(func(_ int, tr *goquery.Selection) bool {
			if tr.ChildrenFiltered("td").Length() == s.count {
				found = body
				return false
			}
			return true
		})
		return found == nil
	})
	if found == nil {
		return nil, &etl.StructureError{
			Reason: fmt.Sprintf("no table has a row with %d cells", s.count),
		}
	}
	return found, nil
}

// ownCells returns the cells matching sel that belong to table itself and
// not to a table nested inside it.
func ownCells(table *goquery.Selection, sel string) *goquery.Selection {
	return table.Find(sel).FilterFunction(func(_ int, c *goquery.Selection) bool {
		return c.Closest("table").IsSelection(table)
	})
}

// ownRows returns the rows of body excluding rows of nested tables.
func ownRows(body *goquery.Selection) *goquery.Selection {
	return body.Find("tr").FilterFunction(func(_ int, tr *goquery.Selection) bool {
		return tr.Closest("tbody").IsSelection(body)
	})
}

func matchesAll(headers, needles []string) bool {
	for _, n := range needles {
		ok := false
		for _, h := range headers {
			if strings.Contains(h, n) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
