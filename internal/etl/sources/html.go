package sources

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"gdpetl/internal/etl"
)

// ── HTML Table Extractor ───────────────────────────────────
// Reads (country, gdp) rows from the table body chosen by a TableSelector.

var tracer = otel.Tracer("gdpetl/internal/etl/sources")

// DefaultPlaceholder is the glyph the source uses for "no data".
const DefaultPlaceholder = "—"

// gdpCell is the 0-based cell holding the GDP figure.
const gdpCell = 2

// HTMLExtractor implements etl.Extractor over goquery.
type HTMLExtractor struct {
	Selector    TableSelector
	Placeholder string
}

// NewHTMLExtractor returns an extractor using selector. An empty placeholder
// means DefaultPlaceholder.
func NewHTMLExtractor(selector TableSelector, placeholder string) *HTMLExtractor {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &HTMLExtractor{Selector: selector, Placeholder: placeholder}
}

func (x *HTMLExtractor) Extract(ctx context.Context, markup []byte, columns []string) (etl.RawTable, error) {
	_, span := tracer.Start(ctx, "HTMLExtractor.Extract")
	defer span.End()

	table, err := x.extract(markup, columns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		return etl.RawTable{}, err
	}
	span.SetAttributes(
		attribute.String("selector", x.Selector.Name()),
		attribute.Int("rows", len(table.Records)),
	)
	return table, nil
}

func (x *HTMLExtractor) extract(markup []byte, columns []string) (etl.RawTable, error) {
	if len(columns) != 2 {
		return etl.RawTable{}, &etl.StructureError{
			Reason: fmt.Sprintf("expected 2 column names, got %d", len(columns)),
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return etl.RawTable{}, fmt.Errorf("parse html: %w", err)
	}

	body, err := x.Selector.Select(doc)
	if err != nil {
		return etl.RawTable{}, err
	}

	out := etl.RawTable{Columns: append([]string(nil), columns...)}
	var rowErr error
	body.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return true // header or separator row
		}
		anchor := cells.Eq(0).Find("a").First()
		if anchor.Length() == 0 {
			return true // not a country row: footnotes, colspan notes, aggregates
		}
		if cells.Length() <= gdpCell {
			rowErr = &etl.StructureError{
				Reason: fmt.Sprintf("row %d has %d cells, need at least %d", i, cells.Length(), gdpCell+1),
			}
			return false
		}
		gdp := cells.Eq(gdpCell)
		if x.isPlaceholder(gdp) {
			return true
		}

		out.Records = append(out.Records, etl.RawRecord{
			Country: firstText(anchor),
			GDPText: firstText(gdp),
		})
		return true
	})
	if rowErr != nil {
		return etl.RawTable{}, rowErr
	}
	return out, nil
}

func (x *HTMLExtractor) isPlaceholder(cell *goquery.Selection) bool {
	return strings.TrimSpace(cell.Text()) == x.Placeholder || firstText(cell) == x.Placeholder
}

// firstText returns the trimmed text of the first child node of sel. Source
// cells often carry footnote markers after the value; those are ignored.
func firstText(sel *goquery.Selection) string {
	first := sel.Contents().First()
	if first.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(first.Text())
}
