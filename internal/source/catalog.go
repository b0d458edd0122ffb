package source

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/model"
)

// Catalog serves candidates from an XLSX merchant export with two sheets:
//
//	products: name | brand | category | price | stars | url | in_stock
//	reviews:  product | text | stars | date | helpful | verified
//
// The first row of each sheet is a header and is skipped.
type Catalog struct {
	name     string
	products []catalogRow
}

type catalogRow struct {
	fixtureProduct
	category string
}

// NewCatalog loads the export at path.
func NewCatalog(path string) (*Catalog, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open file")
	}

	productSheet, ok := f.Sheet["products"]
	if !ok {
		return nil, eris.New("catalog: missing products sheet")
	}

	c := &Catalog{name: "catalog"}
	byName := make(map[string]int)

	for i, row := range productSheet.Rows {
		if i == 0 {
			continue
		}
		cells := rowToStrings(row)
		if len(cells) < 3 || cells[0] == "" {
			continue
		}
		p := catalogRow{
			fixtureProduct: fixtureProduct{
				Name:  cells[0],
				Brand: cells[1],
				URL:   cellAt(cells, 5),
			},
			category: cells[2],
		}
		if v, err := strconv.ParseFloat(cellAt(cells, 3), 64); err == nil {
			p.Price = &v
		}
		if v, err := strconv.ParseFloat(cellAt(cells, 4), 64); err == nil {
			p.Stars = &v
		}
		if strings.EqualFold(cellAt(cells, 6), "false") {
			off := false
			p.InStock = &off
		}
		byName[strings.ToLower(p.Name)] = len(c.products)
		c.products = append(c.products, p)
	}

	if reviewSheet, ok := f.Sheet["reviews"]; ok {
		for i, row := range reviewSheet.Rows {
			if i == 0 {
				continue
			}
			cells := rowToStrings(row)
			if len(cells) < 2 {
				continue
			}
			idx, ok := byName[strings.ToLower(cells[0])]
			if !ok {
				continue
			}
			r := fixtureReview{
				Text:     cells[1],
				Date:     cellAt(cells, 3),
				Verified: strings.EqualFold(cellAt(cells, 5), "true"),
			}
			if v, err := strconv.ParseFloat(cellAt(cells, 2), 64); err == nil {
				r.Stars = v
			}
			if v, err := strconv.Atoi(cellAt(cells, 4)); err == nil {
				r.Helpful = v
			}
			c.products[idx].Reviews = append(c.products[idx].Reviews, r)
		}
	}

	return c, nil
}

func (c *Catalog) Name() string {
	return c.name
}

func (c *Catalog) Fetch(ctx context.Context, q Query) ([]model.ProductCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []model.ProductCandidate
	for _, p := range c.products {
		if q.Category != "" && p.category != "" && p.category != q.Category {
			continue
		}
		if q.Category == "" && !matchesTerms(p.Name+" "+p.Brand, q.Terms) {
			continue
		}
		out = append(out, c.toCandidate(p, q.Trace))
	}

	zap.L().Debug("catalog fetch",
		zap.String("request_id", q.Trace.RequestID),
		zap.String("category", q.Category),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

func (c *Catalog) toCandidate(p catalogRow, trace model.Trace) model.ProductCandidate {
	out := model.ProductCandidate{
		Trace: trace.Next(model.StepDiscover, c.name),
		Name:  p.Name,
		Brand: p.Brand,
		Price: p.Price,
		Stars: p.Stars,
		Meta:  map[string]string{"source": c.name},
	}
	if p.URL != "" {
		out.URLs = map[string]string{c.name: p.URL}
	}
	if p.InStock != nil && !*p.InStock {
		out.Meta["in_stock"] = "false"
	}
	for _, r := range p.Reviews {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			date = time.Time{}
		}
		out.Reviews = append(out.Reviews, model.Review{
			Text:     r.Text,
			Stars:    r.Stars,
			Date:     date,
			Helpful:  r.Helpful,
			Verified: r.Verified,
		})
	}
	return out
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func cellAt(cells []string, i int) string {
	if i < len(cells) {
		return strings.TrimSpace(cells[i])
	}
	return ""
}
