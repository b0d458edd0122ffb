package source

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/model"
)

// fixtureFile is the on-disk shape of a review pool.
type fixtureFile struct {
	Category string           `json:"category"`
	Products []fixtureProduct `json:"products"`
}

type fixtureProduct struct {
	Name    string          `json:"name"`
	Brand   string          `json:"brand"`
	Price   *float64        `json:"price"`
	Stars   *float64        `json:"stars"`
	URL     string          `json:"url"`
	InStock *bool           `json:"in_stock"`
	Reviews []fixtureReview `json:"reviews"`
}

type fixtureReview struct {
	Text     string  `json:"text"`
	Stars    float64 `json:"stars"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Helpful  int     `json:"helpful"`
	Verified bool    `json:"verified"`
}

// Fixture serves candidates from JSON review pools. It is the offline
// source used for demos and tests.
type Fixture struct {
	name  string
	pools map[string][]fixtureProduct // category -> products
}

// NewFixture loads the given pool files. Missing files are a hard error;
// a fixture source with silently empty pools hides config mistakes.
func NewFixture(paths ...string) (*Fixture, error) {
	f := &Fixture{name: "fixture", pools: make(map[string][]fixtureProduct)}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "fixture: read %s", path)
		}
		var file fixtureFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, eris.Wrapf(err, "fixture: parse %s", path)
		}
		f.pools[file.Category] = append(f.pools[file.Category], file.Products...)
	}
	return f, nil
}

// NewFixtureFromPools builds a fixture source directly from in-memory
// pools. Test helper.
func NewFixtureFromPools(pools map[string][]model.ProductCandidate) *Fixture {
	f := &Fixture{name: "fixture", pools: make(map[string][]fixtureProduct)}
	for category, products := range pools {
		for _, p := range products {
			fp := fixtureProduct{
				Name:  p.Name,
				Brand: p.Brand,
				Price: p.Price,
				Stars: p.Stars,
			}
			for _, u := range p.URLs {
				fp.URL = u
				break
			}
			if p.Meta["in_stock"] == "false" {
				off := false
				fp.InStock = &off
			}
			for _, r := range p.Reviews {
				fp.Reviews = append(fp.Reviews, fixtureReview{
					Text:     r.Text,
					Stars:    r.Stars,
					Date:     r.Date.Format("2006-01-02"),
					Helpful:  r.Helpful,
					Verified: r.Verified,
				})
			}
			f.pools[category] = append(f.pools[category], fp)
		}
	}
	return f
}

func (f *Fixture) Name() string {
	return f.name
}

func (f *Fixture) Fetch(ctx context.Context, q Query) ([]model.ProductCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	products, ok := f.pools[q.Category]
	if !ok {
		// No pool for the category: match terms against every pool.
		for _, pool := range f.pools {
			products = append(products, pool...)
		}
	}

	var out []model.ProductCandidate
	for _, p := range products {
		if !ok && !matchesTerms(p.Name+" "+p.Brand, q.Terms) {
			continue
		}
		out = append(out, f.toCandidate(p, q.Trace))
	}

	zap.L().Debug("fixture fetch",
		zap.String("request_id", q.Trace.RequestID),
		zap.String("category", q.Category),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

func (f *Fixture) toCandidate(p fixtureProduct, trace model.Trace) model.ProductCandidate {
	c := model.ProductCandidate{
		Trace: trace.Next(model.StepDiscover, f.name),
		Name:  p.Name,
		Brand: p.Brand,
		Price: p.Price,
		Stars: p.Stars,
		Meta:  map[string]string{"source": f.name},
	}
	if p.URL != "" {
		c.URLs = map[string]string{f.name: p.URL}
	}
	if p.InStock != nil && !*p.InStock {
		c.Meta["in_stock"] = "false"
	}
	for _, r := range p.Reviews {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			date = time.Time{}
		}
		c.Reviews = append(c.Reviews, model.Review{
			Text:     r.Text,
			Stars:    r.Stars,
			Date:     date,
			Helpful:  r.Helpful,
			Verified: r.Verified,
		})
	}
	return c
}

func matchesTerms(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		for _, word := range strings.Fields(strings.ToLower(term)) {
			if strings.Contains(lower, word) {
				return true
			}
		}
	}
	return false
}
