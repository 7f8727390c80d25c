package patterns_test

import (
	"strings"
	"testing"

	"github.com/aretw0/parley/pkg/patterns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_AddAndGet(t *testing.T) {
	repo := patterns.NewRepository()

	require.NoError(t, repo.Add(patterns.DomainPattern{
		Domain:      "commerce",
		Description: "Product catalog and orders",
		Keywords:    []string{"laptop", "order"},
		Phrases:     []string{"do you have"},
		Indicators:  []string{"price"},
	}))

	assert.Equal(t, []string{"laptop", "order"}, repo.Keywords("commerce"))
	assert.Equal(t, []string{"do you have"}, repo.Phrases("commerce"))
	assert.Equal(t, []string{"price"}, repo.Indicators("commerce"))

	// Unknown domains return empty, never panic.
	assert.Nil(t, repo.Keywords("nope"))
}

func TestRepository_AddRequiresDomain(t *testing.T) {
	repo := patterns.NewRepository()
	assert.Error(t, repo.Add(patterns.DomainPattern{}))
}

func TestRepository_ListDomainsSorted(t *testing.T) {
	repo := patterns.NewRepository()
	for _, d := range []string{"healthcare", "commerce", "credit"} {
		require.NoError(t, repo.Add(patterns.DomainPattern{Domain: d}))
	}
	assert.Equal(t, []string{"commerce", "credit", "healthcare"}, repo.ListDomains())
}

func TestRepository_GetReturnsCopy(t *testing.T) {
	repo := patterns.NewRepository()
	require.NoError(t, repo.Add(patterns.DomainPattern{
		Domain:   "credit",
		Keywords: []string{"balance"},
	}))

	p, ok := repo.Get("credit")
	require.True(t, ok)
	p.Keywords[0] = "mutated"

	assert.Equal(t, []string{"balance"}, repo.Keywords("credit"))
}

func TestRepository_Update(t *testing.T) {
	repo := patterns.NewRepository()
	require.NoError(t, repo.Add(patterns.DomainPattern{Domain: "credit", Keywords: []string{"balance"}}))
	require.NoError(t, repo.Add(patterns.DomainPattern{Domain: "credit", Keywords: []string{"loan"}}))

	assert.Equal(t, []string{"loan"}, repo.Keywords("credit"))
	assert.Len(t, repo.ListDomains(), 1)
}

func TestLoad_YAML(t *testing.T) {
	doc := `
domains:
  - domain: commerce
    description: Catalog and orders
    keywords: [laptop, phone]
    phrases: ["do you have"]
  - domain: credit
    keywords: [balance, loan]
    indicators: [account]
`
	repo, err := patterns.Load(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"commerce", "credit"}, repo.ListDomains())
	assert.Equal(t, []string{"laptop", "phone"}, repo.Keywords("commerce"))
	assert.Equal(t, []string{"account"}, repo.Indicators("credit"))
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	doc := `
domains:
  - domain: commerce
    keyword: typo
`
	_, err := patterns.Load(strings.NewReader(doc))
	assert.Error(t, err)
}
