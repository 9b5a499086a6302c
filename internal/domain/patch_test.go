package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/splitbuy/internal/domain"
)

func TestPatch(t *testing.T) {
	var absent domain.Patch[string]
	assert.False(t, absent.Present())
	assert.Equal(t, "keep", absent.Apply("keep"))

	cleared := domain.Clear[string]()
	assert.True(t, cleared.Present())
	assert.True(t, cleared.Cleared())
	_, ok := cleared.Get()
	assert.False(t, ok)
	assert.Equal(t, "", cleared.Apply("keep"))

	set := domain.Set("new")
	v, ok := set.Get()
	assert.True(t, ok)
	assert.Equal(t, "new", v)
	assert.False(t, set.Cleared())
	assert.Equal(t, "new", set.Apply("keep"))
}

func TestPaginationParams(t *testing.T) {
	page, limit := 3, 500
	p := domain.NewPaginationParams(&page, &limit)

	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 200, p.Offset())
	assert.Equal(t, domain.PaginationParams{Page: 1, Limit: 20}, domain.NewPaginationParams(nil, nil))

	assert.True(t, p.HasNext(301))
	assert.False(t, p.HasNext(300))
}

func TestPaginationParams_ZeroValue(t *testing.T) {
	var p domain.PaginationParams

	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, domain.PaginationParams{Page: 1, Limit: 20}, p.Normalize())
	assert.Equal(t, 0, domain.PaginationParams{Page: -3, Limit: 20}.Offset())
	assert.Equal(t, domain.PaginationParams{Page: 2, Limit: 100}, domain.PaginationParams{Page: 2, Limit: 1000}.Normalize())
}
