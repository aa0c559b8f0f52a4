package shared

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPagination_Offset(t *testing.T) {
	tests := []struct {
		name string
		page Pagination
		want int
	}{
		{"zero page", Pagination{Page: 0, PageSize: 10}, 0},
		{"first page", Pagination{Page: 1, PageSize: 10}, 0},
		{"third page", Pagination{Page: 3, PageSize: 25}, 50},
		{"default size", Pagination{Page: 2}, DefaultPageSize},
		{"size capped", Pagination{Page: 2, PageSize: 1000}, MaxPageSize},
		{"last page before saturation", Pagination{Page: MaxPage, PageSize: MaxPageSize}, (MaxPage - 1) * MaxPageSize},
		{"saturates", Pagination{Page: 1000000000000000001, PageSize: 10}, math.MaxInt},
		{"saturates at max int", Pagination{Page: math.MaxInt, PageSize: MaxPageSize}, math.MaxInt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.page.Offset()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 0)
		})
	}
}

func TestNewPagination_ClampsPage(t *testing.T) {
	assert.Equal(t, 1, NewPagination(-5, 10).Page)
	assert.Equal(t, MaxPage, NewPagination(math.MaxInt, 10).Page)

	p := NewPagination(math.MaxInt, MaxPageSize)
	assert.GreaterOrEqual(t, p.Offset(), 0)
}

func TestNewPageInfo(t *testing.T) {
	info := NewPageInfo(NewPagination(2, 10), 25)
	assert.Equal(t, 3, info.TotalPages)
	assert.Equal(t, 2, info.CurrentPage)
	if assert.NotNil(t, info.PreviousPage) {
		assert.Equal(t, 1, *info.PreviousPage)
	}
	if assert.NotNil(t, info.NextPage) {
		assert.Equal(t, 3, *info.NextPage)
	}

	far := NewPageInfo(NewPagination(MaxPage, MaxPageSize), 5)
	assert.Nil(t, far.NextPage)
}
