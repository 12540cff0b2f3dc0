package pagination_test

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/perse-cms/perse/internal/models"
	"github.com/perse-cms/perse/internal/pkg/pagination"
	"github.com/perse-cms/perse/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query string
		want  pagination.Query
	}{
		{"", pagination.Query{Page: 1, Size: 10}},
		{"?page=3&size=25", pagination.Query{Page: 3, Size: 25}},
		{"?page=0&size=0", pagination.Query{Page: 1, Size: 10}},
		{"?page=-2&size=1000", pagination.Query{Page: 1, Size: pagination.MaxSize}},
		{"?page=abc&size=xyz", pagination.Query{Page: 1, Size: 10}},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/views"+tt.query, nil)
		assert.Equal(t, tt.want, pagination.FromContext(c), "query=%q", tt.query)
	}
}

func TestMeta(t *testing.T) {
	m := pagination.Meta(21, pagination.Query{Page: 2, Size: 10})
	assert.Equal(t, 3, m.TotalPage)
	assert.True(t, m.HasNextPage)

	m = pagination.Meta(0, pagination.Query{Page: 1, Size: 10})
	assert.Equal(t, 0, m.TotalPage)
	assert.False(t, m.HasNextPage)
}

func TestPaginate(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	for i := 0; i < 7; i++ {
		require.NoError(t, db.Create(&models.ViewModel{
			Title: fmt.Sprintf("v%d", i), Route: fmt.Sprintf("v%d", i), Visibility: models.VisibilityPublic,
		}).Error)
	}

	query := db.Model(&models.ViewModel{}).Order("title ASC")
	var page []models.ViewModel
	meta, err := pagination.Paginate(query, pagination.Query{Page: 3, Size: 3}, &page)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "v6", page[0].Title)
	assert.Equal(t, int64(7), meta.Total)
	assert.Equal(t, 3, meta.TotalPage)
	assert.False(t, meta.HasNextPage)

	// the base query is reusable after paginating
	var again []models.ViewModel
	_, err = pagination.Paginate(query, pagination.Query{Page: 1, Size: 2}, &again)
	require.NoError(t, err)
	require.Len(t, again, 2)
	assert.Equal(t, "v0", again[0].Title)
}
