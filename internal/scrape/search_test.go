package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"aucbid/pkg/models"
)

func testEngine() *Engine {
	return NewEngine(nil, EngineOptions{
		BaseURL:    "https://auctions.yahoo.co.jp",
		NavTimeout: 25 * time.Second,
	})
}

func intPtr(n int) *int { return &n }

func TestBuildSearchURLFirstPage(t *testing.T) {
	e := testEngine()

	got := e.buildSearchURL(models.SearchTerm{Term: "カメラ"}, 1, 50)

	assert.Contains(t, got, "https://auctions.yahoo.co.jp/search/search?")
	assert.Contains(t, got, "n=50")
	assert.NotContains(t, got, "b=", "first page must not carry a begin index")
}

func TestBuildSearchURLPagination(t *testing.T) {
	e := testEngine()

	got := e.buildSearchURL(models.SearchTerm{Term: "watch"}, 3, 50)

	// Page 3 with 50 per page starts at item 101.
	assert.Contains(t, got, "b=101")
	assert.Contains(t, got, "p=watch")
}

func TestBuildSearchURLPriceBounds(t *testing.T) {
	e := testEngine()

	term := models.SearchTerm{Term: "lens", MinPrice: intPtr(1000), MaxPrice: intPtr(50000)}
	got := e.buildSearchURL(term, 1, 20)

	assert.Contains(t, got, "aucminprice=1000")
	assert.Contains(t, got, "aucmaxprice=50000")
}

func TestStripQuery(t *testing.T) {
	assert.Equal(t, "https://img.example.jp/a.jpg", stripQuery("https://img.example.jp/a.jpg?w=300"))
	assert.Equal(t, "https://img.example.jp/a.jpg", stripQuery("https://img.example.jp/a.jpg"))
}
