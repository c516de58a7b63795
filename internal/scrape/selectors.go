package scrape

// Selector fallback lists: the target site's markup drifts between page
// variants, so every logical field is extracted by an ordered list of
// strategies, first non-empty result wins. When every strategy misses, the
// field degrades to a fixed sentinel instead of failing the scrape.

// Field sentinels.
const (
	SentinelTitle = "Title Not Available"
	SentinelPrice = "Price Not Available"
	SentinelTime  = "Time Not Available"
)

// Strategy locates one candidate value inside a node.
type Strategy interface {
	Locate(n Node) (string, bool)
}

// TextOf extracts the trimmed text of the first element matching the
// selector.
type TextOf string

func (s TextOf) Locate(n Node) (string, bool) {
	el, ok := n.First(string(s))
	if !ok {
		return "", false
	}
	if t := el.Text(); t != "" {
		return t, true
	}
	return "", false
}

// AttrOf extracts an attribute of the first element matching the selector.
type AttrOf struct {
	Selector string
	Attr     string
}

func (s AttrOf) Locate(n Node) (string, bool) {
	el, ok := n.First(s.Selector)
	if !ok {
		return "", false
	}
	if v := el.Attr(s.Attr); v != "" {
		return v, true
	}
	return "", false
}

// Fallback tries its strategies in priority order.
type Fallback struct {
	Strategies []Strategy
	Sentinel   string
}

// Extract returns the first strategy hit, or the sentinel when all miss.
func (f Fallback) Extract(n Node) string {
	if v, ok := f.Locate(n); ok {
		return v
	}
	return f.Sentinel
}

// Locate returns the first strategy hit without sentinel substitution.
func (f Fallback) Locate(n Node) (string, bool) {
	for _, s := range f.Strategies {
		if v, ok := s.Locate(n); ok {
			return v, true
		}
	}
	return "", false
}

func texts(selectors ...string) []Strategy {
	out := make([]Strategy, len(selectors))
	for i, s := range selectors {
		out[i] = TextOf(s)
	}
	return out
}

// Field extractors for search result cards and detail pages. Primary
// selectors match the current listing markup; the rest cover older
// variants the site still serves intermittently.
var (
	cardSelectors = []string{"li.Product", ".Product", "[class*='Product']", ".g-thumb"}

	noResultsSelectors = []string{".Notice--empty", ".Empty__text", "#NoResult"}

	totalCountExtractor = Fallback{
		Strategies: texts(".SearchMode__result", ".Tab__subText", ".total"),
	}

	cardLinkExtractor = Fallback{
		Strategies: []Strategy{
			AttrOf{"a.Product__titleLink", "href"},
			AttrOf{"a[href*='/auction/']", "href"},
			AttrOf{"a", "href"},
		},
	}

	cardTitleExtractor = Fallback{
		Strategies: append(texts(".Product__titleLink", ".Product__title", "h3"),
			AttrOf{"a.Product__titleLink", "title"}),
		Sentinel: SentinelTitle,
	}

	cardImageExtractor = Fallback{
		Strategies: []Strategy{
			AttrOf{".Product__imageData", "src"},
			AttrOf{"img", "src"},
			AttrOf{"img", "data-src"},
		},
	}

	cardPriceExtractor = Fallback{
		Strategies: texts(".Product__priceValue", ".Product__price", "[class*='price']"),
		Sentinel:   SentinelPrice,
	}

	cardTimeExtractor = Fallback{
		Strategies: texts(".Product__time", ".Product__remainingTime", "[class*='time']"),
		Sentinel:   SentinelTime,
	}

	detailPriceExtractor = Fallback{
		Strategies: texts(".Price--current .Price__value", ".Price__value", "[class*='Price'] dd"),
		Sentinel:   SentinelPrice,
	}

	detailTimeExtractor = Fallback{
		Strategies: texts(".Time__remaining", ".Count__number", "[class*='remaining']"),
		Sentinel:   SentinelTime,
	}
)
