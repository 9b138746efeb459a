package steam

import (
	"encoding/json"
	"strconv"
)

// App is one entry of the full catalog listing.
type App struct {
	ID   int64  `json:"appid"`
	Name string `json:"name"`
}

type appListResponse struct {
	AppList struct {
		Apps []App `json:"apps"`
	} `json:"applist"`
}

// Flag is the provider's loosely-typed success flag: depending on the
// endpoint and payload version it arrives as a bool, a number or a string.
// Unknown shapes decode to false rather than erroring.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	switch {
	case string(data) == "true":
		*f = true
	case string(data) == "false" || string(data) == "null":
		*f = false
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err == nil {
			*f = n.String() == "1"
			return nil
		}
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*f = s == "1" || s == "true"
			return nil
		}
		*f = false
	}
	return nil
}

// AppDetails is the typed subset of a store details payload the pipeline
// inspects. Missing fields default to zero values; the full payload is kept
// raw for persistence.
type AppDetails struct {
	AppID            int64            `json:"steam_appid"`
	Name             string           `json:"name"`
	Type             string           `json:"type"`
	ShortDescription string           `json:"short_description"`
	Recommendations  *Recommendations `json:"recommendations"`
	ReleaseDate      *ReleaseDate     `json:"release_date"`
	Genres           []Tag            `json:"genres"`
	Categories       []Tag            `json:"categories"`
	PriceOverview    *PriceOverview   `json:"price_overview"`
}

// Recommendations carries the aggregate recommendation count.
type Recommendations struct {
	Total int `json:"total"`
}

// ReleaseDate is the store's release date descriptor.
type ReleaseDate struct {
	Date       string `json:"date"`
	ComingSoon bool   `json:"coming_soon"`
}

// Tag is a category or genre descriptor. Ids arrive as numbers or strings
// depending on the field.
type Tag struct {
	ID          json.RawMessage `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
}

// PriceOverview is the store's price descriptor in minor currency units.
type PriceOverview struct {
	Final    int    `json:"final"`
	Currency string `json:"currency"`
}

// DetailsResult pairs the raw details envelope (persisted as-is) with the
// decoded fields the pipeline needs.
type DetailsResult struct {
	Raw     json.RawMessage
	Success bool
	Data    *AppDetails
}

type detailsEnvelope struct {
	Success Flag            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// ReviewsPage is one cursor page of reviews. Individual reviews stay raw so
// sanitization can preserve unknown fields and their order.
type ReviewsPage struct {
	Success Flag              `json:"success"`
	Reviews []json.RawMessage `json:"reviews"`
	Cursor  string            `json:"cursor"`
}

// NewsItem is one dated feed entry; the body carries HTML.
type NewsItem struct {
	GID       string `json:"gid"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Author    string `json:"author"`
	Date      int64  `json:"date"`
	FeedLabel string `json:"feedlabel"`
	FeedName  string `json:"feedname"`
	Contents  string `json:"contents"`
}

// NewsResult pairs the raw feed payload with the decoded item count.
type NewsResult struct {
	Raw   json.RawMessage
	Items []NewsItem
}

type newsResponse struct {
	AppNews struct {
		AppID int64      `json:"appid"`
		Items []NewsItem `json:"newsitems"`
	} `json:"appnews"`
}

func itemKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
