package models

// Entry is one daily astronomy picture record as served by the APOD API
type Entry struct {
	Date           string `json:"date"`
	Title          string `json:"title"`
	Url            string `json:"url"`
	HdUrl          string `json:"hdurl,omitempty"`
	Explanation    string `json:"explanation"`
	MediaType      string `json:"media_type"`
	Copyright      string `json:"copyright,omitempty"`
	ThumbnailUrl   string `json:"thumbnail_url,omitempty"`
	ServiceVersion string `json:"service_version,omitempty"`
}

// Media types reported by the API
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// FeedResponse is the wire form of the aggregated feed state.
// Entries is null until the first page has arrived.
type FeedResponse struct {
	Entries          []Entry `json:"entries"`
	IsLoadingInitial bool    `json:"isLoadingInitial"`
	IsLoadingMore    bool    `json:"isLoadingMore"`
	HasNextPage      bool    `json:"hasNextPage"`
	Error            *string `json:"error,omitempty"`
}

// SettingsResponse backs the settings view. The API key itself is never exposed.
type SettingsResponse struct {
	Title            string `json:"title"`
	ApiHost          string `json:"apiHost"`
	PersonalKey      bool   `json:"personalKey"`
	RequestsPerHour  int    `json:"requestsPerHour"`
	RetryCount       int    `json:"retryCount"`
	ServiceUserAgent string `json:"userAgent"`
}
