package youtube

// SearchQuery: параметры одного вызова search.list.
type SearchQuery struct {
	Keyword        string
	MaxResults     int
	PageToken      string
	License        string
	Duration       string
	Order          string
	SafeSearch     string
	Embeddable     bool
	PublishedAfter string // RFC3339, пусто: без ограничения
}

// SearchPage: одна страница результатов поиска.
type SearchPage struct {
	Items         []SearchItem `json:"items"`
	NextPageToken string       `json:"nextPageToken"`
}

// SearchItem: элемент выдачи search.list.
type SearchItem struct {
	ID struct {
		Kind    string `json:"kind"`
		VideoID string `json:"videoId"`
	} `json:"id"`
	Snippet Snippet `json:"snippet"`
}

// Snippet: общие поля snippet для search.list и videos.list.
type Snippet struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channelTitle"`
	PublishedAt  string `json:"publishedAt"`
}

// VideoItem: элемент выдачи videos.list.
type VideoItem struct {
	ID             string         `json:"id"`
	Snippet        Snippet        `json:"snippet"`
	ContentDetails ContentDetails `json:"contentDetails"`
	Statistics     Statistics     `json:"statistics"`
	Status         Status         `json:"status"`
}

// ContentDetails содержит длительность в формате ISO-8601.
type ContentDetails struct {
	Duration string `json:"duration"`
}

// Statistics: счётчики приходят строками.
type Statistics struct {
	ViewCount string `json:"viewCount"`
	LikeCount string `json:"likeCount"`
}

// Status: флаги публикации.
type Status struct {
	Embeddable    bool   `json:"embeddable"`
	PrivacyStatus string `json:"privacyStatus"`
}

type videosResponse struct {
	Items []VideoItem `json:"items"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}
