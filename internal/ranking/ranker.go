package ranking

import (
	"sort"

	"github.com/maine/youtube_blog_worker/internal/video"
)

// Sort упорядочивает кандидатов: finalScore по убыванию, затем просмотры по убыванию,
// затем id лексикографически. Порядок детерминирован при любом входе.
func Sort(items []video.Scored) {
	sort.SliceStable(items, func(i, j int) bool {
		return Less(items[i], items[j])
	})
}

// Less сообщает, должен ли a стоять выше b.
func Less(a, b video.Scored) bool {
	if a.Score.Final != b.Score.Final {
		return a.Score.Final > b.Score.Final
	}
	if a.Detail.ViewCount != b.Detail.ViewCount {
		return a.Detail.ViewCount > b.Detail.ViewCount
	}
	return a.Detail.ID < b.Detail.ID
}

// Top возвращает первые n элементов уже отсортированного списка.
func Top(items []video.Scored, n int) []video.Scored {
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[:n]
}
