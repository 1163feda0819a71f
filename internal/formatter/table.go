package formatter

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/maine/youtube_blog_worker/internal/video"
)

// maxTableTitleWidth: ширина колонки с названием в консольной таблице.
const maxTableTitleWidth = 60

// ScoreTable рисует выровненную таблицу оценок для консоли.
// Ширина считается в экранных ячейках, чтобы CJK и эмодзи в названиях не ломали колонки.
func ScoreTable(rows []video.Scored) string {
	table := [][]string{{"#", "VIDEO", "FINAL", "ENG", "LEN", "AGE", "ELIGIBLE", "TITLE"}}
	for i, r := range rows {
		table = append(table, []string{
			fmt.Sprintf("%d", i+1),
			r.Detail.ID,
			fmt.Sprintf("%.3f", r.Score.Final),
			fmt.Sprintf("%.2f", r.Score.Engagement),
			fmt.Sprintf("%.2f", r.Score.Length),
			fmt.Sprintf("%.1f", r.Score.Age),
			fmt.Sprintf("%t", r.Score.Eligible),
			runewidth.Truncate(strings.Join(strings.Fields(r.Detail.Title), " "), maxTableTitleWidth, ellipsis),
		})
	}

	widths := make([]int, len(table[0]))
	for _, row := range table {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	for _, row := range table {
		for i, cell := range row {
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(cell)
			// Последнюю колонку не добиваем пробелами
			if i < len(row)-1 {
				sb.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
