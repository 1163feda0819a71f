package transcript

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/maine/youtube_blog_worker/internal/retry"
)

const trackList = `<?xml version="1.0" encoding="utf-8" ?>
<transcript_list docid="123">
<track id="0" name="" lang_code="de" lang_original="Deutsch" lang_translated="German"/>
<track id="1" name="CC" lang_code="en-GB" lang_original="English (UK)" lang_translated="English (UK)"/>
</transcript_list>`

const trackBody = `<?xml version="1.0" encoding="utf-8" ?>
<transcript>
<text start="0.5" dur="2.1">So today we&amp;#39;re talking about</text>
<text start="2.6" dur="3.0">how to   save money
on groceries</text>
<text start="5.6" dur="1.0"></text>
</transcript>`

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("type") == "list":
			_, _ = w.Write([]byte(trackList))
		case q.Get("lang") == "en-GB" && q.Get("name") == "CC":
			_, _ = w.Write([]byte(trackBody))
		default:
			t.Errorf("unexpected request %s", r.URL.RawQuery)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), srv.URL, nil, retry.Policy{MaxAttempts: 1})
	got, err := f.Fetch(context.Background(), "vid")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := "So today we're talking about how to save money on groceries"
	if got != want {
		t.Errorf("Fetch() = %q, want %q", got, want)
	}
}

func TestFetcher_Fetch_NoEnglishTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<transcript_list><track id="0" name="" lang_code="fr"/></transcript_list>`))
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), srv.URL, nil, retry.Policy{MaxAttempts: 1})
	if _, err := f.Fetch(context.Background(), "vid"); !errors.Is(err, ErrNotAvailable) {
		t.Errorf("Fetch() error = %v, want ErrNotAvailable", err)
	}
}

func TestPickTrack(t *testing.T) {
	tracks := []Track{{LangCode: "en-AU"}, {LangCode: "en-US"}, {LangCode: "es"}}
	if got, _ := pickTrack(tracks, []string{"en", "en-US", "en-GB"}); got.LangCode != "en-US" {
		t.Errorf("pickTrack() = %q, want en-US", got.LangCode)
	}
	if got, _ := pickTrack(tracks[:1], []string{"en"}); got.LangCode != "en-AU" {
		t.Errorf("pickTrack() fallback = %q, want en-AU", got.LangCode)
	}
	if _, ok := pickTrack(tracks[2:], []string{"en"}); ok {
		t.Error("pickTrack() should not pick es")
	}
}

func TestIsEnglish(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"english", "So the first thing you want to do is look at your budget and see what you can cut.", true},
		{"spanish", "Hoy vamos a hablar sobre cómo ahorrar dinero en el supermercado cada semana.", false},
		{"cyrillic", "Сегодня мы поговорим о том, как экономить деньги на продуктах.", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEnglish(tt.text); got != tt.want {
				t.Errorf("IsEnglish() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQualify(t *testing.T) {
	sentence := "this is what you need to know about the plan and it is simple "
	words := len(strings.Fields(sentence))

	short := strings.Repeat(sentence, 199/words)
	long := strings.Repeat(sentence, 200/words+1)
	longer := strings.Repeat(sentence, 500/words+1)

	if Qualify(short, 0) {
		t.Error("fewer than 200 words must not qualify")
	}
	if !Qualify(long, 0) {
		t.Error("200+ english words must qualify with min_words 0")
	}
	if Qualify(long, 1000) {
		t.Error("needs 500 words when min_words is 1000")
	}
	if !Qualify(longer, 1000) {
		t.Error("500+ words must qualify with min_words 1000")
	}
}
