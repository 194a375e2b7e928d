package buyback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		isbn13  string
		title   string
		year    string
		want    string
	}{
		{
			name:    "plain title",
			baseURL: "https://vykupujeme-online.sk",
			isbn13:  "9780439708180",
			title:   "Harry Potter and the Sorcerer's Stone",
			year:    "1999",
			want:    "https://vykupujeme-online.sk/9780439708180-harry-potter-and-the-sorcerer-s-stone-1999",
		},
		{
			name:    "diacritics are stripped",
			baseURL: "https://vykupujeme-online.sk",
			isbn13:  "9788055140015",
			title:   "Malý princ",
			year:    "2013",
			want:    "https://vykupujeme-online.sk/9788055140015-maly-princ-2013",
		},
		{
			name:    "trailing slash on base",
			baseURL: "https://example.test/",
			isbn13:  "9780441172719",
			title:   "Dune",
			year:    "0000",
			want:    "https://example.test/9780441172719-dune-0000",
		},
		{
			name:   "empty base uses the default site",
			isbn13: "9780441172719",
			title:  "Dune",
			year:   "1990",
			want:   DefaultBaseURL + "/9780441172719-dune-1990",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, BuildURL(tt.baseURL, tt.isbn13, tt.title, tt.year))
		})
	}
}

func TestBuildURLDeterministic(t *testing.T) {
	t.Parallel()

	first := BuildURL(DefaultBaseURL, "9780306406157", "Ťažká Kniha!", "2001")
	second := BuildURL(DefaultBaseURL, "9780306406157", "Ťažká Kniha!", "2001")
	assert.Equal(t, first, second)
	assert.Equal(t, DefaultBaseURL+"/9780306406157-tazka-kniha-2001", first)
}
