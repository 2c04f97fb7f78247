package media

import "testing"

func TestPrefixResolver(t *testing.T) {
	r := NewPrefixResolver("/media")
	tests := map[string]string{
		"":                              "",
		"cards/characters/mage.png":     "/media/cards/characters/mage.png",
		"/cards/traps/pit.png":          "/media/cards/traps/pit.png",
		"/media/cards/x.png":            "/media/cards/x.png",
		"https://cdn.example.com/a.png": "https://cdn.example.com/a.png",
		"http://cdn.example.com/a.png":  "http://cdn.example.com/a.png",
	}
	for in, want := range tests {
		if got := r.URL(in); got != want {
			t.Errorf("URL(%q) = %q, want %q", in, got, want)
		}
	}
}
