package slug

import "testing"

func TestFileName(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"movies":           "movies",
		"com.acme.Movies":  "com.acme.Movies",
		"anime hub":        "anime%20hub",
		"anime-hub":        "anime-hub",
		"../etc/passwd":    "%2E.%2Fetc%2Fpasswd",
		"100%":             "100%25",
		".hidden":          "%2Ehidden",
		"":                 "untitled",
		"Anime Hub":        "Anime%20Hub",
		"provider/variant": "provider%2Fvariant",
	}
	for in, want := range cases {
		if got := FileName(in); got != want {
			t.Fatalf("FileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileNameKeepsDistinctIDsApart(t *testing.T) {
	t.Parallel()
	ids := []string{"anime hub", "anime-hub", "anime_hub", "anime%20hub", "Anime Hub"}
	seen := map[string]string{}
	for _, id := range ids {
		name := FileName(id)
		if other, ok := seen[name]; ok {
			t.Fatalf("%q and %q share file name %q", id, other, name)
		}
		seen[name] = id
	}
}
