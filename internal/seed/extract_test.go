package seed

import (
	"testing"

	"github.com/nao1215/onionspider/internal/model"
)

func TestExtract(t *testing.T) {
	t.Parallel()

	const v3 = "aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion"

	tests := []struct {
		name  string
		text  string
		want  []string
		hosts []string
	}{
		{
			name:  "duplicates are kept in order",
			text:  "visit http://exampleonionaddress.onion/foo and http://exampleonionaddress.onion/foo again",
			want:  []string{"/foo", "/foo"},
			hosts: []string{"exampleonionaddress.onion", "exampleonionaddress.onion"},
		},
		{
			name:  "bare host gets root path",
			text:  "https://exampleonionaddress.onion",
			want:  []string{"/"},
			hosts: []string{"exampleonionaddress.onion"},
		},
		{
			name:  "www prefix and case are normalized",
			text:  "HTTP://WWW.ExampleOnionAddress.ONION/Path",
			want:  []string{"/Path"},
			hosts: []string{"exampleonionaddress.onion"},
		},
		{
			name:  "trailing punctuation is trimmed",
			text:  "see (http://" + v3 + "/about).",
			want:  []string{"/about"},
			hosts: []string{v3},
		},
		{
			name:  "html attribute",
			text:  `<a href="http://` + v3 + `/index.html?q=1">x</a>`,
			want:  []string{"/index.html?q=1"},
			hosts: []string{v3},
		},
		{
			name: "clearnet URLs are ignored",
			text: "https://example.com/foo http://onion.example.org/",
		},
		{
			name: "other schemes are ignored",
			text: "ftp://exampleonionaddress.onion/file",
		},
		{
			name: "empty text",
			text: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Extract(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Extract() returned %d URIs, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i].Path() != tt.want[i] {
					t.Errorf("URI %d path = %q, want %q", i, got[i].Path(), tt.want[i])
				}
				if got[i].Host() != tt.hosts[i] {
					t.Errorf("URI %d host = %q, want %q", i, got[i].Host(), tt.hosts[i])
				}
			}
		})
	}
}

func TestExtractDetectsVersion(t *testing.T) {
	t.Parallel()

	got := Extract("http://aaaqeayeaudaocajbifqydiob4ibceqtcqkrmfyydenbwha5dyp3kead.onion/ http://exampleonionaddress.onion/")
	if len(got) != 2 {
		t.Fatalf("Extract() returned %d URIs, want 2", len(got))
	}
	if got[0].Version() != model.OnionVersionV3 {
		t.Errorf("first version = %v, want v3", got[0].Version())
	}
	if got[1].Version() != model.OnionVersionUnknown {
		t.Errorf("second version = %v, want unknown", got[1].Version())
	}
}

func TestExtractGroups(t *testing.T) {
	t.Parallel()

	groups := [][]string{
		{"name", "http://a.onion/1"},
		{"http://b.onion/2 http://c.onion/3"},
		{},
	}

	got := ExtractGroups(groups)
	want := []string{"a.onion/1", "b.onion/2", "c.onion/3"}
	if len(got) != len(want) {
		t.Fatalf("ExtractGroups() returned %d URIs, want %d", len(got), len(want))
	}
	for i, u := range got {
		if u.Host()+u.Path() != want[i] {
			t.Errorf("URI %d = %q, want %q", i, u.Host()+u.Path(), want[i])
		}
	}
}
