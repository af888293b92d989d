package browser

import (
	"testing"
)

func TestSummarizeHTML(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantTitle string
		wantDesc  string
		wantLinks int
	}{
		{
			name: "full document",
			input: `<html>
				<head>
					<title> Example Domain </title>
					<meta name="description" content="An example page">
					<script>document.title = "changed";</script>
				</head>
				<body>
					<a href="/one">One</a>
					<p><a href="https://two.test">Two</a></p>
					<a name="anchor-only">No href</a>
					<a href="  ">Blank</a>
				</body>
			</html>`,
			wantTitle: "Example Domain",
			wantDesc:  "An example page",
			wantLinks: 2,
		},
		{
			name:      "fragment without head",
			input:     `<p>Just text</p>`,
			wantTitle: "",
			wantDesc:  "",
			wantLinks: 0,
		},
		{
			name:      "case-insensitive description name",
			input:     `<html><head><meta name="Description" content="Mixed case"></head></html>`,
			wantDesc:  "Mixed case",
			wantLinks: 0,
		},
		{
			name: "first title and description win",
			input: `<html><head>
				<title>   </title>
				<title>Second</title>
				<title>Third</title>
				<meta name="description" content="">
				<meta name="description" content="Kept">
				<meta name="description" content="Ignored">
			</head><body><div><ul><li><a href="#top">Top</a></li></ul></div></body></html>`,
			wantTitle: "Second",
			wantDesc:  "Kept",
			wantLinks: 1,
		},
		{
			name:      "empty input",
			input:     "",
			wantLinks: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := summarizeHTML(tt.input)
			if err != nil {
				t.Fatalf("summarizeHTML() error = %v", err)
			}
			if got.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.wantTitle)
			}
			if got.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", got.Description, tt.wantDesc)
			}
			if got.Links != tt.wantLinks {
				t.Errorf("Links = %d, want %d", got.Links, tt.wantLinks)
			}
		})
	}
}
