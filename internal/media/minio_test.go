package media

import "testing"

func TestExtensionFor(t *testing.T) {
	cases := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", ".jpg"},
		{"image/png", ".png"},
		{"image/webp", ".webp"},
		{"image/gif", ""},
		{"application/pdf", ""},
	}
	for _, tc := range cases {
		if got := extensionFor(tc.contentType); got != tc.want {
			t.Fatalf("extensionFor(%q) = %q, want %q", tc.contentType, got, tc.want)
		}
	}
}
