package pipeline

import "testing"

func TestDedupKeyIsCaseInsensitive(t *testing.T) {
	a := JobPosting{Company: "Acme Corp", Title: "Go Developer"}
	b := JobPosting{Company: "ACME CORP ", Title: " go developer"}
	if a.DedupKey() != b.DedupKey() {
		t.Fatalf("keys differ: %q vs %q", a.DedupKey(), b.DedupKey())
	}
}

func TestExportFilename(t *testing.T) {
	cases := []struct {
		name string
		item JobPosting
		want string
	}{
		{
			name: "plain",
			item: JobPosting{Company: "Acme", Title: "Go Developer", Site: "board"},
			want: "Acme - Go Developer - board.md",
		},
		{
			name: "reserved characters stripped",
			item: JobPosting{Company: "A/B?", Title: "C:D*E", Site: "s|te"},
			want: "AB - CDE - ste.md",
		},
		{
			name: "empty fields fall back",
			item: JobPosting{},
			want: "Unknown - Unknown - Unknown.md",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.item.ExportFilename(); got != tc.want {
				t.Fatalf("ExportFilename() = %q, want %q", got, tc.want)
			}
		})
	}
}
