package pagination

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   Params
		want Params
	}{
		{"defaults", Params{}, Params{Take: DefaultTake, Skip: 0}},
		{"explicit", Params{Take: 10, Skip: 30}, Params{Take: 10, Skip: 30}},
		{"capped", Params{Take: 10_000}, Params{Take: MaxTake}},
		{"negative skip", Params{Take: 5, Skip: -1}, Params{Take: 5, Skip: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.in.Normalize(); got != tc.want {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestNewPage(t *testing.T) {
	page := NewPage(Params{Take: -3, Skip: 50}, 123)
	if page.Take != DefaultTake || page.Skip != 50 || page.Total != 123 {
		t.Fatalf("unexpected page %+v", page)
	}
}
