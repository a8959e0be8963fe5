package bootsel

import "testing"

func TestCompareVersion(t *testing.T) {
	cases := []struct {
		name string
		a, b ImageVersion
		want int
	}{
		{"equal", ImageVersion{1, 2, 3, 4}, ImageVersion{1, 2, 3, 4}, 0},
		{"major wins", ImageVersion{2, 0, 0, 0}, ImageVersion{1, 9, 9, 9}, 1},
		{"minor wins", ImageVersion{1, 2, 0, 0}, ImageVersion{1, 1, 9, 9}, 1},
		{"revision wins", ImageVersion{1, 1, 5, 0}, ImageVersion{1, 1, 4, 9}, 1},
		{"build wins", ImageVersion{1, 1, 1, 5}, ImageVersion{1, 1, 1, 4}, 1},
		{"less than", ImageVersion{1, 0, 0, 0}, ImageVersion{1, 0, 0, 1}, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CompareVersion(c.a, c.b); got != c.want {
				t.Errorf("CompareVersion(%+v, %+v) = %d, want %d", c.a, c.b, got, c.want)
			}
		})
	}
}
