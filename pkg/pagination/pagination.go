package pagination

const (
	// DefaultTake is the page size used when the caller omits take.
	DefaultTake = 25
	// MaxTake caps how many rows any list query can request.
	MaxTake = 500
)

// Params holds offset pagination inputs from controllers or services.
// Zero-valued Take means "use the default page size".
type Params struct {
	Take int
	Skip int
}

// Normalize enforces the default and maximum page size and a non-negative
// offset.
func (p Params) Normalize() Params {
	take := p.Take
	if take <= 0 {
		take = DefaultTake
	}
	if take > MaxTake {
		take = MaxTake
	}
	skip := p.Skip
	if skip < 0 {
		skip = 0
	}
	return Params{Take: take, Skip: skip}
}

// Page describes the window a list response covers alongside the total number
// of records matching the filter.
type Page struct {
	Take  int   `json:"take"`
	Skip  int   `json:"skip"`
	Total int64 `json:"total"`
}

// NewPage pairs normalized params with a total count.
func NewPage(p Params, total int64) Page {
	n := p.Normalize()
	return Page{Take: n.Take, Skip: n.Skip, Total: total}
}
