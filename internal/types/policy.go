package types

import "fmt"

// PolicyKind selects how a run decides to stop.
type PolicyKind int

const (
	// ByPageCount stops after a fixed number of pages.
	ByPageCount PolicyKind = iota
	// ByAgeWindow keeps records posted within a trailing window of hours.
	ByAgeWindow
	// Unbounded consumes the feed until it runs out.
	Unbounded
)

func (k PolicyKind) String() string {
	switch k {
	case ByPageCount:
		return "count"
	case ByAgeWindow:
		return "age"
	case Unbounded:
		return "all"
	default:
		return "unknown"
	}
}

// Policy is the termination policy of one run. It is fixed once the run starts.
type Policy struct {
	Kind       PolicyKind
	DepthPages int
	Hours      int
}

// PolicyByCount returns a page-count policy sized to hold roughly records comments.
func PolicyByCount(records, perPage int) Policy {
	if perPage <= 0 {
		perPage = 1
	}
	depth := records / perPage
	if depth < 1 {
		depth = 1
	}
	return Policy{Kind: ByPageCount, DepthPages: depth}
}

// PolicyByDays returns an age-window policy covering the last days.
func PolicyByDays(days int) Policy {
	return Policy{Kind: ByAgeWindow, Hours: days * 24}
}

// PolicyAll returns the unbounded policy.
func PolicyAll() Policy {
	return Policy{Kind: Unbounded}
}

// Validate checks the policy parameters.
func (p Policy) Validate() error {
	switch p.Kind {
	case ByPageCount:
		if p.DepthPages < 1 {
			return fmt.Errorf("page-count policy needs depth >= 1, got %d", p.DepthPages)
		}
	case ByAgeWindow:
		if p.Hours < 1 {
			return fmt.Errorf("age-window policy needs hours >= 1, got %d", p.Hours)
		}
	case Unbounded:
	default:
		return fmt.Errorf("unknown policy kind %d", p.Kind)
	}
	return nil
}

func (p Policy) String() string {
	switch p.Kind {
	case ByPageCount:
		return fmt.Sprintf("count(%d pages)", p.DepthPages)
	case ByAgeWindow:
		return fmt.Sprintf("age(%dh)", p.Hours)
	default:
		return p.Kind.String()
	}
}
