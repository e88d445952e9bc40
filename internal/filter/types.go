// Package filter provides LDAP search filter parsing and encoding.
// Filter strings use RFC 4515 syntax; the wire encoding follows
// RFC 4511 Section 4.5.1.
package filter

import "strings"

// FilterType represents the type of LDAP filter operation.
type FilterType int

const (
	// FilterAnd represents an AND filter (&).
	FilterAnd FilterType = iota
	// FilterOr represents an OR filter (|).
	FilterOr
	// FilterNot represents a NOT filter (!).
	FilterNot
	// FilterEquality represents an equality filter (attr=value).
	FilterEquality
	// FilterSubstring represents a substring filter (attr=*value*).
	FilterSubstring
	// FilterGreaterOrEqual represents a greater-or-equal filter (attr>=value).
	FilterGreaterOrEqual
	// FilterLessOrEqual represents a less-or-equal filter (attr<=value).
	FilterLessOrEqual
	// FilterPresent represents a presence filter (attr=*).
	FilterPresent
	// FilterApproxMatch represents an approximate match filter (attr~=value).
	FilterApproxMatch
)

// String returns the string representation of the FilterType.
func (ft FilterType) String() string {
	switch ft {
	case FilterAnd:
		return "AND"
	case FilterOr:
		return "OR"
	case FilterNot:
		return "NOT"
	case FilterEquality:
		return "EQUALITY"
	case FilterSubstring:
		return "SUBSTRING"
	case FilterGreaterOrEqual:
		return "GREATER_OR_EQUAL"
	case FilterLessOrEqual:
		return "LESS_OR_EQUAL"
	case FilterPresent:
		return "PRESENT"
	case FilterApproxMatch:
		return "APPROX_MATCH"
	default:
		return "UNKNOWN"
	}
}

// Filter represents an LDAP search filter.
type Filter struct {
	Type      FilterType
	Attribute string
	Value     []byte
	Children  []*Filter        // For AND/OR filters
	Child     *Filter          // For NOT filter
	Substring *SubstringFilter // For substring filters
}

// SubstringFilter represents the components of a substring filter.
type SubstringFilter struct {
	Attribute string
	Initial   []byte   // Initial substring (before first *)
	Any       [][]byte // Middle substrings (between *s)
	Final     []byte   // Final substring (after last *)
}

// NewAndFilter creates a new AND filter with the given children.
func NewAndFilter(children ...*Filter) *Filter {
	return &Filter{
		Type:     FilterAnd,
		Children: children,
	}
}

// NewOrFilter creates a new OR filter with the given children.
func NewOrFilter(children ...*Filter) *Filter {
	return &Filter{
		Type:     FilterOr,
		Children: children,
	}
}

// NewNotFilter creates a new NOT filter with the given child.
func NewNotFilter(child *Filter) *Filter {
	return &Filter{
		Type:  FilterNot,
		Child: child,
	}
}

// NewEqualityFilter creates a new equality filter.
func NewEqualityFilter(attribute string, value []byte) *Filter {
	return &Filter{
		Type:      FilterEquality,
		Attribute: attribute,
		Value:     value,
	}
}

// NewSubstringFilter creates a new substring filter.
func NewSubstringFilter(sf *SubstringFilter) *Filter {
	return &Filter{
		Type:      FilterSubstring,
		Attribute: sf.Attribute,
		Substring: sf,
	}
}

// NewPresentFilter creates a new presence filter.
func NewPresentFilter(attribute string) *Filter {
	return &Filter{
		Type:      FilterPresent,
		Attribute: attribute,
	}
}

// NewGreaterOrEqualFilter creates a new greater-or-equal filter.
func NewGreaterOrEqualFilter(attribute string, value []byte) *Filter {
	return &Filter{
		Type:      FilterGreaterOrEqual,
		Attribute: attribute,
		Value:     value,
	}
}

// NewLessOrEqualFilter creates a new less-or-equal filter.
func NewLessOrEqualFilter(attribute string, value []byte) *Filter {
	return &Filter{
		Type:      FilterLessOrEqual,
		Attribute: attribute,
		Value:     value,
	}
}

// NewApproxMatchFilter creates a new approximate match filter.
func NewApproxMatchFilter(attribute string, value []byte) *Filter {
	return &Filter{
		Type:      FilterApproxMatch,
		Attribute: attribute,
		Value:     value,
	}
}

// String renders the filter back to RFC 4515 string form.
func (f *Filter) String() string {
	var b strings.Builder
	f.writeString(&b)
	return b.String()
}

func (f *Filter) writeString(b *strings.Builder) {
	b.WriteByte('(')
	switch f.Type {
	case FilterAnd:
		b.WriteByte('&')
		for _, child := range f.Children {
			child.writeString(b)
		}
	case FilterOr:
		b.WriteByte('|')
		for _, child := range f.Children {
			child.writeString(b)
		}
	case FilterNot:
		b.WriteByte('!')
		if f.Child != nil {
			f.Child.writeString(b)
		}
	case FilterEquality:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		b.Write(f.Value)
	case FilterGreaterOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString(">=")
		b.Write(f.Value)
	case FilterLessOrEqual:
		b.WriteString(f.Attribute)
		b.WriteString("<=")
		b.Write(f.Value)
	case FilterApproxMatch:
		b.WriteString(f.Attribute)
		b.WriteString("~=")
		b.Write(f.Value)
	case FilterPresent:
		b.WriteString(f.Attribute)
		b.WriteString("=*")
	case FilterSubstring:
		b.WriteString(f.Attribute)
		b.WriteByte('=')
		if f.Substring != nil {
			b.Write(f.Substring.Initial)
			b.WriteByte('*')
			for _, any := range f.Substring.Any {
				b.Write(any)
				b.WriteByte('*')
			}
			b.Write(f.Substring.Final)
		}
	}
	b.WriteByte(')')
}
