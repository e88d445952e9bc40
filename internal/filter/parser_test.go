package filter

import (
	"errors"
	"testing"
)

func TestParseSimpleFilters(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType FilterType
		wantAttr string
		wantVal  string
	}{
		{"equality", "(cn=admin)", FilterEquality, "cn", "admin"},
		{"presence", "(objectclass=*)", FilterPresent, "objectclass", ""},
		{"greater or equal", "(uidNumber>=1000)", FilterGreaterOrEqual, "uidNumber", "1000"},
		{"less or equal", "(uidNumber<=2000)", FilterLessOrEqual, "uidNumber", "2000"},
		{"approx", "(cn~=admin)", FilterApproxMatch, "cn", "admin"},
		{"unparenthesized", "cn=admin", FilterEquality, "cn", "admin"},
		{"value with spaces", "(cn=John Doe)", FilterEquality, "cn", "John Doe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if f.Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, f.Type)
			}
			if f.Attribute != tt.wantAttr {
				t.Errorf("expected attribute %q, got %q", tt.wantAttr, f.Attribute)
			}
			if tt.wantVal != "" && string(f.Value) != tt.wantVal {
				t.Errorf("expected value %q, got %q", tt.wantVal, f.Value)
			}
		})
	}
}

func TestParseSubstringFilters(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantInitial string
		wantAny     []string
		wantFinal   string
	}{
		{"initial only", "(cn=adm*)", "adm", nil, ""},
		{"final only", "(cn=*min)", "", nil, "min"},
		{"any only", "(cn=*dmi*)", "", []string{"dmi"}, ""},
		{"initial and final", "(cn=ad*in)", "ad", nil, "in"},
		{"all components", "(cn=a*dm*n)", "a", []string{"dm"}, "n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) failed: %v", tt.input, err)
			}
			if f.Type != FilterSubstring {
				t.Fatalf("expected SUBSTRING, got %s", f.Type)
			}
			sf := f.Substring
			if string(sf.Initial) != tt.wantInitial {
				t.Errorf("expected initial %q, got %q", tt.wantInitial, sf.Initial)
			}
			if string(sf.Final) != tt.wantFinal {
				t.Errorf("expected final %q, got %q", tt.wantFinal, sf.Final)
			}
			if len(sf.Any) != len(tt.wantAny) {
				t.Fatalf("expected %d any components, got %d", len(tt.wantAny), len(sf.Any))
			}
			for i, want := range tt.wantAny {
				if string(sf.Any[i]) != want {
					t.Errorf("any[%d]: expected %q, got %q", i, want, sf.Any[i])
				}
			}
		})
	}
}

func TestParseCompositeFilters(t *testing.T) {
	t.Run("and", func(t *testing.T) {
		f, err := Parse("(&(objectclass=person)(cn=admin))")
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if f.Type != FilterAnd {
			t.Fatalf("expected AND, got %s", f.Type)
		}
		if len(f.Children) != 2 {
			t.Fatalf("expected 2 children, got %d", len(f.Children))
		}
		if f.Children[0].Attribute != "objectclass" || f.Children[1].Attribute != "cn" {
			t.Errorf("unexpected children: %v, %v", f.Children[0], f.Children[1])
		}
	})

	t.Run("or", func(t *testing.T) {
		f, err := Parse("(|(uid=jdoe)(mail=jdoe@example.com))")
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if f.Type != FilterOr {
			t.Fatalf("expected OR, got %s", f.Type)
		}
		if len(f.Children) != 2 {
			t.Fatalf("expected 2 children, got %d", len(f.Children))
		}
	})

	t.Run("not", func(t *testing.T) {
		f, err := Parse("(!(objectclass=computer))")
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if f.Type != FilterNot {
			t.Fatalf("expected NOT, got %s", f.Type)
		}
		if f.Child == nil || f.Child.Type != FilterEquality {
			t.Errorf("unexpected child: %v", f.Child)
		}
	})

	t.Run("nested", func(t *testing.T) {
		f, err := Parse("(&(objectclass=person)(|(uid=a)(uid=b)))")
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if f.Type != FilterAnd || len(f.Children) != 2 {
			t.Fatalf("unexpected structure: %v", f)
		}
		if f.Children[1].Type != FilterOr || len(f.Children[1].Children) != 2 {
			t.Errorf("unexpected nested OR: %v", f.Children[1])
		}
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrEmptyFilter},
		{"whitespace only", "   ", ErrEmptyFilter},
		{"empty parens", "()", ErrEmptyFilter},
		{"no operator", "(cn)", ErrInvalidFilter},
		{"unbalanced", "(&(cn=a)(cn=b)", ErrUnbalancedParens},
		{"empty and", "(&)", ErrInvalidFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse(%q): expected %v, got %v", tt.input, tt.wantErr, err)
			}
		})
	}
}

func TestFilterString(t *testing.T) {
	inputs := []string{
		"(objectclass=*)",
		"(cn=admin)",
		"(uidNumber>=1000)",
		"(&(objectclass=person)(cn=ad*in))",
		"(!(objectclass=computer))",
	}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			f, err := Parse(input)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if got := f.String(); got != input {
				t.Errorf("expected %q, got %q", input, got)
			}
		})
	}
}
