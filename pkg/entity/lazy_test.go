package entity

import "testing"

func TestLazy_MarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		ref  *Lazy[film]
		want string
	}{
		{"unresolved", Unresolved[film]("barbie"), `"barbie"`},
		{"resolved", Resolved[film]("heat", film{Slug: "heat", Title: "Heat"}), `{"Slug":"heat","Title":"Heat"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.ref.MarshalJSON()
			if err != nil {
				t.Fatalf("MarshalJSON failed: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalJSON = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLazy_FirstValueWins(t *testing.T) {
	ref := Unresolved[film]("x")
	ref.set(film{Title: "first"})
	ref.set(film{Title: "second"})

	got, _ := ref.Get()
	if got.Title != "first" {
		t.Errorf("Title = %q, want first", got.Title)
	}
	if ref.String() != "x" {
		t.Errorf("String = %q, want x", ref.String())
	}
}
