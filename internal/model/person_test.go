package model

import (
	"strings"
	"testing"
)

func validPerson() Person {
	return Person{
		Name:        "A",
		Coordinates: Coordinates{X: 0, Y: 0},
		Height:      170,
		Weight:      70,
		HairColor:   ColorBlue,
		Nationality: CountryUSA,
		Location:    Location{X: 1.0},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Person)
		wantErr string
	}{
		{"valid", func(p *Person) {}, ""},
		{"empty name", func(p *Person) { p.Name = "" }, "name"},
		{"x too small", func(p *Person) { p.Coordinates.X = -271 }, "coordinates.x"},
		{"x boundary ok", func(p *Person) { p.Coordinates.X = -270 }, ""},
		{"zero height", func(p *Person) { p.Height = 0 }, "height"},
		{"negative weight", func(p *Person) { p.Weight = -1 }, "weight"},
		{"bad color", func(p *Person) { p.HairColor = Color(9) }, "hair color"},
		{"bad country", func(p *Person) { p.Nationality = Country(-1) }, "country"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPerson()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCompareByBMI(t *testing.T) {
	p1 := Person{Height: 200, Weight: 80} // 0.0020
	p2 := Person{Height: 150, Weight: 80} // 0.0036
	p3 := Person{Height: 170, Weight: 70} // 0.0024

	if p1.Compare(&p2) >= 0 {
		t.Errorf("p1 should sort before p2")
	}
	if p2.Compare(&p3) <= 0 {
		t.Errorf("p2 should sort after p3")
	}
	if p1.Compare(&p1) != 0 {
		t.Errorf("a person compares equal to itself")
	}
}

func TestEnumRoundTrip(t *testing.T) {
	for _, c := range []Color{ColorGreen, ColorBlue, ColorYellow, ColorOrange, ColorWhite} {
		got, err := ParseColor(c.String())
		if err != nil {
			t.Fatalf("ParseColor(%s): %v", c, err)
		}
		if got != c {
			t.Errorf("ParseColor(%s) = %v", c, got)
		}
	}
	for _, c := range []Country{CountryUSA, CountryGermany, CountryVatican, CountryNorthKorea} {
		got, err := ParseCountry(c.String())
		if err != nil {
			t.Fatalf("ParseCountry(%s): %v", c, err)
		}
		if got != c {
			t.Errorf("ParseCountry(%s) = %v", c, got)
		}
	}
	if _, err := ParseColor("PINK"); err == nil {
		t.Error("expected error for unknown color")
	}
	if _, err := ParseCountry("ATLANTIS"); err == nil {
		t.Error("expected error for unknown country")
	}
}
