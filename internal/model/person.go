package model

import (
	"fmt"
	"strings"
	"time"
)

// Color is the hair color enumeration. Declaration order is significant:
// print_field_descending_hair_color sorts by it.
type Color int

const (
	ColorGreen Color = iota
	ColorBlue
	ColorYellow
	ColorOrange
	ColorWhite
)

var colorNames = [...]string{"GREEN", "BLUE", "YELLOW", "ORANGE", "WHITE"}

func (c Color) String() string {
	if c < 0 || int(c) >= len(colorNames) {
		return fmt.Sprintf("Color(%d)", int(c))
	}
	return colorNames[c]
}

// ParseColor maps an enum tag to a Color. Matching is case-insensitive.
func ParseColor(s string) (Color, error) {
	for i, name := range colorNames {
		if strings.EqualFold(s, name) {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("unknown hair color %q", s)
}

// Country is the nationality enumeration.
type Country int

const (
	CountryUSA Country = iota
	CountryGermany
	CountryVatican
	CountryNorthKorea
)

var countryNames = [...]string{"USA", "GERMANY", "VATICAN", "NORTH_KOREA"}

func (c Country) String() string {
	if c < 0 || int(c) >= len(countryNames) {
		return fmt.Sprintf("Country(%d)", int(c))
	}
	return countryNames[c]
}

// ParseCountry maps an enum tag to a Country. Matching is case-insensitive.
func ParseCountry(s string) (Country, error) {
	for i, name := range countryNames {
		if strings.EqualFold(s, name) {
			return Country(i), nil
		}
	}
	return 0, fmt.Errorf("unknown country %q", s)
}

// Coordinates is the required integer coordinate pair of a Person.
// X must be strictly greater than -271.
type Coordinates struct {
	X int32
	Y int32
}

// Location is the Person's location. Y and Name are optional.
type Location struct {
	X    float32
	Y    *float64
	Name *string
}

// Person is the collection element. Id and CreationDate are assigned by the
// persistence gateway on first insert and are immutable afterwards; any
// client-supplied values for them are ignored.
type Person struct {
	Id           int32
	OwnerId      int64
	Name         string
	Coordinates  Coordinates
	CreationDate time.Time
	Height       int32
	Weight       int32
	HairColor    Color
	Nationality  Country
	Location     Location
}

// Validate checks the field constraints the wire and persistence layers
// depend on. Invalid payloads surface as decode errors, not panics.
func (p *Person) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if p.Coordinates.X <= -271 {
		return fmt.Errorf("coordinates.x must be > -271, got %d", p.Coordinates.X)
	}
	if p.Height <= 0 {
		return fmt.Errorf("height must be positive, got %d", p.Height)
	}
	if p.Weight <= 0 {
		return fmt.Errorf("weight must be positive, got %d", p.Weight)
	}
	if p.HairColor < 0 || int(p.HairColor) >= len(colorNames) {
		return fmt.Errorf("invalid hair color %d", int(p.HairColor))
	}
	if p.Nationality < 0 || int(p.Nationality) >= len(countryNames) {
		return fmt.Errorf("invalid country %d", int(p.Nationality))
	}
	return nil
}

// BMI returns weight / height² — the natural ordering of persons.
func (p *Person) BMI() float64 {
	h := float64(p.Height)
	return float64(p.Weight) / (h * h)
}

// Compare orders persons by BMI ascending. It returns a negative number,
// zero, or a positive number as p sorts before, equal to, or after o.
func (p *Person) Compare(o *Person) int {
	a, b := p.BMI(), o.BMI()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (p *Person) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Person {\n  id=%d", p.Id)
	fmt.Fprintf(&b, ",\n  name='%s'", p.Name)
	fmt.Fprintf(&b, ",\n  coordinates={x=%d, y=%d}", p.Coordinates.X, p.Coordinates.Y)
	fmt.Fprintf(&b, ",\n  creationDate=%s", p.CreationDate.Format(time.RFC3339))
	fmt.Fprintf(&b, ",\n  height=%d", p.Height)
	fmt.Fprintf(&b, ",\n  weight=%d", p.Weight)
	fmt.Fprintf(&b, ",\n  hairColor=%s", p.HairColor)
	fmt.Fprintf(&b, ",\n  nationality=%s", p.Nationality)
	if p.Location.Name != nil {
		fmt.Fprintf(&b, ",\n  location=%s", *p.Location.Name)
	} else {
		b.WriteString(",\n  location=unspecified")
	}
	b.WriteString("\n}")
	return b.String()
}
