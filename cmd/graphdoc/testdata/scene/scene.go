package scene

import "time"

type Shape interface {
	Area() float64
}

type Circle struct {
	Radius float64
}

func (c Circle) Area() float64 { return 3.14159 * c.Radius * c.Radius }

type Square struct {
	Side float64
}

func (s *Square) Area() float64 { return s.Side * s.Side }

type Color uint8

type Layer struct {
	Name   string
	Shapes []Shape
	Tint   Color
	Cache  map[string]any `graph:"-"`
}

type Scene struct {
	Layers  []*Layer
	Created time.Time
	Grid    [2][2]Color
}

type Unrelated struct {
	Note string
}
