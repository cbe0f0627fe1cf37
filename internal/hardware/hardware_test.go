package hardware

import (
	"math"
	"testing"
	"time"
)

func TestSensor_UnsetScalesToMax(t *testing.T) {
	s := NewSensor("A0")

	if _, ok := s.Value(); ok {
		t.Error("Value() reported a reading before SetValue")
	}
	if got := s.ScaleTo(0, 1023); got != 1023 {
		t.Errorf("ScaleTo() = %v, want 1023", got)
	}
}

func TestSensor_SetValueEmitsOnlyOnChange(t *testing.T) {
	s := NewSensor("A0")
	var got []int
	s.OnChange(func(raw int) { got = append(got, raw) })

	s.SetValue(50)
	s.SetValue(50)
	s.SetValue(650)

	if len(got) != 2 || got[0] != 50 || got[1] != 650 {
		t.Errorf("changes = %v, want [50 650]", got)
	}
	if v, ok := s.Value(); !ok || v != 650 {
		t.Errorf("Value() = %d,%v, want 650,true", v, ok)
	}
}

func TestSensor_ScaleTo(t *testing.T) {
	s := NewSensor("A0")
	s.SetValue(1023)

	if got := s.ScaleTo(0, 100); got != 100 {
		t.Errorf("ScaleTo(0,100) = %v, want 100", got)
	}
	if got := s.ScaleTo(0, 1023); got != 1023 {
		t.Errorf("ScaleTo(0,1023) = %v, want 1023", got)
	}
}

func TestMap(t *testing.T) {
	tests := []struct {
		n, a, b, c, d float64
		want          float64
	}{
		{0, 0, 1, 0, 1, 0},
		{2, 0, 1, 0, 1, 2},
		{3, 1, 4, 0, 1, 2.0 / 3.0},
		{4, 3, 6, 18, 9, 15},
	}
	for _, tt := range tests {
		if got := Map(tt.n, tt.a, tt.b, tt.c, tt.d); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Map(%v,%v,%v,%v,%v) = %v, want %v", tt.n, tt.a, tt.b, tt.c, tt.d, got, tt.want)
		}
	}
}

func TestMotor_RampsAndCounts(t *testing.T) {
	m := NewMotor(5*time.Millisecond, 5*time.Millisecond, nil)

	start := time.Now()
	m.SpinUp()
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("SpinUp returned after %v, want >= 5ms", elapsed)
	}
	if !m.Spinning() {
		t.Error("Spinning() = false after SpinUp")
	}

	m.SpinDown()
	if m.Spinning() {
		t.Error("Spinning() = true after SpinDown")
	}

	ups, downs := m.Counts()
	if ups != 1 || downs != 1 {
		t.Errorf("Counts() = %d,%d, want 1,1", ups, downs)
	}
}
