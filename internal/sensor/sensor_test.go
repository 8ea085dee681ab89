package sensor

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/muurk/wstelemetry/internal/clock"
)

func TestNotifier_SubscribeCancel(t *testing.T) {
	s := NewStatic(Metadata{ID: "temp", Name: "Temperature", Unit: "°C"})

	var a, b []float64
	subA := s.Subscribe(func(v float64) { a = append(a, v) })
	subB := s.Subscribe(func(v float64) { b = append(b, v) })

	s.Set(1)
	subA.Cancel()
	subA.Cancel()
	s.Set(2)

	if len(a) != 1 || a[0] != 1 {
		t.Errorf("cancelled subscriber got %v, want [1]", a)
	}
	if len(b) != 2 {
		t.Errorf("active subscriber got %v, want [1 2]", b)
	}
	if s.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", s.Subscribers())
	}

	subB.Cancel()
	if s.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d after all cancelled", s.Subscribers())
	}
}

func TestStatic_StartsWithoutReading(t *testing.T) {
	s := NewStatic(Metadata{ID: "x"})
	if !math.IsNaN(s.Value()) {
		t.Errorf("Value() = %v, want NaN", s.Value())
	}
	if s.Metadata().ID != "x" {
		t.Errorf("Metadata().ID = %q", s.Metadata().ID)
	}
}

func TestSimulated_StaysInRange(t *testing.T) {
	s := NewSimulated(Metadata{ID: "sim"}, 30, 10, 5, 42)

	var got []float64
	s.Subscribe(func(v float64) { got = append(got, v) })
	for i := 0; i < 500; i++ {
		s.Sample()
	}

	if len(got) != 500 {
		t.Fatalf("got %d notifications, want 500", len(got))
	}
	prev := 20.0
	for i, v := range got {
		if v < 10 || v > 30 {
			t.Fatalf("sample %d = %v outside [10, 30]", i, v)
		}
		if math.Abs(v-prev) > 5+1e-9 {
			t.Fatalf("sample %d moved %v, more than the step", i, math.Abs(v-prev))
		}
		prev = v
	}
}

func TestSimulated_Reproducible(t *testing.T) {
	a := NewSimulated(Metadata{}, 0, 100, 1, 7)
	b := NewSimulated(Metadata{}, 0, 100, 1, 7)
	for i := 0; i < 10; i++ {
		a.Sample()
		b.Sample()
	}
	if a.Value() != b.Value() {
		t.Errorf("same seed produced %v and %v", a.Value(), b.Value())
	}
}

func TestFile_Sample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "temp")

	tests := []struct {
		name    string
		content string
		scale   float64
		want    float64
		wantNaN bool
	}{
		{"millidegrees", "42500\n", 0.001, 42.5, false},
		{"unscaled", "  17.25 ", 0, 17.25, false},
		{"garbage", "hot", 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			f := NewFile(Metadata{ID: "cpu"}, path, tt.scale)

			var got float64
			f.Subscribe(func(v float64) { got = v })
			f.Sample()

			if tt.wantNaN {
				if !math.IsNaN(got) {
					t.Errorf("got %v, want NaN", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFile_MissingFile(t *testing.T) {
	f := NewFile(Metadata{ID: "gone"}, filepath.Join(t.TempDir(), "missing"), 1)
	got := 0.0
	f.Subscribe(func(v float64) { got = v })
	f.Sample()
	if !math.IsNaN(got) {
		t.Errorf("missing file published %v, want NaN", got)
	}
}

type countingSource struct {
	Notifier
	samples int
}

func (c *countingSource) Metadata() Metadata { return Metadata{ID: "count"} }
func (c *countingSource) Sample()            { c.samples++ }

func TestSampler_Intervals(t *testing.T) {
	clk := clock.NewManual(0)
	fast := &countingSource{}
	slow := &countingSource{}

	s := NewSampler(clk)
	s.Add(fast, 1000)
	s.Add(slow, 5000)
	if s.Len() != 2 {
		t.Fatalf("Len() = %d", s.Len())
	}

	if n := s.Poll(); n != 2 {
		t.Errorf("first Poll sampled %d, want 2", n)
	}
	for i := 0; i < 10; i++ {
		clk.Advance(1000)
		s.Poll()
	}

	if fast.samples != 11 {
		t.Errorf("fast sampled %d times, want 11", fast.samples)
	}
	if slow.samples != 3 {
		t.Errorf("slow sampled %d times, want 3", slow.samples)
	}
}
