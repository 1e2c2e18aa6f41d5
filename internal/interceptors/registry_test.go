package interceptors

import (
	"errors"
	"sync"
	"testing"

	"github.com/smazurov/videofx/internal/frame"
)

type recordingPre struct {
	name string
}

func (p *recordingPre) Category() Category { return Preprocessing }
func (p *recordingPre) Preprocess(_ frame.View) error { return nil }

type wrongTag struct{}

func (wrongTag) Category() Category { return Category("postprocessing") }

type tagOnly struct{}

func (tagOnly) Category() Category { return Preprocessing }

func TestQueryEmptyCategory(t *testing.T) {
	r := NewRegistry()

	got := r.Query(Preprocessing)
	if got == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(got) != 0 {
		t.Errorf("expected no interceptors, got %d", len(got))
	}

	if got := r.Query(Category("nope")); len(got) != 0 {
		t.Errorf("expected empty result for unknown category, got %d", len(got))
	}
}

func TestRegisterPreservesOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"a", "b", "c"}
	for _, n := range names {
		if err := r.Register(&recordingPre{name: n}); err != nil {
			t.Fatalf("Register(%s) failed: %v", n, err)
		}
	}

	got := r.Query(Preprocessing)
	if len(got) != len(names) {
		t.Fatalf("expected %d interceptors, got %d", len(names), len(got))
	}
	for i, n := range names {
		if p := got[i].(*recordingPre); p.name != n {
			t.Errorf("position %d: expected %s, got %s", i, n, p.name)
		}
	}
	if r.Count() != 3 {
		t.Errorf("expected count 3, got %d", r.Count())
	}
}

func TestRegisterRejectsUnknownCategory(t *testing.T) {
	r := NewRegistry()

	err := r.Register(wrongTag{})
	if !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	var catErr *CategoryError
	if !errors.As(err, &catErr) {
		t.Fatalf("expected *CategoryError, got %T", err)
	}
	if catErr.Category != "postprocessing" {
		t.Errorf("unexpected category in error: %s", catErr.Category)
	}
	if r.Count() != 0 {
		t.Error("failed registration must not add anything")
	}
}

func TestRegisterRejectsMissingInterface(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(tagOnly{}); !errors.Is(err, ErrCategoryMismatch) {
		t.Fatalf("expected ErrCategoryMismatch, got %v", err)
	}
	if err := r.Register(nil); !errors.Is(err, ErrNilInterceptor) {
		t.Fatalf("expected ErrNilInterceptor, got %v", err)
	}
}

type markingPre struct{}

func (markingPre) Category() Category { return Preprocessing }

func (markingPre) Preprocess(v frame.View) error {
	v.Data[0] = 0xFF
	return nil
}

func TestRunDispatchesByCategory(t *testing.T) {
	r := NewRegistry()
	v := frame.View{Data: make([]byte, 2), Height: 1, Stride: 2}

	if err := r.Run(Preprocessing, markingPre{}, v); err != nil {
		t.Fatal(err)
	}
	if v.Data[0] != 0xFF {
		t.Error("expected Preprocess to run")
	}

	if err := r.Run(Category("postprocessing"), markingPre{}, v); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("expected ErrUnknownCategory, got %v", err)
	}
	if err := r.Run(Preprocessing, tagOnly{}, v); !errors.Is(err, ErrCategoryMismatch) {
		t.Errorf("expected ErrCategoryMismatch, got %v", err)
	}
}

func TestQuerySnapshotUnaffectedByLaterRegister(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&recordingPre{name: "first"}); err != nil {
		t.Fatal(err)
	}

	before := r.Query(Preprocessing)
	if err := r.Register(&recordingPre{name: "second"}); err != nil {
		t.Fatal(err)
	}

	if len(before) != 1 {
		t.Errorf("earlier snapshot changed length to %d", len(before))
	}
	if len(r.Query(Preprocessing)) != 2 {
		t.Error("expected new snapshot with two interceptors")
	}
}

func TestConcurrentRegisterAndQuery(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = r.Register(&recordingPre{})
			}
		}()
	}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				for _, ic := range r.Query(Preprocessing) {
					_ = ic.Category()
				}
			}
		}()
	}
	wg.Wait()

	if got := len(r.Query(Preprocessing)); got != 400 {
		t.Errorf("expected 400 interceptors, got %d", got)
	}
}

func TestCategories(t *testing.T) {
	r := NewRegistry()
	cats := r.Categories()
	if len(cats) != 1 || cats[0] != Preprocessing {
		t.Errorf("unexpected categories: %v", cats)
	}
}
