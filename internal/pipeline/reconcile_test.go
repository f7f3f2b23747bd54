package pipeline

import (
	"reflect"
	"testing"
)

const (
	urlA = "https://service.example/projects/a"
	urlB = "https://service.example/projects/b"
	urlC = "https://service.example/projects/c"
)

func warn(url string) Warning {
	return Warning{URL: url, Message: DefaultMessage(url)}
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		prev     WarningSet
		urls     []string
		outcomes map[string]bool
		want     WarningSet
	}{
		{
			name: "empty",
			want: WarningSet{},
		},
		{
			name:     "new unreachable url",
			urls:     []string{urlA},
			outcomes: map[string]bool{urlA: false},
			want:     WarningSet{warn(urlA)},
		},
		{
			name:     "reachable url gets no warning",
			urls:     []string{urlA},
			outcomes: map[string]bool{urlA: true},
			want:     WarningSet{},
		},
		{
			name:     "vanished url is dropped",
			prev:     WarningSet{warn(urlA), warn(urlB)},
			urls:     []string{urlB},
			outcomes: map[string]bool{urlB: false},
			want:     WarningSet{warn(urlB)},
		},
		{
			name:     "recovered url is cleared",
			prev:     WarningSet{warn(urlA)},
			urls:     []string{urlA},
			outcomes: map[string]bool{urlA: true},
			want:     WarningSet{},
		},
		{
			name: "throttled url keeps its warning",
			prev: WarningSet{warn(urlA)},
			urls: []string{urlA},
			want: WarningSet{warn(urlA)},
		},
		{
			name: "throttled url without warning stays clear",
			urls: []string{urlA},
			want: WarningSet{},
		},
		{
			name:     "upsert is idempotent",
			prev:     WarningSet{{URL: urlA, Message: "original"}},
			urls:     []string{urlA},
			outcomes: map[string]bool{urlA: false},
			want:     WarningSet{{URL: urlA, Message: "original"}},
		},
		{
			name:     "ordered by text",
			prev:     WarningSet{warn(urlA)},
			urls:     []string{urlC, urlB, urlA},
			outcomes: map[string]bool{urlB: false, urlC: false},
			want:     WarningSet{warn(urlC), warn(urlB), warn(urlA)},
		},
		{
			name:     "mixed outcomes",
			urls:     []string{urlA, urlB},
			outcomes: map[string]bool{urlA: true, urlB: false},
			want:     WarningSet{warn(urlB)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reconcile(tt.prev, tt.urls, tt.outcomes, DefaultMessage)
			if got == nil {
				t.Fatal("reconcile() returned nil")
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("reconcile() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReconcile_DoesNotModifyPrev(t *testing.T) {
	prev := WarningSet{warn(urlA), warn(urlB)}
	_ = reconcile(prev, []string{urlB}, map[string]bool{urlB: true}, DefaultMessage)

	if len(prev) != 2 || prev[0].URL != urlA || prev[1].URL != urlB {
		t.Errorf("prev modified: %+v", prev)
	}
}

func TestWarningSet_Equal(t *testing.T) {
	a := WarningSet{warn(urlA), warn(urlB)}

	if !a.Equal(a.Clone()) {
		t.Error("set not equal to its clone")
	}
	if a.Equal(WarningSet{warn(urlB), warn(urlA)}) {
		t.Error("Equal() ignores order")
	}
	if a.Equal(WarningSet{warn(urlA)}) {
		t.Error("Equal() ignores length")
	}
	if !(WarningSet{}).Equal(nil) {
		t.Error("empty and nil sets should be equal")
	}
	if a.Equal(WarningSet{warn(urlA), {URL: urlB, Message: "other"}}) {
		t.Error("Equal() ignores message")
	}
}

func TestWarningSet_Helpers(t *testing.T) {
	s := WarningSet{warn(urlA), warn(urlB)}

	if got := s.URLs(); !reflect.DeepEqual(got, []string{urlA, urlB}) {
		t.Errorf("URLs() = %v", got)
	}
	if !s.Contains(urlB) || s.Contains(urlC) {
		t.Error("Contains() wrong")
	}

	var empty WarningSet
	if empty.Clone() == nil {
		t.Error("Clone() of nil set returned nil")
	}

	c := s.Clone()
	c[0].Message = "changed"
	if s[0].Message == "changed" {
		t.Error("Clone() shares storage")
	}
}

func TestDefaultMessage(t *testing.T) {
	want := "The project link https://service.example/projects/abc123 may not be publicly viewable."
	if got := DefaultMessage("https://service.example/projects/abc123"); got != want {
		t.Errorf("DefaultMessage() = %q, want %q", got, want)
	}
}
