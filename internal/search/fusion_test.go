package search

import (
	"reflect"
	"testing"
)

func TestFuse(t *testing.T) {
	tests := []struct {
		name        string
		text, image []float32
		want        []float32
	}{
		{"both present", []float32{1, 0}, []float32{0, 1}, []float32{0.5, 0.5}},
		{"text only", []float32{1, 0}, nil, []float32{1, 0}},
		{"image only", nil, []float32{0, 1}, []float32{0, 1}},
		{"neither", nil, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fuse(tt.text, tt.image); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Fuse = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFuseDoesNotMutateInputs(t *testing.T) {
	text := []float32{1, 0}
	image := []float32{0, 1}
	_ = Fuse(text, image)
	if text[0] != 1 || image[1] != 1 {
		t.Error("Fuse mutated its inputs")
	}
}
