package allocator

import "testing"

func TestSelectKindPrefersGBM(t *testing.T) {
	backend := Capabilities{Dmabuf: true, DRMFD: true, SHM: true, DataPtr: true}
	renderer := Capabilities{Dmabuf: true, SHM: true, DataPtr: true}

	kind, err := SelectKind(backend, renderer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindGBM {
		t.Errorf("got %v, want KindGBM", kind)
	}
}

func TestSelectKindFallsBackToSHM(t *testing.T) {
	backend := Capabilities{SHM: true, DataPtr: true}
	renderer := Capabilities{SHM: true, DataPtr: true}

	kind, err := SelectKind(backend, renderer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindSHM {
		t.Errorf("got %v, want KindSHM", kind)
	}
}

func TestSelectKindFallsBackToDumb(t *testing.T) {
	backend := Capabilities{Dmabuf: true, DataPtr: true, DRMFD: true}
	renderer := Capabilities{Dmabuf: true, DataPtr: true}

	kind, err := SelectKind(backend, renderer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindDumb {
		t.Errorf("got %v, want KindDumb", kind)
	}
}

func TestSelectKindNoneCompatible(t *testing.T) {
	backend := Capabilities{}
	renderer := Capabilities{}

	if _, err := SelectKind(backend, renderer); err == nil {
		t.Fatal("expected an error when no allocator can satisfy either side")
	}
}

func TestModifiersAllowLinear(t *testing.T) {
	if !modifiersAllowLinear(nil) {
		t.Error("empty modifier list should be treated as implicit-linear")
	}
	if !modifiersAllowLinear([]uint64{ModLinear}) {
		t.Error("explicit ModLinear should be allowed")
	}
	if modifiersAllowLinear([]uint64{0xdeadbeef}) {
		t.Error("a modifier set excluding ModLinear should not be allowed by dumb/shm")
	}
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		v, align, want uint32
	}{
		{0, 64, 0},
		{1, 64, 64},
		{64, 64, 64},
		{65, 64, 128},
		{100, 64, 128},
	}
	for _, tt := range tests {
		if got := alignUp(tt.v, tt.align); got != tt.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", tt.v, tt.align, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindGBM.String() != "gbm" || KindDumb.String() != "dumb" || KindSHM.String() != "shm" || KindNone.String() != "none" {
		t.Error("unexpected Kind.String() output")
	}
}
