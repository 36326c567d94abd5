package audio

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	in := []float32{0, 0.5, -0.5, 0.25, -1, 0.999}
	if err := WriteWAV(path, in, 44100); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	sig, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sig.SampleRate != 44100 {
		t.Fatalf("sample rate = %d, want 44100", sig.SampleRate)
	}
	if len(sig.Samples) != len(in) {
		t.Fatalf("got %d samples, want %d", len(sig.Samples), len(in))
	}
	for i := range in {
		if d := sig.Samples[i] - in[i]; d > 1e-3 || d < -1e-3 {
			t.Fatalf("sample %d = %v, want ~%v", i, sig.Samples[i], in[i])
		}
	}
}

func TestLoadResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.wav")
	if err := WriteWAV(path, make([]float32, 44100), 44100); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	sig, err := Load(path, 22050)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sig.SampleRate != 22050 || len(sig.Samples) != 22050 {
		t.Fatalf("got %d samples at %d Hz", len(sig.Samples), sig.SampleRate)
	}
	if sig.Duration() != 1 {
		t.Fatalf("duration = %v", sig.Duration())
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not RIFF"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path, 0); err == nil {
		t.Fatal("expected error for invalid wav")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.wav"), 0); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResampleLinear(t *testing.T) {
	s := Signal{Samples: []float32{0, 1, 2, 3}, SampleRate: 2}
	up := Resample(s, 4)
	want := []float32{0, 0.5, 1, 1.5, 2, 2.5, 3, 3}
	if len(up.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(up.Samples), len(want))
	}
	for i := range want {
		if up.Samples[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, up.Samples[i], want[i])
		}
	}
	if same := Resample(s, 2); len(same.Samples) != 4 {
		t.Fatal("resampling to the same rate should be a no-op")
	}
}
