package codec

import "testing"

// manifestEntry mirrors the shape internal/merge's link-only manifest
// sidecar encodes, so this benchmark exercises Default against a
// realistic payload rather than a synthetic one.
type manifestEntry struct {
	BasePath  string `json:"base_path"`
	SourceDir string `json:"source_dir"`
}

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	var sink []byte
	b.ResetTimer()
	for b.Loop() {
		out, err := c.Marshal(v)
		if err != nil {
			b.Fatal(err)
		}
		sink = out
	}
	_ = sink
}

func benchmarkCodecUnmarshal[T any](b *testing.B, c Codec, data []byte, dst *T) {
	b.Helper()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	var v T
	b.ResetTimer()
	for b.Loop() {
		if err := c.Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
	if dst != nil {
		*dst = v
	}
}

func benchManifest() []manifestEntry {
	return []manifestEntry{
		{BasePath: "L_16/l_0.0500/d_+0.0000", SourceDir: "/data/runs/run1"},
		{BasePath: "L_16/l_0.1000/d_+0.0000", SourceDir: "/data/runs/run2"},
		{BasePath: "L_16/l_0.1000/d_+0.5000", SourceDir: "/data/runs/run3"},
	}
}

func BenchmarkCodec_Marshal_Manifest(b *testing.B) {
	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, benchManifest()) })
}

func BenchmarkCodec_Unmarshal_Manifest(b *testing.B) {
	data := MustMarshal(JSON{}, benchManifest())

	b.Run("stdlib", func(b *testing.B) {
		var sink []manifestEntry
		benchmarkCodecUnmarshal(b, JSON{}, data, &sink)
		_ = sink
	})
}
