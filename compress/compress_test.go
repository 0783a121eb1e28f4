package compress

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	repetitive := bytes.Repeat([]byte("graphdoc "), 512)
	random := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(random)

	inputs := map[string][]byte{
		"empty":      {},
		"one byte":   {42},
		"repetitive": repetitive,
		"random":     random,
	}

	for _, tag := range []Tag{None, LZ4, Zstd} {
		for name, in := range inputs {
			t.Run(tag.String()+"/"+name, func(t *testing.T) {
				payload, err := Compress(in, tag)
				if err != nil {
					t.Fatal(err)
				}
				out, err := Decompress(payload, len(in))
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.Equal(in, out) {
					t.Fatalf("round trip mismatch: %d bytes in, %d bytes out", len(in), len(out))
				}
			})
		}
	}
}

func TestIncompressibleStoredRaw(t *testing.T) {
	random := make([]byte, 256)
	rand.New(rand.NewSource(7)).Read(random)

	payload, err := Compress(random, LZ4)
	if err != nil {
		t.Fatal(err)
	}
	if Tag(payload[0]) != None {
		t.Errorf("expected incompressible data to be tagged none, got %s", Tag(payload[0]))
	}
}

func TestCompressShrinks(t *testing.T) {
	in := bytes.Repeat([]byte{0}, 8192)
	for _, tag := range []Tag{LZ4, Zstd} {
		payload, err := Compress(in, tag)
		if err != nil {
			t.Fatal(err)
		}
		if Tag(payload[0]) != tag {
			t.Errorf("%s: payload tagged %s", tag, Tag(payload[0]))
		}
		if len(payload) >= len(in) {
			t.Errorf("%s: payload of %d bytes did not shrink", tag, len(payload))
		}
	}
}

func TestDecompressLengthMismatch(t *testing.T) {
	in := bytes.Repeat([]byte("abcd"), 100)
	for _, tag := range []Tag{None, LZ4, Zstd} {
		payload, err := Compress(in, tag)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := Decompress(payload, len(in)+3); !errors.Is(err, ErrCorrupt) {
			t.Errorf("%s: expected ErrCorrupt, got %v", tag, err)
		}
	}
}

func TestDecompressUnknownTag(t *testing.T) {
	if _, err := Decompress([]byte{200, 1, 2}, 2); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestParseTag(t *testing.T) {
	for _, tag := range []Tag{None, LZ4, Zstd} {
		got, err := ParseTag(tag.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != tag {
			t.Errorf("ParseTag(%q) = %s", tag.String(), got)
		}
	}
	if _, err := ParseTag("brotli"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
