package codec_test

import (
	"errors"
	"math"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/stealthrocket/graphdoc/codec"
	"github.com/stealthrocket/graphdoc/compress"
)

func roundTripText(t *testing.T, r *codec.Registry, x any) any {
	t.Helper()
	v := reflect.ValueOf(x)
	s, err := r.EncodeText(v)
	require.NoError(t, err)
	out, err := r.DecodeText(v.Type(), s)
	require.NoError(t, err)
	return out.Interface()
}

func TestScalarRoundTrip(t *testing.T) {
	r := codec.NewRegistry()
	now := time.Date(2024, 3, 1, 12, 30, 45, 123456789, time.UTC)

	values := []any{
		true, false,
		int(-42), int8(math.MinInt8), int16(math.MaxInt16), int32(-7), int64(math.MinInt64),
		uint(42), uint8(255), uint16(65535), uint32(math.MaxUint32), uint64(math.MaxUint64),
		uintptr(0xdead),
		float32(1.5), float32(0.1), float64(-2.25), float64(1e21), math.Inf(1),
		complex64(1 + 2i), complex128(-3.5 + 0.25i),
		"", "hello", "null", "with spaces\nand lines",
		'x',
		3*time.Second + 5*time.Millisecond,
		now,
	}
	for _, x := range values {
		got := roundTripText(t, r, x)
		if diff := cmp.Diff(x, got); diff != "" {
			t.Errorf("%T round trip mismatch (-want +got):\n%s", x, diff)
		}
	}
}

func TestBigRoundTrip(t *testing.T) {
	r := codec.NewRegistry()

	i, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	gotInt := roundTripText(t, r, i).(*big.Int)
	require.Zero(t, i.Cmp(gotInt))

	f := big.NewFloat(1234.5625)
	gotFloat := roundTripText(t, r, f).(*big.Float)
	require.Zero(t, f.Cmp(gotFloat))

	q := big.NewRat(-22, 7)
	gotRat := roundTripText(t, r, q).(*big.Rat)
	require.Zero(t, q.Cmp(gotRat))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		f    float64
		bits int
		want string
	}{
		{1, 64, "1.0"},
		{0, 64, "0.0"},
		{-2.5, 64, "-2.5"},
		{0.1, 32, "0.1"},
		{1e21, 64, "1000000000000000000000.0"},
		{math.Inf(-1), 64, "-Inf"},
		{math.NaN(), 64, "NaN"},
	}
	for _, test := range tests {
		if got := codec.FormatFloat(test.f, test.bits); got != test.want {
			t.Errorf("FormatFloat(%v) = %q, want %q", test.f, got, test.want)
		}
	}
}

func TestExactDispatch(t *testing.T) {
	type Celsius float64
	r := codec.NewRegistry()

	require.True(t, r.HasText(reflect.TypeFor[float64]()))
	require.False(t, r.HasText(reflect.TypeFor[Celsius]()))

	_, err := r.EncodeText(reflect.ValueOf(Celsius(3)))
	var notFound *codec.CodecNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.False(t, notFound.Binary)

	_, err = r.DecodeBinary(reflect.TypeFor[string](), codec.Blob{Length: 1})
	require.ErrorAs(t, err, &notFound)
	require.True(t, notFound.Binary)
}

func TestHexArrayIndexing(t *testing.T) {
	s, err := codec.EncodeHex([]int32{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, "010000000200000003000000", s)

	got, err := codec.DecodeHex[int32](s)
	require.NoError(t, err)
	require.Equal(t, []int32{1, 2, 3}, got)

	_, err = codec.DecodeHex[int32](s[:len(s)-2])
	require.Error(t, err)
}

func TestTextArrayRoundTrip(t *testing.T) {
	r := codec.NewRegistry()
	values := []any{
		[]byte{0, 1, 2, 0xff},
		[]int8{-1, 0, 1, math.MaxInt8},
		[]int16{-300, 0, 300, math.MinInt16},
		[]uint16{1, 2, 3, 65535},
		[]int32{1, 2, 3},
		[]uint32{10, 20, 30, math.MaxUint32},
		[]int64{-1, math.MaxInt64, 5},
		[]uint64{7, 8, 9, math.MaxUint64},
	}
	for _, x := range values {
		got := roundTripText(t, r, x)
		if diff := cmp.Diff(x, got); diff != "" {
			t.Errorf("%T round trip mismatch (-want +got):\n%s", x, diff)
		}
	}
}

func TestBinaryArrayRoundTrip(t *testing.T) {
	for _, tag := range []compress.Tag{compress.None, compress.LZ4, compress.Zstd} {
		t.Run(tag.String(), func(t *testing.T) {
			r := codec.NewRegistry(codec.WithCompression(tag))

			long := make([]int64, 1000)
			for i := range long {
				long[i] = int64(i % 7)
			}
			values := []any{
				[]byte("hello hello hello hello"),
				[]int16{1, 2, 3},
				[]uint16{3, 2, 1},
				[]int32{1, 2, 3},
				[]uint32{4, 5, 6, 7},
				long,
				[]uint64{math.MaxUint64, 0, 1},
				[]float32{0.5, -1.25, 3},
				[]float64{math.Pi, math.E, -0.0},
			}
			for _, x := range values {
				v := reflect.ValueOf(x)
				blob, err := r.EncodeBinary(v)
				require.NoError(t, err)

				got, err := r.DecodeBinary(v.Type(), blob)
				require.NoError(t, err)
				if diff := cmp.Diff(x, got.Interface()); diff != "" {
					t.Errorf("%T round trip mismatch (-want +got):\n%s", x, diff)
				}
			}
		})
	}
}

func TestBinaryZeroLength(t *testing.T) {
	r := codec.NewRegistry()
	v, err := r.DecodeBinary(reflect.TypeFor[[]int32](), codec.Blob{})
	require.NoError(t, err)
	require.Nil(t, v.Interface())
}

func TestUnpackRejectsPartialElements(t *testing.T) {
	_, err := codec.Unpack[uint32]([]byte{1, 2, 3, 4, 5})
	require.Error(t, err)
}

func TestTypeValue(t *testing.T) {
	type Local struct{ A int }
	r := codec.NewRegistry()

	for _, typ := range []reflect.Type{
		reflect.TypeFor[int](),
		reflect.TypeFor[Local](),
		reflect.TypeFor[[]*Local](),
		reflect.TypeFor[map[string]time.Duration](),
	} {
		got := roundTripText(t, r, typ)
		require.Equal(t, typ, got)
	}

	s, err := r.EncodeText(reflect.ValueOf(reflect.TypeFor[Local]()))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(s, " github.com/stealthrocket/graphdoc/codec_test"), s)

	_, err = r.ResolveType("example.com/nowhere.Thing example.com/nowhere")
	var resolution *codec.TypeResolutionError
	require.ErrorAs(t, err, &resolution)
	require.Equal(t, "example.com/nowhere", resolution.Package)

	_, err = r.ResolveType("github.com/stealthrocket/graphdoc/codec_test.Missing github.com/stealthrocket/graphdoc/codec_test")
	require.ErrorAs(t, err, &resolution)
}

type point struct {
	X, Y int
	Tag  string
}

func TestCBOR(t *testing.T) {
	r := codec.NewRegistry()
	require.NoError(t, codec.RegisterCBOR[point](r))
	require.True(t, r.HasBinary(reflect.TypeFor[point]()))
	require.False(t, r.HasText(reflect.TypeFor[point]()))

	p := point{X: 1, Y: -2, Tag: "p"}
	blob, err := r.EncodeBinary(reflect.ValueOf(p))
	require.NoError(t, err)
	got, err := r.DecodeBinary(reflect.TypeFor[point](), blob)
	require.NoError(t, err)
	require.Equal(t, p, got.Interface())
}

func TestProto(t *testing.T) {
	r := codec.NewRegistry()
	require.NoError(t, codec.RegisterProto[*durationpb.Duration](r))

	d := durationpb.New(90 * time.Second)
	typ := reflect.TypeFor[*durationpb.Duration]()

	s, err := r.EncodeText(reflect.ValueOf(d))
	require.NoError(t, err)
	fromText, err := r.DecodeText(typ, s)
	require.NoError(t, err)
	require.True(t, proto.Equal(d, fromText.Interface().(*durationpb.Duration)))

	blob, err := r.EncodeBinary(reflect.ValueOf(d))
	require.NoError(t, err)
	fromBinary, err := r.DecodeBinary(typ, blob)
	require.NoError(t, err)
	require.True(t, proto.Equal(d, fromBinary.Interface().(*durationpb.Duration)))
}

func TestRegisterModule(t *testing.T) {
	type Celsius float64
	r := codec.NewRegistry()

	m := codec.ModuleFunc(func() []codec.Entry {
		return []codec.Entry{
			codec.Text(
				func(c Celsius) (string, error) { return codec.FormatFloat(float64(c), 64) + "C", nil },
				func(s string) (Celsius, error) {
					v, err := r.DecodeText(reflect.TypeFor[float64](), strings.TrimSuffix(s, "C"))
					if err != nil {
						return 0, err
					}
					return Celsius(v.Float()), nil
				},
			),
		}
	})
	require.NoError(t, r.RegisterModule(m))

	s, err := r.EncodeText(reflect.ValueOf(Celsius(21.5)))
	require.NoError(t, err)
	require.Equal(t, "21.5C", s)
	require.Equal(t, Celsius(21.5), roundTripText(t, r, Celsius(21.5)))
}

func TestRegisterInvalid(t *testing.T) {
	r := codec.NewRegistry()
	require.ErrorIs(t, r.Register(codec.Entry{}), codec.ErrInvalidEntry)
	err := r.Register(codec.Entry{Type: reflect.TypeFor[point](), Text: &codec.TextCodec{}})
	require.True(t, errors.Is(err, codec.ErrInvalidEntry))
}

func TestLoadModuleMissing(t *testing.T) {
	r := codec.NewRegistry()
	require.Error(t, r.LoadModule(t.TempDir()+"/missing.so"))
}
