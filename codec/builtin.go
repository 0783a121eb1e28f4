package codec

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// Precision of the big.Float values decoded from text, in bits. Enough for
// every decimal digit of a 128-bit decimal.
const bigFloatPrec = 256

type signedInt interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type unsignedInt interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

func registerScalars(r *Registry) {
	r.mustRegister(Text(
		func(x bool) (string, error) { return strconv.FormatBool(x), nil },
		strconv.ParseBool,
	))

	r.mustRegister(signed[int](strconv.IntSize))
	r.mustRegister(signed[int8](8))
	r.mustRegister(signed[int16](16))
	r.mustRegister(signed[int32](32))
	r.mustRegister(signed[int64](64))

	r.mustRegister(unsigned[uint](strconv.IntSize))
	r.mustRegister(unsigned[uint8](8))
	r.mustRegister(unsigned[uint16](16))
	r.mustRegister(unsigned[uint32](32))
	r.mustRegister(unsigned[uint64](64))
	r.mustRegister(unsigned[uintptr](strconv.IntSize))

	r.mustRegister(float[float32](32))
	r.mustRegister(float[float64](64))

	r.mustRegister(Text(
		func(x complex64) (string, error) { return strconv.FormatComplex(complex128(x), 'f', -1, 64), nil },
		func(s string) (complex64, error) {
			c, err := strconv.ParseComplex(s, 64)
			return complex64(c), err
		},
	))
	r.mustRegister(Text(
		func(x complex128) (string, error) { return strconv.FormatComplex(x, 'f', -1, 128), nil },
		func(s string) (complex128, error) { return strconv.ParseComplex(s, 128) },
	))

	r.mustRegister(Text(
		func(x string) (string, error) { return x, nil },
		func(s string) (string, error) { return s, nil },
	))

	r.mustRegister(Text(
		func(x time.Duration) (string, error) { return x.String(), nil },
		time.ParseDuration,
	))
	r.mustRegister(Text(
		func(x time.Time) (string, error) { return x.Format(time.RFC3339Nano), nil },
		func(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) },
	))

	r.mustRegister(Text(
		func(x *big.Int) (string, error) { return x.String(), nil },
		func(s string) (*big.Int, error) {
			x, ok := new(big.Int).SetString(s, 10)
			if !ok {
				return nil, strconv.ErrSyntax
			}
			return x, nil
		},
	))
	r.mustRegister(Text(
		func(x *big.Float) (string, error) { return x.Text('g', -1), nil },
		func(s string) (*big.Float, error) {
			x, _, err := big.ParseFloat(s, 10, bigFloatPrec, big.ToNearestEven)
			return x, err
		},
	))
	r.mustRegister(Text(
		func(x *big.Rat) (string, error) { return x.RatString(), nil },
		func(s string) (*big.Rat, error) {
			x, ok := new(big.Rat).SetString(s)
			if !ok {
				return nil, strconv.ErrSyntax
			}
			return x, nil
		},
	))
}

func signed[T signedInt](bits int) Entry {
	return Text(
		func(x T) (string, error) { return strconv.FormatInt(int64(x), 10), nil },
		func(s string) (T, error) {
			n, err := strconv.ParseInt(s, 10, bits)
			return T(n), err
		},
	)
}

func unsigned[T unsignedInt](bits int) Entry {
	return Text(
		func(x T) (string, error) { return strconv.FormatUint(uint64(x), 10), nil },
		func(s string) (T, error) {
			n, err := strconv.ParseUint(s, 10, bits)
			return T(n), err
		},
	)
}

func float[T ~float32 | ~float64](bits int) Entry {
	return Text(
		func(x T) (string, error) { return FormatFloat(float64(x), bits), nil },
		func(s string) (T, error) {
			f, err := strconv.ParseFloat(s, bits)
			return T(f), err
		},
	)
}

// FormatFloat renders f in positional notation with the fewest digits that
// parse back to the same value, and always at least one decimal ("1.0").
func FormatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.IndexByte(s, '.') >= 0 {
		return s
	}
	return s + ".0"
}
