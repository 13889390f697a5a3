package types

import (
	"math"
	"math/bits"

	"golang.org/x/image/math/f32"
)

// Float4 is a 4-lane float vector. All operations are evaluated lane by lane
// so a plain loop and a vectorized implementation yield identical results.
type Float4 f32.Vec4

// Mask4 holds one bit per Float4 lane; bit i is set if lane i passed a test.
type Mask4 uint8

const (
	// All four lanes set.
	MaskAll Mask4 = 0xf

	signBit = 1 << 31
)

// Broadcast a scalar to all lanes.
func Splat4(s float32) Float4 {
	return Float4{s, s, s, s}
}

// Lane-wise addition.
func (a Float4) Add(b Float4) Float4 {
	return Float4{a[0] + b[0], a[1] + b[1], a[2] + b[2], a[3] + b[3]}
}

// Lane-wise subtraction.
func (a Float4) Sub(b Float4) Float4 {
	return Float4{a[0] - b[0], a[1] - b[1], a[2] - b[2], a[3] - b[3]}
}

// Lane-wise multiplication.
func (a Float4) Mul(b Float4) Float4 {
	return Float4{a[0] * b[0], a[1] * b[1], a[2] * b[2], a[3] * b[3]}
}

// Lane-wise minimum. If a lane of b is NaN the lane of a is kept.
func (a Float4) Min(b Float4) Float4 {
	for i := range a {
		if b[i] < a[i] {
			a[i] = b[i]
		}
	}
	return a
}

// Lane-wise maximum. If a lane of b is NaN the lane of a is kept.
func (a Float4) Max(b Float4) Float4 {
	for i := range a {
		if b[i] > a[i] {
			a[i] = b[i]
		}
	}
	return a
}

// Lane-wise absolute value.
func (a Float4) Abs() Float4 {
	for i := range a {
		a[i] = math.Float32frombits(math.Float32bits(a[i]) &^ signBit)
	}
	return a
}

// Transfer the sign bit of s onto each lane of a. This flips the lanes of a
// whose matching lane in s is negative (including -0).
func (a Float4) XorSign(s Float4) Float4 {
	for i := range a {
		a[i] = math.Float32frombits(math.Float32bits(a[i]) ^ (math.Float32bits(s[i]) & signBit))
	}
	return a
}

// Swap lanes (0,1) with lanes (2,3).
func (a Float4) SwapHalves() Float4 {
	return Float4{a[2], a[3], a[0], a[1]}
}

// Reduce into a (near, near, far, far) accumulator: lanes 0 and 1 take the
// maximum, lanes 2 and 3 the minimum. NaN lanes of b are ignored.
func (a Float4) NearFar(b Float4) Float4 {
	if b[0] > a[0] {
		a[0] = b[0]
	}
	if b[1] > a[1] {
		a[1] = b[1]
	}
	if b[2] < a[2] {
		a[2] = b[2]
	}
	if b[3] < a[3] {
		a[3] = b[3]
	}
	return a
}

// Lane-wise a < b.
func (a Float4) Less(b Float4) Mask4 {
	var m Mask4
	for i := range a {
		if a[i] < b[i] {
			m |= 1 << uint(i)
		}
	}
	return m
}

// Lane-wise a <= b.
func (a Float4) LessEq(b Float4) Mask4 {
	var m Mask4
	for i := range a {
		if a[i] <= b[i] {
			m |= 1 << uint(i)
		}
	}
	return m
}

// Lane-wise a != b. NaN lanes compare as not-equal.
func (a Float4) NotEq(b Float4) Mask4 {
	var m Mask4
	for i := range a {
		if a[i] != b[i] {
			m |= 1 << uint(i)
		}
	}
	return m
}

// Pick lanes from a where m is set and from b otherwise.
func Select4(m Mask4, a, b Float4) Float4 {
	var out Float4
	for i := range out {
		if m.Lane(i) {
			out[i] = a[i]
		} else {
			out[i] = b[i]
		}
	}
	return out
}

// Dot product of two 3-component lane vectors.
func Dot4(ax, ay, az, bx, by, bz Float4) Float4 {
	return ax.Mul(bx).Add(ay.Mul(by)).Add(az.Mul(bz))
}

// Returns true if lane i is set.
func (m Mask4) Lane(i int) bool {
	return m&(1<<uint(i)) != 0
}

// Returns true if any lane is set.
func (m Mask4) Any() bool {
	return m&MaskAll != 0
}

// Number of set lanes.
func (m Mask4) Count() int {
	return bits.OnesCount8(uint8(m & MaskAll))
}

// Clear lane i.
func (m Mask4) Clear(i int) Mask4 {
	return m &^ (1 << uint(i))
}

// Build a mask with the first n lanes set.
func FirstLanes(n int) Mask4 {
	if n >= 4 {
		return MaskAll
	}
	return Mask4(1<<uint(n)) - 1
}
