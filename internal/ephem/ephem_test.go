package ephem

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var j2000 = time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)

func TestSpin(t *testing.T) {
	e, err := Spin(SpinConfig{Period: 3600, Distance: 1, StepsPerRotation: 4, Rotations: 2, Epoch: j2000})
	require.NoError(t, err)
	require.NoError(t, e.Validate())
	assert.Equal(t, 9, e.Len())
	assert.InDelta(t, 900, e.Step(0), 1e-9)
	assert.InDelta(t, 900, e.MaxStep(), 1e-9)
	assert.InDelta(t, 1, e.Distance(3), 1e-12)

	// A quarter turn later the sun has moved to −y in the body frame.
	u := r3.Unit(e.Sun[1])
	assert.InDelta(t, 0, u.X, 1e-12)
	assert.InDelta(t, -1, u.Y, 1e-12)

	assert.InDelta(t, 2451545.0, e.JulianDate(0), 1e-9)
	assert.InDelta(t, 2451545.0+2*3600.0/86400, e.JulianDate(8), 1e-9)
	assert.Equal(t, j2000.Add(2*time.Hour), e.Time(8))
}

func TestSpinRejectsBadConfig(t *testing.T) {
	_, err := Spin(SpinConfig{Period: 0, Distance: 1, StepsPerRotation: 4, Rotations: 1})
	assert.ErrorIs(t, err, ErrEphemeris)
}

func TestValidate(t *testing.T) {
	e := &Ephemeris{Times: []float64{0, 1, 1}, Sun: []r3.Vec{{X: 1}, {X: 1}, {X: 1}}}
	assert.ErrorIs(t, e.Validate(), ErrEphemeris)
	e = &Ephemeris{Times: []float64{0, 1}, Sun: []r3.Vec{{X: 1}, {}}}
	assert.ErrorIs(t, e.Validate(), ErrEphemeris)
	e = &Ephemeris{Times: []float64{0}, Sun: []r3.Vec{{X: 1}}}
	assert.ErrorIs(t, e.Validate(), ErrEphemeris)
}

func TestCSVRoundTrip(t *testing.T) {
	e, err := Spin(SpinConfig{Period: 100, Distance: 1.2, SubsolarLatitude: 0.3, StepsPerRotation: 10, Rotations: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, e))
	back, err := ReadCSV(&buf, e.Epoch)
	require.NoError(t, err)
	require.Equal(t, e.Len(), back.Len())
	for i := range e.Times {
		assert.Equal(t, e.Times[i], back.Times[i])
		assert.Equal(t, e.Sun[i], back.Sun[i])
	}
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("0,1,0,0\n1,x,0,0\n"), j2000)
	assert.ErrorIs(t, err, ErrEphemeris)
	_, err = ReadCSV(strings.NewReader("0,1,0\n"), j2000)
	assert.ErrorIs(t, err, ErrEphemeris)
}

func TestSubset(t *testing.T) {
	e, err := Spin(SpinConfig{Period: 100, Distance: 1, StepsPerRotation: 10, Rotations: 2})
	require.NoError(t, err)
	s := e.Subset([]int{18, 19, 20})
	assert.Equal(t, []float64{180, 190, 200}, s.Times)
	assert.Equal(t, e.Sun[20], s.Sun[2])
}

func TestMutualOrbit(t *testing.T) {
	b, err := MutualOrbit(OrbitConfig{
		Spin:        SpinConfig{Period: 8000, Distance: 1, StepsPerRotation: 8, Rotations: 3},
		OrbitPeriod: 40000,
		Separation:  1200,
	})
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	for i := range b.Offset {
		assert.InDelta(t, 1200, r3.Norm(b.Offset[i]), 1e-9)

		// Rotating the secondary-frame sun into the primary frame and adding
		// the offset must give the primary-frame sun.
		sun := r3.Add(Apply(b.Rotation[i], b.SunSecondary[i]), b.Offset[i])
		diff := r3.Norm(r3.Sub(sun, b.Primary.Sun[i]))
		assert.Less(t, diff/r3.Norm(sun), 1e-12, "sample %d", i)
	}

	// At t=0 the secondary sits on +x, between the primary and the sun.
	assert.InDelta(t, 1200, b.Offset[0].X, 1e-9)
	assert.InDelta(t, 0, b.Offset[0].Y, 1e-9)

	sub := b.Subset([]int{0, 5})
	require.NoError(t, sub.Validate())
	assert.Equal(t, b.Offset[5], sub.Offset[1])
	assert.Equal(t, b.Primary.Times, b.Secondary().Times)
}

func TestRotZ(t *testing.T) {
	v := Apply(RotZ(math.Pi/2), r3.Vec{X: 1})
	assert.InDelta(t, 0, v.X, 1e-15)
	assert.InDelta(t, 1, v.Y, 1e-15)
}

func TestBinaryCSVRoundTrip(t *testing.T) {
	b, err := MutualOrbit(OrbitConfig{
		Spin:        SpinConfig{Period: 8000, Distance: 1, StepsPerRotation: 8, Rotations: 2},
		OrbitPeriod: 40000,
		Separation:  1200,
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteBinaryCSV(&buf, b))
	text := buf.String()
	back, err := ReadBinaryCSV(strings.NewReader(text), b.Primary)
	require.NoError(t, err)
	require.Len(t, back.Offset, len(b.Offset))
	for i := range b.Offset {
		assert.Equal(t, b.SunSecondary[i], back.SunSecondary[i])
		assert.Equal(t, b.Offset[i], back.Offset[i])
		assert.Equal(t, b.Rotation[i].RawMatrix().Data, back.Rotation[i].RawMatrix().Data)
	}

	short := b.Primary.Subset([]int{0, 1})
	_, err = ReadBinaryCSV(strings.NewReader(text), short)
	assert.Error(t, err)
}
