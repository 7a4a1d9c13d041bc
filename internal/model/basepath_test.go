package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPathRewriterSdual(t *testing.T) {
	id := NewId(Sdual{Lambda: 0.05, Delta: 0.0}, 16, "gaussian", "xDMRG")
	assert.Equal(t, "L_16/l_0.0500/d_+0.0000", id.BasePath)
}

func TestPathRewriterSdualNegativeDelta(t *testing.T) {
	id := NewId(Sdual{Lambda: 0.05, Delta: -0.2}, 16, "gaussian", "xDMRG")
	assert.Equal(t, "L_16/l_0.0500/d_-0.2000", id.BasePath)
}

func TestPathRewriterLbitFiniteRange(t *testing.T) {
	p := Lbit{
		J1Mean: 1, J2Mean: 0.2, J3Mean: -0.1,
		J1Wdth: 0.5, J2Wdth: 0.25, J3Wdth: 0.1,
		J2Xcls: 0.5, FMixer: 0.2, ULayer: 6,
		J2Span: 16,
	}
	id := NewId(p, 16, "uniform", "flbit")
	assert.Equal(t, "L_16/J[+1.0000_+0.2000_-0.1000]/w[+0.5000_+0.2500_+0.1000]/x_0.5000/f_0.2000/u_6/r_16", id.BasePath)
}

func TestPathRewriterLbitInfiniteRange(t *testing.T) {
	p := Lbit{J2Span: InfiniteRange, ULayer: 3}
	id := NewId(p, 8, "uniform", "flbit")
	assert.Equal(t, "L_8/J[+0.0000_+0.0000_+0.0000]/w[+0.0000_+0.0000_+0.0000]/x_0.0000/f_0.0000/u_3/r_L", id.BasePath)
}

func TestPathRewriterDeterministic(t *testing.T) {
	p := Sdual{Lambda: 1.2345, Delta: 0.1}
	a := PathRewriter(NewId(p, 16, "", ""), DefaultPrecision)
	b := PathRewriter(NewId(p, 16, "", ""), DefaultPrecision)
	assert.Equal(t, a, b)
}
