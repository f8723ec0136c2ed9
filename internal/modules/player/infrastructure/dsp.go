package infrastructure

import (
	"math"

	"github.com/harunon/kanade/internal/modules/player/domain"
)

// biquad is a direct-form-I second-order IIR filter section.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

// newPeakingEQ builds a peaking equalizer section from the RBJ audio EQ
// cookbook formulas.
func newPeakingEQ(sampleRate, freq, q, gainDB float64) *biquad {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosw0 := math.Cos(w0)

	b0 := 1 + alpha*a
	b1 := -2 * cosw0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosw0
	a2 := 1 - alpha/a

	return &biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// leveler is a slow RMS-tracking gain stage that nudges program loudness
// toward a target level. The gain moves gradually so short transients pass
// through uncompressed.
type leveler struct {
	targetRMS float64
	gain      float64
	avg       float64
	attack    float64
}

func newLeveler(targetDBFS float64) *leveler {
	return &leveler{
		targetRMS: math.Pow(10, targetDBFS/20),
		gain:      1,
		attack:    0.0005,
	}
}

func (l *leveler) process(x float64) float64 {
	l.avg = l.avg*(1-l.attack) + x*x*l.attack
	if l.avg > 1e-8 {
		want := l.targetRMS / math.Sqrt(l.avg)
		if want > 4 {
			want = 4
		}
		l.gain += (want - l.gain) * l.attack
	}
	return x * l.gain
}

// eqChain applies a per-channel equalization and leveling chain to
// interleaved 16-bit PCM. The balanced profile lifts lows around 80 Hz and
// presence around 8 kHz and levels loudness; the hi-fi profile passes audio
// through uncolored.
type eqChain struct {
	channels int
	filters  [][]*biquad
	levelers []*leveler
}

const (
	bassFreq    = 80
	trebleFreq  = 8000
	bassGainDB  = 3
	trebGainDB  = 2
	filterQ     = 0.707
	levelTarget = -18
)

func newEQChain(profile domain.EQProfile, sampleRate, channels int) *eqChain {
	c := &eqChain{channels: channels}
	if profile != domain.EQBalanced {
		return c
	}

	c.filters = make([][]*biquad, channels)
	c.levelers = make([]*leveler, channels)
	for ch := range channels {
		c.filters[ch] = []*biquad{
			newPeakingEQ(float64(sampleRate), bassFreq, filterQ, bassGainDB),
			newPeakingEQ(float64(sampleRate), trebleFreq, filterQ, trebGainDB),
		}
		c.levelers[ch] = newLeveler(levelTarget)
	}
	return c
}

// Process filters pcm in place. No-op for a passthrough chain.
func (c *eqChain) Process(pcm []int16) {
	if len(c.filters) == 0 {
		return
	}

	for i, s := range pcm {
		ch := i % c.channels
		x := float64(s) / 32768
		for _, f := range c.filters[ch] {
			x = f.process(x)
		}
		x = c.levelers[ch].process(x)
		pcm[i] = clampSample(x * 32768)
	}
}

func clampSample(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
