package infrastructure

import (
	"math"
	"testing"

	"github.com/harunon/kanade/internal/modules/player/domain"
)

// sine generates n interleaved stereo samples of a sine wave at freq Hz.
func sine(freq float64, sampleRate, n int, amplitude float64) []int16 {
	pcm := make([]int16, n*2)
	for i := range n {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		s := clampSample(v * 32768)
		pcm[i*2] = s
		pcm[i*2+1] = s
	}
	return pcm
}

func rms(pcm []int16) float64 {
	var sum float64
	for _, s := range pcm {
		v := float64(s) / 32768
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(pcm)))
}

func TestEQChain_HiFiIsPassthrough(t *testing.T) {
	chain := newEQChain(domain.EQHiFi, 48000, 2)

	pcm := sine(440, 48000, 4800, 0.5)
	want := make([]int16, len(pcm))
	copy(want, pcm)

	chain.Process(pcm)

	for i := range pcm {
		if pcm[i] != want[i] {
			t.Fatalf("sample %d changed: %d -> %d", i, want[i], pcm[i])
		}
	}
}

func TestEQChain_BalancedBoostsBass(t *testing.T) {
	// A 80 Hz tone sits in the bass peak and must come out louder than it
	// went in; a 1 kHz tone sits between the peaks and must stay roughly
	// unchanged.
	lowIn := sine(80, 48000, 48000, 0.25)
	midIn := sine(1000, 48000, 48000, 0.25)
	lowBefore := rms(lowIn)
	midBefore := rms(midIn)

	newEQChain(domain.EQBalanced, 48000, 2).Process(lowIn)
	newEQChain(domain.EQBalanced, 48000, 2).Process(midIn)

	lowGain := rms(lowIn) / lowBefore
	midGain := rms(midIn) / midBefore

	if lowGain <= midGain {
		t.Errorf("bass gain %.3f not above mid gain %.3f", lowGain, midGain)
	}
}

func TestEQChain_NeverClipsBeyondRange(t *testing.T) {
	pcm := sine(80, 48000, 9600, 0.99)
	newEQChain(domain.EQBalanced, 48000, 2).Process(pcm)
	// Filtered output stays within int16; clampSample guarantees it, this
	// pins the guarantee down.
	for i, s := range pcm {
		if s < math.MinInt16 || s > math.MaxInt16 {
			t.Fatalf("sample %d out of range: %d", i, s)
		}
	}
}

func TestPeakingEQ_UnityAtDC(t *testing.T) {
	f := newPeakingEQ(48000, 8000, 0.707, 2)

	// Feed a long DC signal; a peaking filter leaves DC untouched.
	var out float64
	for range 48000 {
		out = f.process(0.5)
	}
	if math.Abs(out-0.5) > 0.01 {
		t.Errorf("DC response = %.4f, want 0.5", out)
	}
}
