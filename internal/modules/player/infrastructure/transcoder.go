package infrastructure

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/asticode/go-astiav"

	"github.com/harunon/kanade/internal/modules/player/domain"
	"github.com/harunon/kanade/internal/modules/player/ports"
)

// Discord voice expects 48 kHz stereo at 20 ms per frame.
const (
	pcmSampleRate   = 48000
	pcmChannels     = 2
	pcmFrameSamples = 960
)

var astiavLogOnce sync.Once

// PCMStream is an audio stream that yields fixed-size interleaved PCM
// frames of pcmFrameSamples samples per channel.
type PCMStream interface {
	ports.AudioStream
	ReadPCM() ([]int16, error)
}

// Transcoder decodes a remote media stream with FFmpeg and resamples it to
// 48 kHz stereo s16 PCM. Volume scaling and the equalization chain run on
// each output frame, so volume changes apply mid-playback. Not safe for
// concurrent ReadPCM calls; the voice send loop is its single consumer.
type Transcoder struct {
	mu sync.Mutex

	inputCtx    *astiav.FormatContext
	decoderCtx  *astiav.CodecContext
	resampleCtx *astiav.SoftwareResampleContext
	fifo        *astiav.AudioFifo

	packet   *astiav.Packet
	frame    *astiav.Frame
	outFrame *astiav.Frame

	streamIndex int

	// volume in basis points: 10000 = 100%
	volume atomic.Int64
	chain  *eqChain

	eof    bool
	closed bool
}

var _ PCMStream = (*Transcoder)(nil)

// OpenTranscoder opens url and prepares the decode pipeline. The caller owns
// the returned stream and must Close it.
func OpenTranscoder(url string, volume float64, profile domain.EQProfile) (*Transcoder, error) {
	astiavLogOnce.Do(func() {
		astiav.SetLogLevel(astiav.LogLevelFatal)
	})

	t := &Transcoder{
		packet:   astiav.AllocPacket(),
		frame:    astiav.AllocFrame(),
		outFrame: astiav.AllocFrame(),
		chain:    newEQChain(profile, pcmSampleRate, pcmChannels),
	}
	t.SetVolume(volume)

	if err := t.open(url); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Transcoder) open(url string) error {
	t.inputCtx = astiav.AllocFormatContext()
	if t.inputCtx == nil {
		return errors.New("failed to allocate format context")
	}

	var opts *astiav.Dictionary
	if strings.HasPrefix(url, "http") {
		opts = astiav.NewDictionary()
		defer opts.Free()
		opts.Set("reconnect", "1", 0)
		opts.Set("reconnect_streamed", "1", 0)
		opts.Set("reconnect_delay_max", "30", 0)
		opts.Set("timeout", "30000000", 0)
		opts.Set("probesize", "10000000", 0)
		opts.Set("analyzeduration", "10000000", 0)
	}

	if err := t.inputCtx.OpenInput(url, nil, opts); err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	if err := t.inputCtx.FindStreamInfo(nil); err != nil {
		return fmt.Errorf("failed to probe streams: %w", err)
	}

	t.streamIndex = -1
	for _, s := range t.inputCtx.Streams() {
		if s.CodecParameters().MediaType() == astiav.MediaTypeAudio {
			t.streamIndex = s.Index()
			break
		}
	}
	if t.streamIndex == -1 {
		return errors.New("no audio stream found")
	}

	params := t.inputCtx.Streams()[t.streamIndex].CodecParameters()
	decoder := astiav.FindDecoder(params.CodecID())
	if decoder == nil {
		return errors.New("no decoder for audio stream")
	}
	t.decoderCtx = astiav.AllocCodecContext(decoder)
	if err := params.ToCodecContext(t.decoderCtx); err != nil {
		return fmt.Errorf("failed to configure decoder: %w", err)
	}
	if err := t.decoderCtx.Open(decoder, nil); err != nil {
		return fmt.Errorf("failed to open decoder: %w", err)
	}

	t.resampleCtx = astiav.AllocSoftwareResampleContext()
	if t.resampleCtx == nil {
		return errors.New("failed to allocate resampler")
	}

	t.fifo = astiav.AllocAudioFifo(astiav.SampleFormatS16, pcmChannels, pcmFrameSamples*2)
	if t.fifo == nil {
		return errors.New("failed to allocate audio fifo")
	}
	return nil
}

// SetVolume sets the output gain; 1.0 is unity.
func (t *Transcoder) SetVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	t.volume.Store(int64(volume * 10000))
}

// ReadPCM returns the next interleaved stereo frame. The last frame is
// zero-padded to full size; after it, ReadPCM returns io.EOF.
func (t *Transcoder) ReadPCM() ([]int16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, io.EOF
	}

	if err := t.fillFifo(); err != nil {
		return nil, err
	}
	if t.fifo.Size() == 0 {
		return nil, io.EOF
	}

	n := pcmFrameSamples
	if t.fifo.Size() < n {
		n = t.fifo.Size()
	}

	t.outFrame.Unref()
	t.outFrame.SetNbSamples(n)
	t.outFrame.SetChannelLayout(astiav.ChannelLayoutStereo)
	t.outFrame.SetSampleFormat(astiav.SampleFormatS16)
	t.outFrame.SetSampleRate(pcmSampleRate)
	if err := t.outFrame.AllocBuffer(0); err != nil {
		return nil, fmt.Errorf("failed to allocate output frame: %w", err)
	}
	if _, err := t.fifo.Read(t.outFrame); err != nil {
		return nil, fmt.Errorf("failed to read fifo: %w", err)
	}

	data, err := t.outFrame.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("failed to access frame data: %w", err)
	}

	pcm := make([]int16, pcmFrameSamples*pcmChannels)
	limit := n * pcmChannels * 2
	if limit > len(data) {
		limit = len(data)
	}
	for i := 0; i+1 < limit; i += 2 {
		pcm[i/2] = int16(data[i]) | int16(data[i+1])<<8
	}

	t.chain.Process(pcm)
	t.applyVolume(pcm)
	return pcm, nil
}

// fillFifo decodes packets until a full frame is buffered or input runs out.
func (t *Transcoder) fillFifo() error {
	for t.fifo.Size() < pcmFrameSamples && !t.eof {
		t.packet.Unref()
		if err := t.inputCtx.ReadFrame(t.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				t.eof = true
				return t.flushDecoder()
			}
			return fmt.Errorf("failed to read packet: %w", err)
		}

		if t.packet.StreamIndex() != t.streamIndex {
			continue
		}
		if err := t.decoderCtx.SendPacket(t.packet); err != nil {
			return fmt.Errorf("failed to send packet: %w", err)
		}
		if err := t.drainDecodedFrames(); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transcoder) flushDecoder() error {
	_ = t.decoderCtx.SendPacket(nil)
	return t.drainDecodedFrames()
}

func (t *Transcoder) drainDecodedFrames() error {
	for {
		if err := t.decoderCtx.ReceiveFrame(t.frame); err != nil {
			return nil
		}
		err := t.resampleToFifo()
		t.frame.Unref()
		if err != nil {
			return err
		}
	}
}

func (t *Transcoder) resampleToFifo() error {
	t.outFrame.Unref()
	t.outFrame.SetChannelLayout(astiav.ChannelLayoutStereo)
	t.outFrame.SetSampleFormat(astiav.SampleFormatS16)
	t.outFrame.SetSampleRate(pcmSampleRate)

	nb := int(astiav.RescaleQ(
		int64(t.frame.NbSamples()),
		astiav.NewRational(1, t.frame.SampleRate()),
		astiav.NewRational(1, pcmSampleRate),
	))
	if nb <= 0 {
		return nil
	}

	t.outFrame.SetNbSamples(nb)
	if err := t.outFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("failed to allocate resample frame: %w", err)
	}
	if err := t.resampleCtx.ConvertFrame(t.frame, t.outFrame); err != nil {
		return fmt.Errorf("failed to resample: %w", err)
	}
	if _, err := t.fifo.Write(t.outFrame); err != nil {
		return fmt.Errorf("failed to buffer samples: %w", err)
	}
	return nil
}

func (t *Transcoder) applyVolume(pcm []int16) {
	vol := t.volume.Load()
	if vol == 10000 {
		return
	}
	for i, s := range pcm {
		scaled := int64(s) * vol / 10000
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		pcm[i] = int16(scaled)
	}
}

// Close frees all FFmpeg resources. Safe to call more than once.
func (t *Transcoder) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.fifo != nil {
		t.fifo.Free()
		t.fifo = nil
	}
	if t.resampleCtx != nil {
		t.resampleCtx.Free()
		t.resampleCtx = nil
	}
	if t.decoderCtx != nil {
		t.decoderCtx.Free()
		t.decoderCtx = nil
	}
	if t.inputCtx != nil {
		t.inputCtx.CloseInput()
		t.inputCtx = nil
	}
	if t.packet != nil {
		t.packet.Free()
		t.packet = nil
	}
	if t.frame != nil {
		t.frame.Free()
		t.frame = nil
	}
	if t.outFrame != nil {
		t.outFrame.Free()
		t.outFrame = nil
	}
	return nil
}
