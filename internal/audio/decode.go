package audio

import (
	"bytes"
	"fmt"
	"io"

	gaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/pion/opus"
)

// container identifies the compressed format of an attachment payload.
type container int

const (
	containerUnknown container = iota
	containerOggOpus
	containerOggVorbis
	containerWAV
	containerMP3
	containerMP4
)

func (c container) String() string {
	switch c {
	case containerOggOpus:
		return "ogg/opus"
	case containerOggVorbis:
		return "ogg/vorbis"
	case containerWAV:
		return "wav"
	case containerMP3:
		return "mp3"
	case containerMP4:
		return "mp4"
	default:
		return "unknown"
	}
}

// sniffContainer classifies a payload by its magic bytes. The codec inside
// an Ogg stream is identified by the header of the first packet.
func sniffContainer(data []byte) container {
	if len(data) < 12 {
		return containerUnknown
	}

	switch {
	case bytes.HasPrefix(data, []byte("OggS")):
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		if bytes.Contains(head, []byte("OpusHead")) {
			return containerOggOpus
		}
		if bytes.Contains(head, []byte("\x01vorbis")) {
			return containerOggVorbis
		}
		return containerUnknown
	case bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return containerWAV
	case bytes.Equal(data[4:8], []byte("ftyp")):
		return containerMP4
	case bytes.HasPrefix(data, []byte("ID3")):
		return containerMP3
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return containerMP3
	default:
		return containerUnknown
	}
}

// decode turns a compressed payload into interleaved float32 samples plus
// the source sample rate and channel count.
func decode(data []byte, c container) ([]float32, int, int, error) {
	switch c {
	case containerOggOpus:
		samples, rate, err := decodeOggOpus(data)
		return samples, rate, 1, err
	case containerOggVorbis:
		return decodeOggVorbis(data)
	case containerWAV:
		return decodeWAVInput(data)
	case containerMP3:
		return decodeMP3(data)
	case containerMP4:
		return nil, 0, 0, fmt.Errorf("mp4 containers are not supported: no pure-Go AAC decoder is available")
	default:
		return nil, 0, 0, fmt.Errorf("unrecognized audio container")
	}
}

func decodeOggVorbis(data []byte) ([]float32, int, int, error) {
	reader, err := oggvorbis.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open ogg/vorbis stream: %w", err)
	}

	var samples []float32
	buf := make([]float32, 16384)
	for {
		n, err := reader.Read(buf)
		samples = append(samples, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, 0, fmt.Errorf("failed to read ogg/vorbis data: %w", err)
		}
	}

	if len(samples) == 0 {
		return nil, 0, 0, fmt.Errorf("ogg/vorbis stream contains no samples")
	}
	return samples, reader.SampleRate(), reader.Channels(), nil
}

const (
	// opusFrameSize is 20 ms at the 48 kHz rate the decoder emits, the
	// frame length voice messages are encoded with.
	opusFrameSize = 960
	// maxOpusPacketSamples is the 120 ms packet ceiling from RFC 6716.
	maxOpusPacketSamples = 5760
)

func decodeOggOpus(data []byte) ([]float32, int, error) {
	packets, err := oggPackets(data)
	if err != nil {
		return nil, 0, err
	}
	// The first two packets are OpusHead and OpusTags, not audio.
	if len(packets) <= 2 {
		return nil, 0, fmt.Errorf("ogg/opus stream contains no audio packets")
	}

	decoder := opus.NewDecoder()
	pcmBuf := make([]byte, maxOpusPacketSamples*2)
	samples := make([]float32, 0, (len(packets)-2)*opusFrameSize)

	for _, packet := range packets[2:] {
		n := opusPacketSamples(packet)
		if n == 0 {
			continue
		}
		if _, _, err := decoder.Decode(packet, pcmBuf); err != nil {
			// A corrupt frame loses one packet of speech, not the message.
			continue
		}
		for i := 0; i < n; i++ {
			s := int16(pcmBuf[i*2]) | int16(pcmBuf[i*2+1])<<8
			samples = append(samples, float32(s)/32768.0)
		}
	}

	if len(samples) == 0 {
		return nil, 0, fmt.Errorf("no valid opus frames decoded")
	}
	return samples, 48000, nil
}

// opusPacketSamples derives a packet's 48 kHz sample count from its TOC
// byte (RFC 6716 section 3.1) so short frames do not pick up stale bytes
// from the reused decode buffer. Returns 0 for packets that are empty or
// exceed the 120 ms ceiling.
func opusPacketSamples(packet []byte) int {
	if len(packet) == 0 {
		return 0
	}
	toc := packet[0]
	config := toc >> 3

	var frame int
	switch {
	case config < 12: // SILK-only: 10, 20, 40, 60 ms
		frame = []int{480, 960, 1920, 2880}[config&0x3]
	case config < 16: // Hybrid: 10, 20 ms
		frame = []int{480, 960}[config&0x1]
	default: // CELT-only: 2.5, 5, 10, 20 ms
		frame = []int{120, 240, 480, 960}[config&0x3]
	}

	frames := 1
	switch toc & 0x3 {
	case 1, 2:
		frames = 2
	case 3:
		if len(packet) < 2 {
			return 0
		}
		frames = int(packet[1] & 0x3F)
	}

	n := frame * frames
	if n == 0 || n > maxOpusPacketSamples {
		return 0
	}
	return n
}

// oggPackets walks the Ogg pages in data and reassembles the logical
// packets from the segment lacing values (a 255 lacing value means the
// packet continues into the next segment).
func oggPackets(data []byte) ([][]byte, error) {
	var packets [][]byte
	var pending []byte
	r := bytes.NewReader(data)

	header := make([]byte, 27)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("failed to read ogg page header: %w", err)
		}
		if !bytes.Equal(header[:4], []byte("OggS")) {
			return nil, fmt.Errorf("invalid ogg page capture pattern")
		}

		numSegments := int(header[26])
		lacing := make([]byte, numSegments)
		if _, err := io.ReadFull(r, lacing); err != nil {
			return nil, fmt.Errorf("failed to read ogg segment table: %w", err)
		}

		for _, size := range lacing {
			segment := make([]byte, size)
			if _, err := io.ReadFull(r, segment); err != nil {
				return nil, fmt.Errorf("failed to read ogg segment: %w", err)
			}
			pending = append(pending, segment...)
			if size < 255 {
				packets = append(packets, pending)
				pending = nil
			}
		}
	}

	if len(pending) > 0 {
		packets = append(packets, pending)
	}
	return packets, nil
}

func decodeWAVInput(data []byte) ([]float32, int, int, error) {
	decoder := gowav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return nil, 0, 0, fmt.Errorf("invalid wav file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil && err != io.EOF {
		return nil, 0, 0, fmt.Errorf("failed to read wav pcm data: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, 0, 0, fmt.Errorf("wav file contains no samples")
	}

	bitDepth := decoder.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	return intBufferSamples(buf, bitDepth), buf.Format.SampleRate, buf.Format.NumChannels, nil
}

// intBufferSamples scales integer PCM samples into [-1, 1] floats.
func intBufferSamples(buf *gaudio.IntBuffer, bitDepth uint16) []float32 {
	scale := float32(1) / float32(int(1)<<(bitDepth-1))
	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) * scale
	}
	return samples
}

func decodeMP3(data []byte) ([]float32, int, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open mp3 stream: %w", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read mp3 data: %w", err)
	}
	if len(raw) < 4 {
		return nil, 0, 0, fmt.Errorf("mp3 stream contains no samples")
	}

	// go-mp3 always emits 16-bit little-endian stereo.
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples, decoder.SampleRate(), 2, nil
}
