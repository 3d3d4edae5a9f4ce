// Package tagstest builds minimal tagged audio payloads for tests.
package tagstest

import (
	"encoding/binary"
	"math/rand/v2"
)

// ID3v23 returns an ID3v2.3 tag carrying TIT2/TPE1/TALB text frames and no
// audio frames. Empty values are left out.
func ID3v23(title string, artist string, album string) []byte {
	return id3v23Tag(textFrames(title, artist, album))
}

// ID3v23WithPicture is ID3v23 plus an APIC front-cover frame holding
// picture.
func ID3v23WithPicture(title string, artist string, album string, mimeType string, picture []byte) []byte {
	body := make([]byte, 0, len(mimeType)+len(picture)+4)
	body = append(body, 0x00)
	body = append(body, mimeType...)
	body = append(body, 0x00, 0x03, 0x00)
	body = append(body, picture...)

	frames := textFrames(title, artist, album)
	frames = append(frames, id3Frame("APIC", body)...)
	return id3v23Tag(frames)
}

// Corrupt returns bytes that no tag reader or stream decoder recognises.
func Corrupt() []byte {
	return []byte("this is definitely not an audio file, just some plain text bytes")
}

// Garbage returns n pseudo-random bytes for seed. The output contains
// frame-sync lookalikes such as 0xFF 0xFB.
func Garbage(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	data := make([]byte, n)
	for index := range data {
		data[index] = byte(rng.Uint32())
	}
	return data
}

// TruncatedID3 returns an ID3v2.3 header that claims twice as many tag bytes
// as follow it, followed by n random bytes.
func TruncatedID3(seed uint64, n int) []byte {
	return append(id3v23Header(2*n), Garbage(seed, n)...)
}

func textFrames(title string, artist string, album string) []byte {
	frames := make([]byte, 0, 128)
	for _, frame := range []struct {
		id    string
		value string
	}{
		{id: "TIT2", value: title},
		{id: "TPE1", value: artist},
		{id: "TALB", value: album},
	} {
		if frame.value == "" {
			continue
		}
		frames = append(frames, id3Frame(frame.id, append([]byte{0x00}, frame.value...))...)
	}
	return frames
}

func id3Frame(id string, body []byte) []byte {
	header := make([]byte, 10)
	copy(header, id)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(body)))
	return append(header, body...)
}

func id3v23Tag(frames []byte) []byte {
	return append(id3v23Header(len(frames)), frames...)
}

func id3v23Header(size int) []byte {
	return []byte{
		'I', 'D', '3', 0x03, 0x00, 0x00,
		byte(size>>21) & 0x7f,
		byte(size>>14) & 0x7f,
		byte(size>>7) & 0x7f,
		byte(size) & 0x7f,
	}
}
