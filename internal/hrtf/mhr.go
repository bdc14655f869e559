package hrtf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	markerMHR00 = "MinPHR00"
	markerMHR01 = "MinPHR01"
)

// LoadFile reads an MHR dataset from disk.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := Load(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return s, nil
}

// Load reads an MHR dataset in the MinPHR00 or MinPHR01 layout. Both store
// left-ear responses only; right-ear responses are mirrored.
func Load(r io.Reader) (*Store, error) {
	var marker [8]byte
	if _, err := io.ReadFull(r, marker[:]); err != nil {
		return nil, fmt.Errorf("%w: reading marker: %w", ErrInvalidData, err)
	}
	switch string(marker[:]) {
	case markerMHR00:
		return loadMHR00(r)
	case markerMHR01:
		return loadMHR01(r)
	}
	return nil, fmt.Errorf("%w: unsupported marker %q", ErrInvalidData, marker[:])
}

func readLE(r io.Reader, v any) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: premature end of file", ErrInvalidData)
		}
		return err
	}
	return nil
}

func loadMHR00(r io.Reader) (*Store, error) {
	var hdr struct {
		Rate    uint32
		IRCount uint16
		IRSize  uint16
		EvCount uint8
	}
	if err := readLE(r, &hdr); err != nil {
		return nil, err
	}
	if err := checkHeader(int(hdr.IRSize), int(hdr.EvCount)); err != nil {
		return nil, err
	}
	offsets := make([]uint16, hdr.EvCount)
	if err := readLE(r, offsets); err != nil {
		return nil, err
	}

	elevs := make([]Elevation, hdr.EvCount)
	for i := range elevs {
		elevs[i].IROffset = int(offsets[i])
		if i > 0 && offsets[i] <= offsets[i-1] {
			return nil, fmt.Errorf("%w: elevation offset %d not increasing", ErrInvalidData, i)
		}
	}
	if int(hdr.IRCount) <= elevs[len(elevs)-1].IROffset {
		return nil, fmt.Errorf("%w: response count %d", ErrInvalidData, hdr.IRCount)
	}
	for i := range len(elevs) - 1 {
		elevs[i].AzCount = elevs[i+1].IROffset - elevs[i].IROffset
	}
	elevs[len(elevs)-1].AzCount = int(hdr.IRCount) - elevs[len(elevs)-1].IROffset

	return readResponses(r, hdr.Rate, int(hdr.IRSize), elevs)
}

func loadMHR01(r io.Reader) (*Store, error) {
	var hdr struct {
		Rate    uint32
		IRSize  uint8
		EvCount uint8
	}
	if err := readLE(r, &hdr); err != nil {
		return nil, err
	}
	if err := checkHeader(int(hdr.IRSize), int(hdr.EvCount)); err != nil {
		return nil, err
	}
	counts := make([]uint8, hdr.EvCount)
	if err := readLE(r, counts); err != nil {
		return nil, err
	}
	elevs := make([]Elevation, hdr.EvCount)
	offset := 0
	for i, c := range counts {
		elevs[i] = Elevation{AzCount: int(c), IROffset: offset}
		offset += int(c)
	}
	return readResponses(r, hdr.Rate, int(hdr.IRSize), elevs)
}

func checkHeader(irSize, evCount int) error {
	if irSize < MinIRLength || irSize > IRLength {
		return fmt.Errorf("%w: response length %d (%d to %d)", ErrInvalidData, irSize, MinIRLength, IRLength)
	}
	if evCount < minEvCount || evCount > maxEvCount {
		return fmt.Errorf("%w: elevation count %d (%d to %d)", ErrInvalidData, evCount, minEvCount, maxEvCount)
	}
	return nil
}

func readResponses(r io.Reader, rate uint32, irSize int, elevs []Elevation) (*Store, error) {
	for i, e := range elevs {
		if e.AzCount < minAzCount || e.AzCount > maxAzCount {
			return nil, fmt.Errorf("%w: azimuth count %d at elevation %d", ErrInvalidData, e.AzCount, i)
		}
	}
	last := elevs[len(elevs)-1]
	count := last.IROffset + last.AzCount

	raw := make([]int16, count*irSize)
	if err := readLE(r, raw); err != nil {
		return nil, err
	}
	rawDelays := make([]uint8, count)
	if err := readLE(r, rawDelays); err != nil {
		return nil, err
	}

	coeffs := make([]IR, count)
	delays := make([][2]uint8, count)
	for i := range coeffs {
		for k := range irSize {
			coeffs[i][k][0] = float32(raw[i*irSize+k]) / 32768
		}
		if rawDelays[i] > MaxDelay {
			return nil, fmt.Errorf("%w: delay %d at response %d (max %d)", ErrInvalidData, rawDelays[i], i, MaxDelay)
		}
		delays[i][0] = rawDelays[i] << DelayFracBits
	}
	mirrorLeft(elevs, coeffs, delays)

	fields := []Field{{Distance: 0, EvCount: len(elevs)}}
	return newStore("", rate, irSize, fields, elevs, coeffs, delays)
}

// WriteMHR01 writes the left-ear responses of a single-field store in the
// MinPHR01 layout. Delays are rounded to whole samples.
func (s *Store) WriteMHR01(w io.Writer) error {
	if len(s.Fields) != 1 {
		return fmt.Errorf("%w: MinPHR01 holds one field, have %d", ErrInvalidData, len(s.Fields))
	}
	bw := bufio.NewWriter(w)
	bw.WriteString(markerMHR01)
	hdr := struct {
		Rate    uint32
		IRSize  uint8
		EvCount uint8
	}{s.SampleRate, uint8(s.IRSize), uint8(len(s.Elevs))}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return err
	}
	for _, e := range s.Elevs {
		bw.WriteByte(uint8(e.AzCount))
	}
	samples := make([]int16, s.IRSize)
	for i := range s.Coeffs {
		for k := range samples {
			v := s.Coeffs[i][k][0] * 32768
			samples[k] = int16(max(-32768, min(32767, v)))
		}
		if err := binary.Write(bw, binary.LittleEndian, samples); err != nil {
			return err
		}
	}
	for _, d := range s.Delays {
		bw.WriteByte((d[0] + DelayFracHalf) >> DelayFracBits)
	}
	return bw.Flush()
}
