package ld2410

import (
	"bytes"
	"testing"
	"time"

	"sensorcode-go/drivers/frame"
)

// reportFrame builds a normal-mode data frame.
func reportFrame(state TargetState, mdist uint16, men uint8, sdist uint16, sen uint8) []byte {
	data := []byte{
		byte(Normal), 0xAA, byte(state),
		byte(mdist), byte(mdist >> 8), men,
		byte(sdist), byte(sdist >> 8), sen,
		0x46, 0x00, // detection distance
		0x55, 0x00,
	}
	raw := append([]byte{0xF4, 0xF3, 0xF2, 0xF1, byte(len(data)), byte(len(data) >> 8)}, data...)
	return append(raw, 0xF8, 0xF7, 0xF6, 0xF5)
}

// engineeringFrame appends per-gate energies and the light value.
func engineeringFrame(moving, static [Gates]uint8, photo uint8) []byte {
	data := []byte{
		byte(Engineering), 0xAA, byte(BothTargets),
		0x46, 0x00, 0x28, // moving: 70 cm, energy 40
		0x52, 0x00, 0x37, // static: 82 cm, energy 55
		0x46, 0x00, // detection distance
		0x08, 0x08, // max moving/static gates
	}
	data = append(data, moving[:]...)
	data = append(data, static[:]...)
	data = append(data, photo, 0x55, 0x00)
	raw := append([]byte{0xF4, 0xF3, 0xF2, 0xF1, byte(len(data)), byte(len(data) >> 8)}, data...)
	return append(raw, 0xF8, 0xF7, 0xF6, 0xF5)
}

// ackFrame builds a command reply with the given status and extra words.
func ackFrame(cmd uint16, status uint16, extra ...byte) []byte {
	data := []byte{byte(cmd), byte(cmd >> 8), byte(status), byte(status >> 8)}
	data[1] |= 0x01 // ack flag
	data = append(data, extra...)
	raw := append([]byte{0xFD, 0xFC, 0xFB, 0xFA, byte(len(data)), byte(len(data) >> 8)}, data...)
	return append(raw, 0x04, 0x03, 0x02, 0x01)
}

func TestDecodeNormalReport(t *testing.T) {
	raw := reportFrame(MovingTarget, 123, 87, 0, 0)
	s := frame.NewSync(ReportLayout())
	if n := s.Feed(raw); n != 1 {
		t.Fatalf("frames = %d, want 1", n)
	}
	f, _ := s.Next()
	r, err := DecodeReport(f)
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if r.Mode != Normal || r.State != MovingTarget {
		t.Errorf("mode/state = %v/%v", r.Mode, r.State)
	}
	if r.MovingDistanceCM != 123 || r.MovingEnergy != 87 {
		t.Errorf("moving = %d cm @ %d", r.MovingDistanceCM, r.MovingEnergy)
	}
	if !r.Present() || r.DistanceCM() != 123 {
		t.Errorf("present/distance = %v/%d", r.Present(), r.DistanceCM())
	}
	if r.Eng != nil {
		t.Error("normal frame grew engineering data")
	}
}

func TestDecodeNoTarget(t *testing.T) {
	r, err := DecodeReport(frame.Frame{Raw: reportFrame(NoTarget, 0, 0, 0, 0)})
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if r.Present() || r.DistanceCM() != 0 {
		t.Errorf("present/distance = %v/%d, want false/0", r.Present(), r.DistanceCM())
	}
}

func TestDecodeEngineeringReport(t *testing.T) {
	var mg, sg [Gates]uint8
	for i := range mg {
		mg[i] = uint8(10 * i)
		sg[i] = uint8(100 - 10*i)
	}
	r, err := DecodeReport(frame.Frame{Raw: engineeringFrame(mg, sg, 0x7F)})
	if err != nil {
		t.Fatalf("DecodeReport: %v", err)
	}
	if r.Mode != Engineering || r.Eng == nil {
		t.Fatalf("engineering data missing: %+v", r)
	}
	if r.Eng.MovingGate != mg || r.Eng.StaticGate != sg {
		t.Errorf("gate energies mismatch: %v / %v", r.Eng.MovingGate, r.Eng.StaticGate)
	}
	if r.Eng.Photosensitive != 0x7F {
		t.Errorf("photosensitive = %d", r.Eng.Photosensitive)
	}
	if r.DistanceCM() != 70 {
		t.Errorf("distance = %d, want moving 70", r.DistanceCM())
	}
}

func TestDecodeRejectsBadFrames(t *testing.T) {
	bad := reportFrame(MovingTarget, 50, 10, 0, 0)
	bad[7] = 0x00 // marker
	if _, err := DecodeReport(frame.Frame{Raw: bad}); err != ErrBadReport {
		t.Errorf("bad marker: err = %v", err)
	}
	errState := reportFrame(MovingTarget, 50, 10, 0, 0)
	errState[8] = 0x04 // firmware error code
	if _, err := DecodeReport(frame.Frame{Raw: errState}); err != ErrBadReport {
		t.Errorf("error state: err = %v", err)
	}
}

func TestCommandFrameBytes(t *testing.T) {
	got := Command(cmdEnableConfig, 0x01, 0x00)
	want := []byte{
		0xFD, 0xFC, 0xFB, 0xFA,
		0x04, 0x00,
		0xFF, 0x00,
		0x01, 0x00,
		0x04, 0x03, 0x02, 0x01,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Command = % x, want % x", got, want)
	}
}

func TestVerifyAck(t *testing.T) {
	if _, err := VerifyAck(frame.Frame{Raw: ackFrame(cmdEndConfig, 0)}, cmdEndConfig); err != nil {
		t.Errorf("good ack rejected: %v", err)
	}
	if _, err := VerifyAck(frame.Frame{Raw: ackFrame(cmdEndConfig, 0)}, cmdReadVersion); err != ErrNoAck {
		t.Errorf("wrong command word: err = %v", err)
	}
	if _, err := VerifyAck(frame.Frame{Raw: ackFrame(cmdEndConfig, 1)}, cmdEndConfig); err != ErrAck {
		t.Errorf("failed status: err = %v", err)
	}
}

func TestVersionString(t *testing.T) {
	v := Version{Type: 0x0000, Major: 0x0102, Minor: 0x22062416}
	if got := v.String(); got != "V1.02.22062416" {
		t.Fatalf("String = %q", got)
	}
}

// duplexPort answers writes with scripted reply chunks.
type duplexPort struct {
	written [][]byte
	replies [][]byte
}

func (p *duplexPort) Write(b []byte) (int, error) {
	p.written = append(p.written, append([]byte(nil), b...))
	return len(b), nil
}

func (p *duplexPort) ReadAvailable(b []byte, timeout time.Duration) (int, error) {
	if len(p.replies) == 0 {
		time.Sleep(timeout)
		return 0, nil
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	return copy(b, r), nil
}

func TestConfigSessionAndVersion(t *testing.T) {
	port := &duplexPort{replies: [][]byte{
		ackFrame(cmdEnableConfig, 0, 0x01, 0x00, 0x40, 0x00),
		ackFrame(cmdReadVersion, 0,
			0x00, 0x01, // firmware type
			0x02, 0x01, // major 1.02
			0x16, 0x24, 0x06, 0x22, // minor
		),
		ackFrame(cmdEndConfig, 0),
	}}
	d := New(port)
	d.Configure(Config{ReadTimeout: 100 * time.Millisecond})

	if err := d.EnterConfigMode(); err != nil {
		t.Fatalf("EnterConfigMode: %v", err)
	}
	v, err := d.ReadVersion()
	if err != nil {
		t.Fatalf("ReadVersion: %v", err)
	}
	if v.String() != "V1.02.22062416" {
		t.Fatalf("version = %q", v.String())
	}
	if err := d.ExitConfigMode(); err != nil {
		t.Fatalf("ExitConfigMode: %v", err)
	}
	if len(port.written) != 3 {
		t.Fatalf("writes = %d, want 3", len(port.written))
	}
}

func TestConfigGating(t *testing.T) {
	d := New(&duplexPort{})
	if _, err := d.ReadVersion(); err != ErrNotConfig {
		t.Errorf("ReadVersion outside config: err = %v", err)
	}
	if err := d.SetEngineeringMode(true); err != ErrNotConfig {
		t.Errorf("SetEngineeringMode outside config: err = %v", err)
	}
	if err := d.ExitConfigMode(); err != ErrNotConfig {
		t.Errorf("ExitConfigMode outside config: err = %v", err)
	}
}

// missingPort swallows the first command and answers only the retry.
type missingPort struct {
	duplexPort
}

func (p *missingPort) ReadAvailable(b []byte, timeout time.Duration) (int, error) {
	if len(p.written) < 2 {
		time.Sleep(timeout)
		return 0, nil
	}
	return p.duplexPort.ReadAvailable(b, timeout)
}

func TestCommandRetries(t *testing.T) {
	port := &missingPort{}
	port.replies = [][]byte{ackFrame(cmdEnableConfig, 0)}
	d := New(port)
	d.Configure(Config{ReadTimeout: 20 * time.Millisecond, Retries: 3})
	if err := d.EnterConfigMode(); err != nil {
		t.Fatalf("EnterConfigMode with one lost ack: %v", err)
	}
	if len(port.written) != 2 {
		t.Fatalf("writes = %d, want 2", len(port.written))
	}
}

func TestCommandRetriesExhausted(t *testing.T) {
	d := New(&duplexPort{})
	d.Configure(Config{ReadTimeout: 10 * time.Millisecond, Retries: 2})
	if err := d.EnterConfigMode(); err != frame.ErrTimeout {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestReadReportOverPort(t *testing.T) {
	raw := reportFrame(BothTargets, 150, 60, 148, 45)
	port := &duplexPort{replies: [][]byte{raw[:7], raw[7:]}}
	d := New(port)
	d.Configure(Config{ReadTimeout: 100 * time.Millisecond})
	r, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if r.State != BothTargets || r.DistanceCM() != 150 || r.StaticEnergy != 45 {
		t.Fatalf("report = %+v", r)
	}
}

func TestGateCommandValueWords(t *testing.T) {
	port := &duplexPort{replies: [][]byte{
		ackFrame(cmdEnableConfig, 0),
		ackFrame(cmdMaxGates, 0),
	}}
	d := New(port)
	d.Configure(Config{ReadTimeout: 100 * time.Millisecond})
	if err := d.EnterConfigMode(); err != nil {
		t.Fatalf("EnterConfigMode: %v", err)
	}
	if err := d.SetMaxGates(8, 6, 5); err != nil {
		t.Fatalf("SetMaxGates: %v", err)
	}
	want := Command(cmdMaxGates,
		0x00, 0x00, 0x08, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x06, 0x00, 0x00, 0x00,
		0x02, 0x00, 0x05, 0x00, 0x00, 0x00,
	)
	if !bytes.Equal(port.written[1], want) {
		t.Fatalf("frame = % x\nwant    % x", port.written[1], want)
	}
}
