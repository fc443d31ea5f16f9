// Package serialport exposes the host's serial ports as periph.io UART ports.
//
// Importing the package registers a driver; once host.Init() (or
// driverreg.Init()) has run, every tty found by go.bug.st/serial can be
// opened with uartreg.Open, by full name ("/dev/ttyUSB0", "COM9") or by base
// name ("ttyUSB0").
package serialport

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"go.bug.st/serial"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/driver/driverreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/uart"
	"periph.io/x/conn/v3/uart/uartreg"
)

// Overridden in tests.
var (
	openPort  = serial.Open
	listPorts = serial.GetPortsList
)

// Port is a serial port that has not been configured yet.
type Port struct {
	name string

	mu       sync.Mutex
	maxSpeed physic.Frequency
	port     serial.Port
	closed   bool
}

// New returns a Port for the named device. The device is only opened by
// Connect.
func New(name string) *Port {
	return &Port{name: name}
}

// String returns the device name.
func (p *Port) String() string {
	return p.name
}

// LimitSpeed caps the speed that Connect will select.
func (p *Port) LimitSpeed(f physic.Frequency) error {
	if f <= 0 {
		return errors.New("serialport: invalid speed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxSpeed = f
	return nil
}

// Connect opens the device with the requested settings. It may be called only
// once.
//
// Only uart.NoFlow is supported.
func (p *Port) Connect(f physic.Frequency, stopBit uart.Stop, parity uart.Parity, flow uart.Flow, bits int) (conn.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("serialport: port closed")
	}
	if p.port != nil {
		return nil, errors.New("serialport: Connect can only be called once")
	}
	if p.maxSpeed != 0 && f > p.maxSpeed {
		f = p.maxSpeed
	}
	baud := int(f / physic.Hertz)
	if baud <= 0 {
		return nil, fmt.Errorf("serialport: invalid speed %s", f)
	}
	if flow != uart.NoFlow {
		return nil, fmt.Errorf("serialport: flow control %s is not supported", flow)
	}
	mode := &serial.Mode{BaudRate: baud, DataBits: bits}
	var err error
	if mode.Parity, err = toParity(parity); err != nil {
		return nil, err
	}
	if mode.StopBits, err = toStopBits(stopBit); err != nil {
		return nil, err
	}
	port, err := openPort(p.name, mode)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", p.name, err)
	}
	p.port = port
	return &portConn{name: p.name, port: port}, nil
}

// Close releases the device. It is safe to call more than once.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

func toParity(p uart.Parity) (serial.Parity, error) {
	switch p {
	case uart.NoParity:
		return serial.NoParity, nil
	case uart.Odd:
		return serial.OddParity, nil
	case uart.Even:
		return serial.EvenParity, nil
	case uart.Mark:
		return serial.MarkParity, nil
	case uart.Space:
		return serial.SpaceParity, nil
	}
	return 0, fmt.Errorf("serialport: unknown parity %q", byte(p))
}

func toStopBits(s uart.Stop) (serial.StopBits, error) {
	switch s {
	case uart.One:
		return serial.OneStopBit, nil
	case uart.OneHalf:
		return serial.OnePointFiveStopBits, nil
	case uart.Two:
		return serial.TwoStopBits, nil
	}
	return 0, fmt.Errorf("serialport: unknown stop bits %d", s)
}

// portConn is the conn.Conn returned by Connect.
type portConn struct {
	name string
	port serial.Port
}

func (c *portConn) String() string {
	return c.name
}

// Tx writes w in a single write call, then reads exactly len(r) bytes when r
// is not empty. A short write is not reported.
func (c *portConn) Tx(w, r []byte) error {
	if len(w) != 0 {
		if _, err := c.port.Write(w); err != nil {
			return fmt.Errorf("serialport: write %s: %w", c.name, err)
		}
	}
	if len(r) != 0 {
		if _, err := io.ReadFull(c.port, r); err != nil {
			return fmt.Errorf("serialport: read %s: %w", c.name, err)
		}
	}
	return nil
}

func (c *portConn) Duplex() conn.Duplex {
	return conn.Full
}

// Write implements io.Writer.
func (c *portConn) Write(b []byte) (int, error) {
	return c.port.Write(b)
}

// Read implements io.Reader.
func (c *portConn) Read(b []byte) (int, error) {
	return c.port.Read(b)
}

// driver registers the host's serial ports in uartreg.
type driver struct{}

func (d *driver) String() string {
	return "serialport"
}

func (d *driver) Prerequisites() []string {
	return nil
}

func (d *driver) After() []string {
	return nil
}

func (d *driver) Init() (bool, error) {
	names, err := listPorts()
	if err != nil {
		return true, fmt.Errorf("serialport: list ports: %w", err)
	}
	if len(names) == 0 {
		return false, errors.New("serialport: no serial port found")
	}
	return true, register(names)
}

// register adds every named device to uartreg. The base name is registered
// as an alias when it differs from the full name.
func register(names []string) error {
	for _, name := range names {
		name := name
		var aliases []string
		if base := filepath.Base(name); base != name && base != "." {
			aliases = append(aliases, base)
		}
		opener := func() (uart.PortCloser, error) {
			return New(name), nil
		}
		if err := uartreg.Register(name, aliases, -1, opener); err != nil {
			return fmt.Errorf("serialport: %w", err)
		}
	}
	return nil
}

func init() {
	driverreg.MustRegister(&drv)
}

var drv driver

var _ uart.PortCloser = &Port{}
var _ conn.Conn = &portConn{}
