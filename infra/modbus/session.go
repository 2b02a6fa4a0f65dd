// Package modbus talks to a battery inverter over Modbus TCP. A Session
// implements control.Device.
package modbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/kilianp07/openbat/core/control"
	"github.com/kilianp07/openbat/infra/logger"
)

// Defaults of the inverter family the register map was written for.
const (
	DefaultPort             = "1502"
	DefaultUnitID           = byte(71)
	DefaultTimeout          = 5 * time.Second
	DefaultSOCRegister      = 210
	DefaultSetpointRegister = 1024
)

// Config holds the connection settings and the register map.
type Config struct {
	Address string        `json:"address"`
	UnitID  byte          `json:"unit_id"`
	Timeout time.Duration `json:"timeout"`
	Debug   bool          `json:"debug"`

	SOC Register `json:"soc"`
	// SetpointRegister receives signed watts as int16.
	SetpointRegister uint16 `json:"setpoint_register"`
	// Optional read back registers. Nil skips the read.
	ACPower      *Register `json:"ac_power"`
	BatteryPower *Register `json:"battery_power"`
}

// SetDefaults fills unset fields. The state of charge register reports
// percent as a float over two words, least significant word first.
func (c *Config) SetDefaults() {
	if c.Address != "" {
		if _, _, err := net.SplitHostPort(c.Address); err != nil {
			c.Address = net.JoinHostPort(c.Address, DefaultPort)
		}
	}
	if c.UnitID == 0 {
		c.UnitID = DefaultUnitID
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SOC == (Register{}) {
		c.SOC = Register{Address: DefaultSOCRegister, Type: Float32, Words: LowFirst, Scale: 0.01}
	}
	if c.SetpointRegister == 0 {
		c.SetpointRegister = DefaultSetpointRegister
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("modbus: address is required")
	}
	errs := []error{c.SOC.validate("soc")}
	if c.ACPower != nil {
		errs = append(errs, c.ACPower.validate("ac_power"))
	}
	if c.BatteryPower != nil {
		errs = append(errs, c.BatteryPower.validate("battery_power"))
	}
	return errors.Join(errs...)
}

// registers is the part of modbus.Client used by a session.
type registers interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Session keeps one TCP connection open between Open and Close. Calls are
// serialised.
type Session struct {
	cfg     Config
	handler *modbus.TCPClientHandler
	client  registers
	log     logger.Logger

	mu sync.Mutex
}

var _ control.Device = (*Session)(nil)

// Open connects to the device described by cfg.
func Open(cfg Config) (*Session, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := modbus.NewTCPClientHandler(cfg.Address)
	h.Timeout = cfg.Timeout
	h.SlaveId = cfg.UnitID
	if cfg.Debug {
		h.Logger = log.New(os.Stdout, "modbus: ", log.LstdFlags)
	}
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus: connect %s: %w", cfg.Address, err)
	}
	s := newSession(cfg, modbus.NewClient(h))
	s.handler = h
	s.log.Infof("connected to %s unit %d", cfg.Address, cfg.UnitID)
	return s, nil
}

func newSession(cfg Config, client registers) *Session {
	return &Session{cfg: cfg, client: client, log: logger.New("modbus")}
}

// WriteSetpoint writes watts to the setpoint register.
func (s *Session) WriteSetpoint(ctx context.Context, watts int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.client.WriteSingleRegister(s.cfg.SetpointRegister, uint16(watts)); err != nil {
		return fmt.Errorf("modbus: write setpoint %d: %w", watts, err)
	}
	return nil
}

// Read returns the state of charge and the configured power registers.
func (s *Session) Read(ctx context.Context) (control.Readback, error) {
	var rb control.Readback
	if err := ctx.Err(); err != nil {
		return rb, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	soc, err := s.read(s.cfg.SOC)
	if err != nil {
		return rb, fmt.Errorf("modbus: read soc: %w", err)
	}
	rb.SOC = soc
	if r := s.cfg.ACPower; r != nil {
		if rb.ACPowerW, err = s.read(*r); err != nil {
			return rb, fmt.Errorf("modbus: read ac power: %w", err)
		}
	}
	if r := s.cfg.BatteryPower; r != nil {
		if rb.BatteryPowerW, err = s.read(*r); err != nil {
			return rb, fmt.Errorf("modbus: read battery power: %w", err)
		}
	}
	return rb, nil
}

func (s *Session) read(r Register) (float64, error) {
	b, err := s.client.ReadHoldingRegisters(r.Address, r.Quantity())
	if err != nil {
		return 0, err
	}
	return r.Decode(b)
}

// Close releases the connection.
func (s *Session) Close() error {
	if s.handler == nil {
		return nil
	}
	s.log.Infof("closing connection to %s", s.cfg.Address)
	return s.handler.Close()
}
