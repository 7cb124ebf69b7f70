// Package modbus is a minimal Modbus TCP client used to probe sensors.
package modbus

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

type Client struct {
	address       string
	timeout       time.Duration
	mu            sync.Mutex
	conn          net.Conn
	transactionID uint16
}

func NewClient(address string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Client{address: address, timeout: timeout}
}

// Connect opens the TCP connection if it is not open yet.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return nil
	}

	d := net.Dialer{Timeout: c.timeout}
	conn, err := d.DialContext(ctx, "tcp", c.address)
	if err != nil {
		return fmt.Errorf("connection to %s failed: %w", c.address, err)
	}
	c.conn = conn
	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// SendFrame writes request and reads exactly one response ADU.
func (c *Client) SendFrame(ctx context.Context, request *ModbusFrame) (*ModbusFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	c.transactionID++
	request.TransactionID = c.transactionID

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if _, err := c.conn.Write(request.Encode()); err != nil {
		return nil, fmt.Errorf("write failed: %w", err)
	}

	header := make([]byte, mbapLength)
	if _, err := io.ReadFull(c.conn, header); err != nil {
		return nil, fmt.Errorf("read header failed: %w", err)
	}
	length := int(binary.BigEndian.Uint16(header[4:6]))
	if length < 2 || mbapLength+length-1 > maxADULength {
		return nil, fmt.Errorf("invalid length field %d", length)
	}

	buf := make([]byte, mbapLength+length-1)
	copy(buf, header)
	if _, err := io.ReadFull(c.conn, buf[mbapLength:]); err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}

	response, err := DecodeFrame(buf)
	if err != nil {
		return nil, err
	}
	if response.TransactionID != request.TransactionID {
		return nil, fmt.Errorf("transaction ID mismatch: expected %d, got %d",
			request.TransactionID, response.TransactionID)
	}
	return response, nil
}

func (c *Client) ReadHoldingRegisters(ctx context.Context, unitID uint8, startAddr, quantity uint16) ([]uint16, error) {
	return c.readRegisters(ctx, FuncCodeReadHoldingRegisters, unitID, startAddr, quantity)
}

func (c *Client) ReadInputRegisters(ctx context.Context, unitID uint8, startAddr, quantity uint16) ([]uint16, error) {
	return c.readRegisters(ctx, FuncCodeReadInputRegisters, unitID, startAddr, quantity)
}

func (c *Client) readRegisters(ctx context.Context, function, unitID uint8, startAddr, quantity uint16) ([]uint16, error) {
	response, err := c.SendFrame(ctx, readRegistersRequest(function, unitID, startAddr, quantity))
	if err != nil {
		return nil, err
	}
	regs, err := response.ParseRegisterResponse()
	if err != nil {
		return nil, err
	}
	if len(regs) != int(quantity) {
		return nil, fmt.Errorf("expected %d registers, got %d", quantity, len(regs))
	}
	return regs, nil
}
