package modbus

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve answers every 12 byte read request with respond(request).
func serve(t *testing.T, respond func(req []byte) []byte) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			req := make([]byte, 12)
			if _, err := io.ReadFull(conn, req); err != nil {
				return
			}
			if _, err := conn.Write(respond(req)); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func registerResponse(req []byte, values ...uint16) []byte {
	pdu := []byte{req[7], byte(len(values) * 2)}
	for _, v := range values {
		pdu = binary.BigEndian.AppendUint16(pdu, v)
	}
	out := make([]byte, 7, 7+len(pdu))
	copy(out[0:2], req[0:2])
	binary.BigEndian.PutUint16(out[4:6], uint16(len(pdu)+1))
	out[6] = req[6]
	return append(out, pdu...)
}

func TestFrame_EncodeDecode(t *testing.T) {
	f := readRegistersRequest(FuncCodeReadHoldingRegisters, 7, 100, 2)
	f.TransactionID = 9
	raw := f.Encode()

	require.Len(t, raw, 12)
	assert.Equal(t, uint16(6), binary.BigEndian.Uint16(raw[4:6]))

	decoded, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, uint16(9), decoded.TransactionID)
	assert.Equal(t, uint8(7), decoded.UnitID)
	assert.Equal(t, uint8(FuncCodeReadHoldingRegisters), decoded.FunctionCode)

	_, err = DecodeFrame(raw[:5])
	assert.Error(t, err)

	raw[2] = 1
	_, err = DecodeFrame(raw)
	assert.Error(t, err, "non-zero protocol id")
}

func TestDecodeFrame_Exception(t *testing.T) {
	raw := []byte{0, 1, 0, 0, 0, 3, 1, 0x83, 0x02}
	_, err := DecodeFrame(raw)

	var exc *ExceptionError
	require.True(t, errors.As(err, &exc))
	assert.Equal(t, uint8(0x03), exc.FunctionCode)
	assert.Equal(t, uint8(0x02), exc.Code)
}

func TestClient_ReadHoldingRegisters(t *testing.T) {
	addr := serve(t, func(req []byte) []byte {
		assert.Equal(t, byte(FuncCodeReadHoldingRegisters), req[7])
		return registerResponse(req, 253, 7)
	})

	c := NewClient(addr, time.Second)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	regs, err := c.ReadHoldingRegisters(ctx, 1, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{253, 7}, regs)

	// Second request on the same connection uses the next transaction id.
	regs, err = c.ReadHoldingRegisters(ctx, 1, 0, 2)
	require.NoError(t, err)
	assert.Len(t, regs, 2)
}

func TestClient_ReadInputRegisters_Exception(t *testing.T) {
	addr := serve(t, func(req []byte) []byte {
		return []byte{req[0], req[1], 0, 0, 0, 3, req[6], req[7] | 0x80, 0x02}
	})

	c := NewClient(addr, time.Second)
	ctx := context.Background()
	require.NoError(t, c.Connect(ctx))
	defer c.Close()

	_, err := c.ReadInputRegisters(ctx, 1, 0, 1)
	var exc *ExceptionError
	assert.True(t, errors.As(err, &exc))
}

func TestClient_NotConnected(t *testing.T) {
	c := NewClient("127.0.0.1:1", 100*time.Millisecond)
	_, err := c.ReadHoldingRegisters(context.Background(), 1, 0, 1)
	assert.Error(t, err)
	assert.NoError(t, c.Close())
}
