package modbus

import (
	"encoding/binary"
	"fmt"
)

// ModbusFrame is one Modbus TCP ADU: MBAP header (7 bytes), function code, data.
type ModbusFrame struct {
	TransactionID uint16
	ProtocolID    uint16 // always 0
	Length        uint16 // bytes following the length field
	UnitID        uint8
	FunctionCode  uint8
	Data          []byte
}

const (
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeReadInputRegisters   = 0x04

	exceptionFlag = 0x80
	mbapLength    = 7
	maxADULength  = 260
)

// ExceptionError is returned when the device answers with an exception response.
type ExceptionError struct {
	FunctionCode uint8
	Code         uint8
}

func (e *ExceptionError) Error() string {
	return fmt.Sprintf("modbus exception 0x%02X for function 0x%02X", e.Code, e.FunctionCode)
}

func (f *ModbusFrame) Encode() []byte {
	f.Length = uint16(len(f.Data) + 2) // unit id + function code

	frame := make([]byte, mbapLength+1+len(f.Data))
	binary.BigEndian.PutUint16(frame[0:2], f.TransactionID)
	binary.BigEndian.PutUint16(frame[2:4], f.ProtocolID)
	binary.BigEndian.PutUint16(frame[4:6], f.Length)
	frame[6] = f.UnitID
	frame[7] = f.FunctionCode
	copy(frame[8:], f.Data)
	return frame
}

func DecodeFrame(data []byte) (*ModbusFrame, error) {
	if len(data) < mbapLength+1 {
		return nil, fmt.Errorf("frame too short: %d bytes", len(data))
	}

	frame := &ModbusFrame{
		TransactionID: binary.BigEndian.Uint16(data[0:2]),
		ProtocolID:    binary.BigEndian.Uint16(data[2:4]),
		Length:        binary.BigEndian.Uint16(data[4:6]),
		UnitID:        data[6],
		FunctionCode:  data[7],
	}
	if frame.ProtocolID != 0 {
		return nil, fmt.Errorf("invalid protocol ID: 0x%04X", frame.ProtocolID)
	}
	if int(frame.Length) != len(data)-6 {
		return nil, fmt.Errorf("length field %d does not match %d received bytes", frame.Length, len(data)-6)
	}
	if len(data) > mbapLength+1 {
		frame.Data = append([]byte(nil), data[8:]...)
	}

	if frame.FunctionCode&exceptionFlag != 0 {
		code := uint8(0)
		if len(frame.Data) > 0 {
			code = frame.Data[0]
		}
		return frame, &ExceptionError{FunctionCode: frame.FunctionCode &^ exceptionFlag, Code: code}
	}
	return frame, nil
}

func readRegistersRequest(function uint8, unitID uint8, startAddr, quantity uint16) *ModbusFrame {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], startAddr)
	binary.BigEndian.PutUint16(data[2:4], quantity)
	return &ModbusFrame{UnitID: unitID, FunctionCode: function, Data: data}
}

// ParseRegisterResponse parst Holding/Input Register Response
func (f *ModbusFrame) ParseRegisterResponse() ([]uint16, error) {
	if len(f.Data) < 1 {
		return nil, fmt.Errorf("response too short")
	}

	byteCount := int(f.Data[0])
	if byteCount%2 != 0 || len(f.Data) < byteCount+1 {
		return nil, fmt.Errorf("incomplete response data")
	}

	registers := make([]uint16, byteCount/2)
	for i := range registers {
		offset := 1 + i*2
		registers[i] = binary.BigEndian.Uint16(f.Data[offset : offset+2])
	}
	return registers, nil
}
