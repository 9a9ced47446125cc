package server

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Kind 报文类型（线上固定为 1 字节）
type Kind uint8

const (
	KindJoin Kind = iota
	KindUpdate
	KindAcknowledgement
	KindTouch
	KindReset
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "join"
	case KindUpdate:
		return "update"
	case KindAcknowledgement:
		return "ack"
	case KindTouch:
		return "touch"
	case KindReset:
		return "reset"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

const (
	// PacketSize 每个数据报的固定字节数，与现有客户端逐字节兼容
	PacketSize  = 40
	headerSize  = 16
	payloadSize = PacketSize - headerSize
)

var le = binary.LittleEndian

// ErrShortPacket 数据报长度不等于 PacketSize
var ErrShortPacket = errors.New("packet: datagram size mismatch")

// Transform 位置、速度与朝向（度），客户端上报，服务端只转发
type Transform struct {
	X, Y        float32
	VX, VY      float32
	Orientation float32
}

type TouchPayload struct {
	Instigator uint16
	Receiver   uint16
}

type AckPayload struct {
	Sequence uint32
}

type ResetPayload struct {
	It        uint16
	Transform Transform
}

// Packet 线上唯一的消息单元；Payload 按 Kind 解释
//
// Timestamp 在发送时写入（而不是构造时），重传会带上新的时间戳。
type Packet struct {
	Kind      Kind
	SessionID uint16
	Sequence  uint32
	Timestamp float64

	Update Transform // KindUpdate
	Touch  TouchPayload
	Ack    AckPayload
	Reset  ResetPayload
}

// IsGuaranteed 是否需要确认与重传：仅取决于类型，与内容无关
func (p *Packet) IsGuaranteed() bool {
	return p.Kind == KindReset
}

func putTransform(b []byte, t Transform) {
	le.PutUint32(b[0:], math.Float32bits(t.X))
	le.PutUint32(b[4:], math.Float32bits(t.Y))
	le.PutUint32(b[8:], math.Float32bits(t.VX))
	le.PutUint32(b[12:], math.Float32bits(t.VY))
	le.PutUint32(b[16:], math.Float32bits(t.Orientation))
}

func getTransform(b []byte) Transform {
	return Transform{
		X:           math.Float32frombits(le.Uint32(b[0:])),
		Y:           math.Float32frombits(le.Uint32(b[4:])),
		VX:          math.Float32frombits(le.Uint32(b[8:])),
		VY:          math.Float32frombits(le.Uint32(b[12:])),
		Orientation: math.Float32frombits(le.Uint32(b[16:])),
	}
}

// Encode 写入 dst（长度至少 PacketSize），未使用的负载字节清零
func (p *Packet) Encode(dst []byte) {
	_ = dst[PacketSize-1]
	clear(dst[:PacketSize])
	dst[0] = byte(p.Kind)
	le.PutUint16(dst[2:], p.SessionID)
	le.PutUint32(dst[4:], p.Sequence)
	le.PutUint64(dst[8:], math.Float64bits(p.Timestamp))

	body := dst[headerSize:PacketSize]
	switch p.Kind {
	case KindUpdate:
		putTransform(body, p.Update)
	case KindTouch:
		le.PutUint16(body[0:], p.Touch.Instigator)
		le.PutUint16(body[2:], p.Touch.Receiver)
	case KindAcknowledgement:
		le.PutUint32(body[0:], p.Ack.Sequence)
	case KindReset:
		le.PutUint16(body[0:], p.Reset.It)
		putTransform(body[4:], p.Reset.Transform)
	}
}

// MarshalBinary 实现 encoding.BinaryMarshaler
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, PacketSize)
	p.Encode(b)
	return b, nil
}

// UnmarshalBinary 解码一个数据报；未知类型不在这里报错，由分发器处理
func (p *Packet) UnmarshalBinary(b []byte) error {
	if len(b) != PacketSize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrShortPacket, len(b), PacketSize)
	}
	*p = Packet{
		Kind:      Kind(b[0]),
		SessionID: le.Uint16(b[2:]),
		Sequence:  le.Uint32(b[4:]),
		Timestamp: math.Float64frombits(le.Uint64(b[8:])),
	}
	body := b[headerSize:]
	switch p.Kind {
	case KindUpdate:
		p.Update = getTransform(body)
	case KindTouch:
		p.Touch = TouchPayload{Instigator: le.Uint16(body[0:]), Receiver: le.Uint16(body[2:])}
	case KindAcknowledgement:
		p.Ack = AckPayload{Sequence: le.Uint32(body[0:])}
	case KindReset:
		p.Reset = ResetPayload{It: le.Uint16(body[0:]), Transform: getTransform(body[4:])}
	}
	return nil
}
