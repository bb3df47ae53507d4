// Package tilelink implements the TileLink on-chip interconnect protocol
// payloads a TransactionRecord can carry (spec.md §4.11, component C11):
// the five TileLink channels, composed the way the original format does —
// a shared data-channel core, extended with an address for request
// channels, extended again with a write mask for masked channels, and a
// separate sink-id mixin for the channels that need one instead.
package tilelink

import (
	"fmt"
	"io"

	"github.com/stf-trace/stf"
)

// ChannelType is TileLink's own channel tag (A through E), independent
// of — but carried alongside — the TransactionRecord.ChannelType byte
// that selects which of these Go types to construct.
type ChannelType uint8

const (
	ChannelA ChannelType = iota
	ChannelB
	ChannelC
	ChannelD
	ChannelE
)

func (c ChannelType) String() string {
	switch c {
	case ChannelA:
		return "A"
	case ChannelB:
		return "B"
	case ChannelC:
		return "C"
	case ChannelD:
		return "D"
	case ChannelE:
		return "E"
	default:
		return fmt.Sprintf("ChannelType(%d)", uint8(c))
	}
}

func init() {
	stf.RegisterProtocol(stf.ProtocolTileLink, func(channel uint8) (stf.ProtocolData, error) {
		switch ChannelType(channel) {
		case ChannelA:
			return &ChannelAPayload{}, nil
		case ChannelB:
			return &ChannelBPayload{}, nil
		case ChannelC:
			return &ChannelCPayload{}, nil
		case ChannelD:
			return &ChannelDPayload{}, nil
		case ChannelE:
			return &ChannelEPayload{}, nil
		default:
			return nil, fmt.Errorf("tilelink: unknown channel type %d", channel)
		}
	})
}

// dataFields is the core every TileLink channel except E carries: an
// opcode, a protocol-defined parameter, a size exponent, the originating
// source id, and the data payload itself.
type dataFields struct {
	Code   uint8
	Param  uint8
	Size   uint8
	Source uint64
	Data   []byte
}

func (d *dataFields) unpack(r stf.PackedReader) {
	d.Code = r.U8()
	d.Param = r.U8()
	d.Size = r.U8()
	d.Source = r.U64()
	d.Data = r.LenBytes(2)
}

func (d *dataFields) pack(w stf.PackedWriter) {
	w.U8(d.Code)
	w.U8(d.Param)
	w.U8(d.Size)
	w.U64(d.Source)
	w.LenBytes(2, d.Data)
}

func (d *dataFields) format(w io.Writer) {
	fmt.Fprintf(w, "  code=%d param=%d size=%d source=0x%x data=%x\n", d.Code, d.Param, d.Size, d.Source, d.Data)
}

func (d *dataFields) clone() dataFields {
	c := *d
	c.Data = append([]byte(nil), d.Data...)
	return c
}

// ChannelAPayload is TileLink's A channel: a request from master to
// slave, address-qualified and write-masked (MaskedChannel<ChannelA> in
// the original layering).
type ChannelAPayload struct {
	dataFields
	Address uint64
	Mask    []byte
}

func (c *ChannelAPayload) ChannelType() uint8 { return uint8(ChannelA) }

func (c *ChannelAPayload) Unpack(r stf.PackedReader) {
	c.dataFields.unpack(r)
	c.Address = r.U64()
	c.Mask = r.LenBytes(2)
}

func (c *ChannelAPayload) Pack(w stf.PackedWriter) {
	c.dataFields.pack(w)
	w.U64(c.Address)
	w.LenBytes(2, c.Mask)
}

func (c *ChannelAPayload) Format(w io.Writer) {
	fmt.Fprintln(w, "TileLink A")
	c.dataFields.format(w)
	fmt.Fprintf(w, "  address=0x%x mask=%x\n", c.Address, c.Mask)
}

func (c *ChannelAPayload) Clone() stf.ProtocolData {
	return &ChannelAPayload{dataFields: c.dataFields.clone(), Address: c.Address, Mask: append([]byte(nil), c.Mask...)}
}

// ChannelBPayload is TileLink's B channel: a request from slave to
// master (e.g. a probe), the same masked shape as A.
type ChannelBPayload struct {
	dataFields
	Address uint64
	Mask    []byte
}

func (c *ChannelBPayload) ChannelType() uint8 { return uint8(ChannelB) }

func (c *ChannelBPayload) Unpack(r stf.PackedReader) {
	c.dataFields.unpack(r)
	c.Address = r.U64()
	c.Mask = r.LenBytes(2)
}

func (c *ChannelBPayload) Pack(w stf.PackedWriter) {
	c.dataFields.pack(w)
	w.U64(c.Address)
	w.LenBytes(2, c.Mask)
}

func (c *ChannelBPayload) Format(w io.Writer) {
	fmt.Fprintln(w, "TileLink B")
	c.dataFields.format(w)
	fmt.Fprintf(w, "  address=0x%x mask=%x\n", c.Address, c.Mask)
}

func (c *ChannelBPayload) Clone() stf.ProtocolData {
	return &ChannelBPayload{dataFields: c.dataFields.clone(), Address: c.Address, Mask: append([]byte(nil), c.Mask...)}
}

// ChannelCPayload is TileLink's C channel: a response from master to
// slave (e.g. a release), address-qualified but unmasked.
type ChannelCPayload struct {
	dataFields
	Address uint64
}

func (c *ChannelCPayload) ChannelType() uint8 { return uint8(ChannelC) }

func (c *ChannelCPayload) Unpack(r stf.PackedReader) {
	c.dataFields.unpack(r)
	c.Address = r.U64()
}

func (c *ChannelCPayload) Pack(w stf.PackedWriter) {
	c.dataFields.pack(w)
	w.U64(c.Address)
}

func (c *ChannelCPayload) Format(w io.Writer) {
	fmt.Fprintln(w, "TileLink C")
	c.dataFields.format(w)
	fmt.Fprintf(w, "  address=0x%x\n", c.Address)
}

func (c *ChannelCPayload) Clone() stf.ProtocolData {
	return &ChannelCPayload{dataFields: c.dataFields.clone(), Address: c.Address}
}

// ChannelDPayload is TileLink's D channel: a response from slave to
// master, carrying a sink id instead of an address.
type ChannelDPayload struct {
	dataFields
	Sink uint64
}

func (c *ChannelDPayload) ChannelType() uint8 { return uint8(ChannelD) }

func (c *ChannelDPayload) Unpack(r stf.PackedReader) {
	c.dataFields.unpack(r)
	c.Sink = r.U64()
}

func (c *ChannelDPayload) Pack(w stf.PackedWriter) {
	c.dataFields.pack(w)
	w.U64(c.Sink)
}

func (c *ChannelDPayload) Format(w io.Writer) {
	fmt.Fprintln(w, "TileLink D")
	c.dataFields.format(w)
	fmt.Fprintf(w, "  sink=0x%x\n", c.Sink)
}

func (c *ChannelDPayload) Clone() stf.ProtocolData {
	return &ChannelDPayload{dataFields: c.dataFields.clone(), Sink: c.Sink}
}

// ChannelEPayload is TileLink's E channel: a final acknowledgment from
// master to slave, carrying nothing but the sink id it's acknowledging.
type ChannelEPayload struct {
	Sink uint64
}

func (c *ChannelEPayload) ChannelType() uint8 { return uint8(ChannelE) }

func (c *ChannelEPayload) Unpack(r stf.PackedReader) { c.Sink = r.U64() }
func (c *ChannelEPayload) Pack(w stf.PackedWriter)   { w.U64(c.Sink) }

func (c *ChannelEPayload) Format(w io.Writer) {
	fmt.Fprintf(w, "TileLink E\n  sink=0x%x\n", c.Sink)
}

func (c *ChannelEPayload) Clone() stf.ProtocolData {
	return &ChannelEPayload{Sink: c.Sink}
}
