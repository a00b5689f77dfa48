// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package isp

import (
	"errors"
	"io"
	"log"
)

// STK500v1 framing bytes.
const (
	CRC_EOP = 0x20 // End-of-packet sentinel closing every command.

	STK_OK      = 0x10
	STK_FAILED  = 0x11
	STK_UNKNOWN = 0x12
	STK_INSYNC  = 0x14
	STK_NOSYNC  = 0x15

	PAGE_SIZE = 64 // Default flash page, in bytes.

	HWVER  = 2
	SWMAJ  = 1
	SWMIN  = 18
	PTYPE  = 'S' // Serial programmer type.
	SIGNON = "AVR ISP"
)

// Server answers the STK500v1 command subset spoken by avrdude's
// "arduino"/"stk500v1" programmer types, translating each command into
// probe transactions. A framing violation always answers NOSYNC, it
// never hangs the link.
type Server struct {
	Link    io.ReadWriter
	Probe   *Probe
	Verbose bool // If set, enables verbose logging.

	addr     uint16 // Current word address, set by 'U'.
	pageSize int    // Flash page size from the 'B' device block.
}

func (sv *Server) getch() (b byte, err error) {
	var buf [1]byte
	_, err = io.ReadFull(sv.Link, buf[:])
	b = buf[0]

	return
}

func (sv *Server) fill(buf []byte) (err error) {
	_, err = io.ReadFull(sv.Link, buf)

	return
}

func (sv *Server) put(b ...byte) (err error) {
	_, err = sv.Link.Write(b)

	return
}

// eop consumes the CRC_EOP closing a command. A mismatch answers
// NOSYNC and reports ok=false; the command must not take effect.
func (sv *Server) eop() (ok bool, err error) {
	var b byte
	b, err = sv.getch()
	if err != nil {
		return
	}

	if b != CRC_EOP {
		err = sv.put(STK_NOSYNC)
		return
	}

	ok = true

	return
}

func (sv *Server) emptyReply() (err error) {
	ok, err := sv.eop()
	if err != nil || !ok {
		return
	}

	return sv.put(STK_INSYNC, STK_OK)
}

func (sv *Server) breply(b byte) (err error) {
	ok, err := sv.eop()
	if err != nil || !ok {
		return
	}

	return sv.put(STK_INSYNC, b, STK_OK)
}

// Serve answers commands until the link closes.
func (sv *Server) Serve() (err error) {
	sv.pageSize = PAGE_SIZE

	for {
		var cmd byte
		cmd, err = sv.getch()
		if errors.Is(err, io.EOF) {
			err = nil
			return
		}
		if err != nil {
			return
		}

		err = sv.dispatch(cmd)
		if err != nil {
			return
		}
	}
}

func (sv *Server) dispatch(cmd byte) (err error) {
	if sv.Verbose {
		log.Printf("stk500: command %q", cmd)
	}

	switch cmd {
	case '0': // Get sync.
		err = sv.emptyReply()

	case '1': // Get sign-on.
		var ok bool
		ok, err = sv.eop()
		if err != nil || !ok {
			return
		}
		err = sv.put(append(append([]byte{STK_INSYNC}, SIGNON...), STK_OK)...)

	case 'A': // Get parameter.
		var param byte
		param, err = sv.getch()
		if err != nil {
			return
		}
		err = sv.breply(sv.parameter(param))

	case 'B': // Set device block.
		buf := make([]byte, 20)
		err = sv.fill(buf)
		if err != nil {
			return
		}
		if size := int(buf[12])<<8 | int(buf[13]); size > 0 {
			sv.pageSize = size
		}
		err = sv.emptyReply()

	case 'E': // Set extended device block.
		buf := make([]byte, 5)
		err = sv.fill(buf)
		if err != nil {
			return
		}
		err = sv.emptyReply()

	case 'P': // Enter programming mode.
		var ok bool
		ok, err = sv.eop()
		if err != nil || !ok {
			return
		}
		status := byte(STK_OK)
		if sv.Probe.EnterProgramming() != nil {
			status = STK_FAILED
		}
		err = sv.put(STK_INSYNC, status)

	case 'U': // Set address (word, little-endian).
		buf := make([]byte, 2)
		err = sv.fill(buf)
		if err != nil {
			return
		}
		sv.addr = uint16(buf[0]) | uint16(buf[1])<<8
		err = sv.emptyReply()

	case 0x64: // Program page.
		err = sv.progPage()

	case 0x74: // Read page.
		err = sv.readPage()

	case 'V': // Universal 4-byte instruction.
		buf := make([]byte, 4)
		err = sv.fill(buf)
		if err != nil {
			return
		}
		err = sv.breply(sv.Probe.Universal(buf[0], buf[1], buf[2], buf[3]))

	case 0x75: // Read signature.
		var ok bool
		ok, err = sv.eop()
		if err != nil || !ok {
			return
		}
		var sig [3]byte
		sig, err = sv.Probe.Signature()
		if err != nil {
			err = sv.put(STK_INSYNC, STK_FAILED)
			return
		}
		err = sv.put(STK_INSYNC, sig[0], sig[1], sig[2], STK_OK)

	case 'Q': // Leave programming mode.
		sv.Probe.LeaveProgramming()
		err = sv.emptyReply()

	default:
		var b byte
		b, err = sv.getch()
		if err != nil {
			return
		}
		if b == CRC_EOP {
			err = sv.put(STK_UNKNOWN)
		} else {
			err = sv.put(STK_NOSYNC)
		}
	}

	return
}

func (sv *Server) parameter(param byte) (value byte) {
	switch param {
	case 0x80:
		value = HWVER
	case 0x81:
		value = SWMAJ
	case 0x82:
		value = SWMIN
	case 0x93:
		value = PTYPE
	}

	return
}

// progPage stages incoming flash data into the target page buffer,
// committing whenever the write crosses a page boundary and once at
// the end.
func (sv *Server) progPage() (err error) {
	head := make([]byte, 3)
	err = sv.fill(head)
	if err != nil {
		return
	}

	length := int(head[0])<<8 | int(head[1])
	memtype := head[2]

	data := make([]byte, length)
	err = sv.fill(data)
	if err != nil {
		return
	}

	ok, err := sv.eop()
	if err != nil || !ok {
		return
	}

	if memtype != 'F' {
		err = sv.put(STK_INSYNC, STK_FAILED)
		return
	}

	page := sv.page(sv.addr)
	for n, val := range data {
		word := sv.addr + uint16(n/2)
		if next := sv.page(word); next != page {
			sv.Probe.CommitPage(page)
			page = next
		}
		sv.Probe.LoadPage(word, n%2 == 1, val)
	}
	sv.Probe.CommitPage(page)
	sv.addr += uint16((length + 1) / 2)

	err = sv.put(STK_INSYNC, STK_OK)

	return
}

// page maps a word address to the first word of its flash page.
func (sv *Server) page(word uint16) uint16 {
	words := uint16(sv.pageSize / 2)

	return word &^ (words - 1)
}

func (sv *Server) readPage() (err error) {
	head := make([]byte, 3)
	err = sv.fill(head)
	if err != nil {
		return
	}

	length := int(head[0])<<8 | int(head[1])
	memtype := head[2]

	ok, err := sv.eop()
	if err != nil || !ok {
		return
	}

	if memtype != 'F' {
		err = sv.put(STK_INSYNC, STK_FAILED)
		return
	}

	out := make([]byte, 0, length+2)
	out = append(out, STK_INSYNC)
	for n := range length {
		word := sv.addr + uint16(n/2)
		out = append(out, sv.Probe.ReadFlash(word, n%2 == 1))
	}
	out = append(out, STK_OK)
	sv.addr += uint16((length + 1) / 2)

	err = sv.put(out...)

	return
}
