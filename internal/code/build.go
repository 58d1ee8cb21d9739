package code

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/wafflevm/wafflevm/internal/asm/x64"
)

// pageSize is the allocation granularity mmap rounds every request up to.
// original_source/src/jit/func.rs asks the OS for its native page size at
// startup; this port fixes it at the common x86-64 Linux value rather
// than querying unix.Getpagesize on every build, since the instruction
// stream's own executable-bit requirement is the only reason the rounding
// matters (a too-small region simply wastes less than a page).
const pageSize = 4096

// OSREntrySource is the {block ID -> byte offset} map
// codegen.FullCodegen.BlockOffsets returns; New converts it into the
// sorted OSREntry table a Code artifact serves, without this package
// needing to import internal/bytecode for a BlockID type it otherwise
// has no use for.
type OSREntrySource map[uint32]int

// New maps asm's finished buffer into freshly allocated executable
// memory and resolves every side table against the mapped base address,
// producing a ready-to-call Code artifact.
//
// Grounded on original_source/src/jit/func.rs's Code::from_buffer: mmap a
// RW page, copy the buffer in, flip it to RX, then patch every handler
// and OSR entry now that the final address is known. This port skips the
// original's data-segment prefix (constant pools live in the
// bytecode.CodeBlock's own Constants slice, not inline in the JIT buffer)
// and so begins the mapped region at the first instruction byte.
//
// log may be nil, in which case the mapping and repatch debug messages are
// discarded (the same zap.NewNop-on-nil convention internal/gc's
// Collector uses).
func New(desc Descriptor, name string, asm *x64.Assembler, frameSize int32, osr OSREntrySource, log *zap.Logger) (*Code, error) {
	if log == nil {
		log = zap.NewNop()
	}

	buf := asm.Bytes()
	mem, err := mapExecutable(buf)
	if err != nil {
		return nil, fmt.Errorf("code: mapping %s %q: %w", desc, name, err)
	}

	c := &Code{
		desc:            desc,
		name:            name,
		mem:             mem,
		frameSize:       frameSize,
		gcPoints:        buildEntries(asm.GcPoints),
		comments:        buildEntries(asm.Comments),
		positions:       buildEntries(asm.Positions),
		lazyCompilation: buildEntries(asm.LazyCompilation),
		log:             log,
	}

	base := c.Address()
	c.Handlers = make([]Handler, len(asm.Handlers))
	for i, h := range asm.Handlers {
		c.Handlers[i] = Handler{
			TryStart: base + uintptr(h.TryStart),
			TryEnd:   base + uintptr(h.TryEnd),
			CatchPC:  base + uintptr(h.Catch),
		}
	}

	c.OSRTable = make([]OSREntry, 0, len(osr))
	for id, off := range osr {
		c.OSRTable = append(c.OSRTable, OSREntry{ID: id, Offset: off})
	}

	log.Debug("mapped code",
		zap.String("name", name),
		zap.String("kind", desc.String()),
		zap.Int("bytes", len(buf)),
		zap.Int("handlers", len(c.Handlers)),
		zap.Int("osr_entries", len(c.OSRTable)),
		zap.Int("lazy_sites", len(c.lazyCompilation)),
	)

	return c, nil
}

// mapExecutable copies buf into a fresh anonymous mapping, sized up to a
// whole number of pages, then flips it from RW to RX. Two separate
// mprotect-free mmaps (one RW, one RX) would race a concurrent reader
// against a half-initialized page, so this allocates RW, writes, and
// only then tightens permissions in place — the same order
// Code::from_buffer follows.
func mapExecutable(buf []byte) ([]byte, error) {
	size := (len(buf) + pageSize - 1) &^ (pageSize - 1)
	if size == 0 {
		size = pageSize
	}

	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}

	copy(mem, buf)

	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, fmt.Errorf("mprotect RX: %w", err)
	}

	// x86-64 keeps the instruction cache coherent with stores to code
	// pages in hardware; no explicit flush instruction is needed here the
	// way an ARM port of this function would require one after Repatch.

	return mem[:len(buf)], nil
}

// Repatch rewrites a DirectCall site's rel32 displacement to target,
// absolute, and re-logs the change — used once a lazily compiled
// function's real Code becomes available and every call site recorded in
// LazySiteAt must start reaching it instead of the compile-stub.
//
// This briefly reopens the page for writing, since the mapping was
// tightened to RX-only in mapExecutable; self-modifying code on x86-64
// needs no cache flush, only the write itself (see mapExecutable's note).
func (c *Code) Repatch(site x64.LazySite, target uintptr) error {
	if err := unix.Mprotect(c.mem[:cap(c.mem)], unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("code: mprotect RW for repatch: %w", err)
	}

	siteAddr := c.Address() + uintptr(site.DispSite)
	disp := int32(int64(target) - int64(siteAddr+4))
	putU32LE(c.mem[site.DispSite:], uint32(disp))

	if err := unix.Mprotect(c.mem[:cap(c.mem)], unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("code: mprotect RX after repatch: %w", err)
	}

	c.log.Debug("repatched lazy call site",
		zap.String("name", c.name),
		zap.Uint32("fn_id", site.FnID),
		zap.Int("disp_site", site.DispSite),
		zap.Uintptr("target", target),
	)
	return nil
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Free unmaps the Code's executable memory. Callers must guarantee no
// live frame anywhere on any fiber's stack still has a return address
// inside this Code before calling it.
func (c *Code) Free() error {
	if len(c.mem) == 0 {
		return nil
	}
	full := c.mem[:cap(c.mem)]
	c.mem = nil
	return unix.Munmap(full)
}

func sliceAddress(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}
