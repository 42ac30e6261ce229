package board

import "sync"

// PageSize is the allocation unit of Memory.
const PageSize = 4096

// Memory is a sparse, byte-addressed 32-bit address space. Unwritten
// bytes read as zero.
//
// All methods are safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	pages map[uint32][]byte
}

// NewMemory creates an empty memory.
func NewMemory() *Memory {
	return &Memory{
		pages: make(map[uint32][]byte),
	}
}

// Read copies len(buf) bytes starting at address into buf. The address
// wraps at 2^32.
func (m *Memory) Read(address uint32, buf []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for done := 0; done < len(buf); {
		addr := address + uint32(done)
		base, off := addr/PageSize, int(addr%PageSize)
		n := min(PageSize-off, len(buf)-done)

		if page, ok := m.pages[base]; ok {
			copy(buf[done:done+n], page[off:])
		} else {
			clear(buf[done : done+n])
		}
		done += n
	}
}

// Write copies data into memory starting at address.
func (m *Memory) Write(address uint32, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for done := 0; done < len(data); {
		addr := address + uint32(done)
		base, off := addr/PageSize, int(addr%PageSize)
		n := min(PageSize-off, len(data)-done)

		page, ok := m.pages[base]
		if !ok {
			page = make([]byte, PageSize)
			m.pages[base] = page
		}
		copy(page[off:], data[done:done+n])
		done += n
	}
}

// Pages returns the number of allocated pages.
func (m *Memory) Pages() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pages)
}
