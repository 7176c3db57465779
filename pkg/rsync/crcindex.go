package rsync

// crcOuterMap is the outer level of the two-level index: Crc ->
// secondLayerMap. It's a small open-addressing hash table keyed via
// CrcHasher rather than Go's built-in map hashing, because a Crc is already
// a well-mixed 32-bit sum and deserves the dedicated avalanche-only hasher,
// not the general-purpose hash Go's map type would use.
type crcOuterMap struct {
	buckets []crcOuterSlot
	count   int
}

// crcOuterSlot is one slot of the open-addressing table.
type crcOuterSlot struct {
	used  bool
	crc   Crc
	inner secondLayerMap[string, uint32]
}

// newCrcOuterMap allocates an outer map sized for roughly capacityHint
// distinct keys at a load factor no worse than 1/2.
func newCrcOuterMap(capacityHint int) *crcOuterMap {
	size := 8
	for size < capacityHint*2 {
		size *= 2
	}
	return &crcOuterMap{buckets: make([]crcOuterSlot, size)}
}

// probeStart computes the starting bucket index for crc using the dedicated
// CrcHasher rather than a general-purpose hash.
func (m *crcOuterMap) probeStart(crc Crc) int {
	var h CrcHasher
	h.WriteUint32(uint32(crc))
	return int(h.Sum64() & uint64(len(m.buckets)-1))
}

// find locates the slot for crc, either an existing one or the first empty
// slot on its probe sequence.
func (m *crcOuterMap) find(crc Crc) int {
	mask := len(m.buckets) - 1
	i := m.probeStart(crc)
	for {
		slot := &m.buckets[i]
		if !slot.used || slot.crc == crc {
			return i
		}
		i = (i + 1) & mask
	}
}

// getOrCreate returns the second-layer map for crc, creating an empty one
// and growing the table first if necessary.
func (m *crcOuterMap) getOrCreate(crc Crc) *secondLayerMap[string, uint32] {
	if m.count*2 >= len(m.buckets) {
		m.grow()
	}
	i := m.find(crc)
	slot := &m.buckets[i]
	if !slot.used {
		slot.used = true
		slot.crc = crc
		m.count++
	}
	return &slot.inner
}

// get looks up the second-layer map for crc without creating one.
func (m *crcOuterMap) get(crc Crc) (*secondLayerMap[string, uint32], bool) {
	if len(m.buckets) == 0 {
		return nil, false
	}
	i := m.find(crc)
	slot := &m.buckets[i]
	if !slot.used {
		return nil, false
	}
	return &slot.inner, true
}

// grow doubles the table and reinserts every existing entry. Go maps (and
// this table) don't support shrinking in place, so we simply avoid ever
// over-allocating beyond a 2x growth factor in the first place.
func (m *crcOuterMap) grow() {
	old := m.buckets
	m.buckets = make([]crcOuterSlot, len(old)*2)
	m.count = 0
	for _, slot := range old {
		if !slot.used {
			continue
		}
		i := m.find(slot.crc)
		m.buckets[i] = slot
		m.count++
	}
}
