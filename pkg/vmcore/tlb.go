package vmcore

import (
	lru "github.com/hashicorp/golang-lru"
)

const tlbPageShift = 12
const tlbSize = 4096

// tlbKey is a virtual page paired with the address-space generation it was
// translated under -- switching address spaces (InstallUserRootPGT) bumps
// the generation instead of sweeping the cache, so stale kernel-space
// entries simply become unreachable rather than needing explicit eviction.
type tlbKey struct {
	page uint64
	gen  uint64
}

// tlb is a bounded cache of virtual-page -> physical-page translations,
// avoiding a full page-table walk on every byte read of a page GDB has
// already paged in.
type tlb struct {
	cache *lru.Cache
}

func newTLB() *tlb {
	c, err := lru.New(tlbSize)
	if err != nil {
		// Only returns an error for a non-positive size, which tlbSize
		// never is.
		panic(err)
	}
	return &tlb{cache: c}
}

func (t *tlb) lookup(gen uint64, virt uint64) (uint64, bool) {
	page := virt &^ (uint64(1)<<tlbPageShift - 1)
	v, ok := t.cache.Get(tlbKey{page: page, gen: gen})
	if !ok {
		return 0, false
	}
	physPage := v.(uint64)
	return physPage | (virt & (uint64(1)<<tlbPageShift - 1)), true
}

func (t *tlb) insert(gen uint64, virt, phys uint64) {
	pageMask := uint64(1)<<tlbPageShift - 1
	virtPage := virt &^ pageMask
	physPage := phys &^ pageMask
	t.cache.Add(tlbKey{page: virtPage, gen: gen}, physPage)
}
