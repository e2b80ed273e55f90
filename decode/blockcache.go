package decode

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// BlockCache memoizes DecodedBlocks by entry PC within one translation
// session. It is deliberately not the AOT on-disk cache (external per
// spec §1) — it only ever holds in-process pointers and is rebuilt every
// run; it exists purely so a TranslationUnit that retranslates the same
// hot PC (e.g. after an RA infeasibility forces a re-decode with
// multiblock disabled, per spec §7) does not always pay full decode
// cost. Built on the same Akita cache-directory LRU bookkeeping the
// teacher uses for its data caches, reused here for tag/eviction tracking
// of decoded blocks instead of raw bytes.
type BlockCache struct {
	directory     *akitacache.DirectoryImpl
	associativity int
	blocks        []*DecodedBlock
	hits, misses  uint64
}

// NewBlockCache creates a BlockCache with numSets*associativity entries.
func NewBlockCache(numSets, associativity int) *BlockCache {
	return &BlockCache{
		directory:     akitacache.NewDirectory(numSets, associativity, 1, akitacache.NewLRUVictimFinder()),
		associativity: associativity,
		blocks:        make([]*DecodedBlock, numSets*associativity),
	}
}

func (bc *BlockCache) index(b *akitacache.Block) int {
	return b.SetID*bc.associativity + b.WayID
}

// Lookup returns the cached DecodedBlock for entryPC, if present.
func (bc *BlockCache) Lookup(entryPC uint64) (*DecodedBlock, bool) {
	b := bc.directory.Lookup(0, entryPC)
	if b == nil || !b.IsValid {
		bc.misses++
		return nil, false
	}
	bc.directory.Visit(b)
	bc.hits++
	return bc.blocks[bc.index(b)], true
}

// Insert records a freshly decoded block under entryPC, evicting the LRU
// entry in its set if necessary.
func (bc *BlockCache) Insert(entryPC uint64, block *DecodedBlock) {
	victim := bc.directory.FindVictim(entryPC)
	if victim == nil {
		return
	}
	victim.Tag = entryPC
	victim.IsValid = true
	bc.blocks[bc.index(victim)] = block
	bc.directory.Visit(victim)
}

// Stats reports cumulative hit/miss counters.
func (bc *BlockCache) Stats() (hits, misses uint64) {
	return bc.hits, bc.misses
}
