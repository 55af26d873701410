package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	codeFilterCapacity = 1_000_000
	codeFilterFP       = 0.01
)

// CodeFilter is a bloom filter over known short codes. The public redirect
// path consults it before touching Postgres so that garbage codes 404
// without a query. False positives just fall through to the DB lookup;
// there are no false negatives because every created code is added.
type CodeFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewCodeFilter builds an empty filter sized for the expected code count.
func NewCodeFilter() *CodeFilter {
	return &CodeFilter{
		filter: bloom.NewWithEstimates(codeFilterCapacity, codeFilterFP),
	}
}

// Seed adds every existing code, called once at startup.
func (f *CodeFilter) Seed(codes []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, code := range codes {
		f.filter.AddString(code)
	}
}

// Add records a newly created code.
func (f *CodeFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(code)
}

// MayContain reports whether the code could exist.
func (f *CodeFilter) MayContain(code string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(code)
}
