package sdf

import "sync"

var floatPool = sync.Pool{
	New: func() any { return new([]float32) },
}

// GetFloats returns a scratch slice of length n. Its contents are undefined.
// Return it with PutFloats when done.
func GetFloats(n int) *[]float32 {
	p := floatPool.Get().(*[]float32)
	if cap(*p) < n {
		*p = make([]float32, n)
	}
	*p = (*p)[:n]
	return p
}

// PutFloats returns a slice obtained from GetFloats to the pool.
func PutFloats(p *[]float32) {
	if p == nil {
		return
	}
	floatPool.Put(p)
}
