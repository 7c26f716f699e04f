package runner

import (
	"fmt"
	"time"
)

// Limit represents the resource ceilings for one supervised invocation
type Limit struct {
	TimeLimit   time.Duration // user CPU time limit
	WallLimit   time.Duration // real clock limit, raced by an independent timer
	MemoryLimit Size          // address space limit (in bytes)
	OutputLimit Size          // bytes captured per standard stream
}

func (l Limit) String() string {
	return fmt.Sprintf("Limit[Time=%v, Wall=%v, Memory=%v, Output=%v]",
		l.TimeLimit, l.WallLimit, l.MemoryLimit, l.OutputLimit)
}
