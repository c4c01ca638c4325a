package correlation

import "time"

const (
	time1s = time.Second
	tick   = 5 * time.Millisecond
)
