package shm

import "time"

func init() {
	seedSketchID(uint64(time.Now().Unix()))
}
