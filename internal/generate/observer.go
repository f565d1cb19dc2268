package generate

import "time"

// StepEvent describes one completed decode step. Tokens holds the token
// accepted for each codebook, or -1 where the codebook had not started. It is
// reused between steps; copy it to retain it.
type StepEvent struct {
	Step     int
	Tokens   []int
	Accepted int
	Elapsed  time.Duration
}

// Observer receives progress from a driver. Calls happen on the driver's
// goroutine and block the loop.
type Observer interface {
	StepDone(ev StepEvent)
	Finished(res *Result, err error)
}

// Observers fans out to several observers in order.
type Observers []Observer

func (o Observers) StepDone(ev StepEvent) {
	for _, ob := range o {
		ob.StepDone(ev)
	}
}

func (o Observers) Finished(res *Result, err error) {
	for _, ob := range o {
		ob.Finished(res, err)
	}
}

type nopObserver struct{}

func (nopObserver) StepDone(StepEvent)      {}
func (nopObserver) Finished(*Result, error) {}
