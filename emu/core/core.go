/*
   x86emu - Core emulator loop.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

// Package core drives the fetch/execute loop: one goroutine repeatedly
// calls cpu.Step, advances the event list, and ticks the PIT, the same
// role the teacher's core package plays around CycleCPU, generalized
// to a machine with no channel subsystem to route packets to.
package core

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rcornwell/x86emu/emu/cpu"
	"github.com/rcornwell/x86emu/emu/event"
	"github.com/rcornwell/x86emu/emu/ioport"
)

// Core owns one CPU and its surrounding glue: the interrupt controller
// Step polls for pending vectors, and the timer that drives it.
type Core struct {
	wg      sync.WaitGroup
	done    chan struct{}
	running chan bool
	cpu     *cpu.CPU
	pic     *ioport.PIC
	pit     *ioport.PIT
}

// New returns a Core wrapping a freshly reset CPU. pic may be nil if the
// caller never intends to raise hardware interrupts (e.g. unit tests
// driving Step by hand); New registers a no-op PIC in that case so
// Step's pending-interrupt check always has a live collaborator.
func New(pic *ioport.PIC, pit *ioport.PIT) *Core {
	if pic == nil {
		pic = ioport.NewPIC()
	}
	return &Core{
		cpu:     cpu.New(),
		pic:     pic,
		pit:     pit,
		done:    make(chan struct{}),
		running: make(chan bool, 1),
	}
}

// CPU returns the underlying processor, for boot loaders and debuggers
// that need direct register/memory access before Start is called.
func (c *Core) CPU() *cpu.CPU { return c.cpu }

// Start runs the fetch/execute loop in its own goroutine until Stop is
// called. Between instructions it advances the event list by one
// simulated tick and ticks the PIT, mirroring the teacher's CycleCPU/
// event.Advance pairing in its own core.Start.
func (c *Core) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		running := true
		for {
			select {
			case <-c.done:
				slog.Info("core: shutdown")
				return
			case running = <-c.running:
			default:
			}

			if !running {
				time.Sleep(time.Millisecond)
				continue
			}

			if err := c.cpu.Step(c.pic); err != nil {
				slog.Error("core: halt", "err", err)
				running = false
				continue
			}
			if c.pit != nil {
				c.pit.Tick()
			}
			event.Advance(1)
		}
	}()
}

// Stop signals the run loop to exit and waits up to one second for it
// to do so.
func (c *Core) Stop() {
	close(c.done)
	waited := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(time.Second):
		slog.Warn("core: timed out waiting for CPU to stop")
	}
}

// Run requests the loop start executing instructions; Halt requests it
// idle without advancing the instruction stream. Both are safe to call
// before or after Start.
func (c *Core) Run()  { c.running <- true }
func (c *Core) Halt() { c.running <- false }

// RaiseIRQ posts a hardware interrupt request to the Core's PIC, the
// x86 analogue of the teacher's PostExtIrq.
func (c *Core) RaiseIRQ(irq uint8) {
	c.pic.Raise(irq)
}
