// Completion: 100% - Register allocator complete for lowered IR
package main

// Register Allocator for lowered IR
//
// Linear-scan register allocation over SSA values:
// - Each value gets one live interval covering every position it is live at
// - Intervals are scanned in order of their start position
// - Values that do not fit in a register are spilled to a stack slot
//
// Only callee-saved registers are handed out, so allocated values survive
// calls into the host without any save/restore around the call. The
// caller-saved registers are left to instruction selection as scratch.
//
// References:
// - Poletto & Sarkar (1999): Linear Scan Register Allocation
// - Wimmer & Franz (2010): Linear Scan Register Allocation on SSA Form

import (
	"fmt"
	"io"
	"sort"

	"github.com/xyproto/tapejit/internal/ir"
)

// LiveInterval represents the lifetime of an SSA value
type LiveInterval struct {
	Value     ir.Value
	Start     int    // Definition (or earliest live position)
	End       int    // Last position the value is needed at
	Reg       string // Allocated register (empty if spilled)
	Spilled   bool
	SpillSlot int
	Uses      []int
}

// RegisterAllocator manages register allocation for a function
type RegisterAllocator struct {
	intervals       []*LiveInterval
	active          []*LiveInterval
	freeRegs        []string
	callerSaved     []string // scratch registers, never allocated
	calleeSaved     []string
	usedCalleeSaved map[string]bool
	byValue         map[ir.Value]*LiveInterval
	position        int
	spillSlots      int
}

// NewRegisterAllocator creates a register allocator for x86_64 System V code
func NewRegisterAllocator() *RegisterAllocator {
	ra := &RegisterAllocator{
		callerSaved: []string{"rax", "rcx", "rdx", "rsi", "rdi", "r8", "r9", "r10", "r11"},
		calleeSaved: []string{"rbx", "r12", "r13", "r14", "r15"},
	}
	ra.Reset()
	return ra
}

// Reset clears the allocator state for a new function
func (ra *RegisterAllocator) Reset() {
	ra.intervals = nil
	ra.active = nil
	ra.byValue = make(map[ir.Value]*LiveInterval)
	ra.usedCalleeSaved = make(map[string]bool)
	ra.position = 0
	ra.spillSlots = 0
	// Handed out from the end, so rbx goes first
	ra.freeRegs = make([]string, len(ra.calleeSaved))
	for i, reg := range ra.calleeSaved {
		ra.freeRegs[len(ra.calleeSaved)-1-i] = reg
	}
}

// SetPosition moves to the given program position
func (ra *RegisterAllocator) SetPosition(pos int) {
	ra.position = pos
}

func (ra *RegisterAllocator) interval(v ir.Value) *LiveInterval {
	interval, ok := ra.byValue[v]
	if !ok {
		interval = &LiveInterval{Value: v, Start: ra.position, End: ra.position}
		ra.intervals = append(ra.intervals, interval)
		ra.byValue[v] = interval
	}
	return interval
}

// DefValue marks the definition of v at the current position
func (ra *RegisterAllocator) DefValue(v ir.Value) {
	ra.Extend(v, ra.position)
}

// UseValue marks a use of v at the current position
func (ra *RegisterAllocator) UseValue(v ir.Value) {
	interval := ra.interval(v)
	interval.Uses = append(interval.Uses, ra.position)
	ra.Extend(v, ra.position)
}

// Extend makes v live at pos
func (ra *RegisterAllocator) Extend(v ir.Value, pos int) {
	interval := ra.interval(v)
	if pos < interval.Start {
		interval.Start = pos
	}
	if pos > interval.End {
		interval.End = pos
	}
}

// AllocateRegisters performs the linear scan allocation algorithm
func (ra *RegisterAllocator) AllocateRegisters() {
	sort.SliceStable(ra.intervals, func(i, j int) bool {
		return ra.intervals[i].Start < ra.intervals[j].Start
	})

	for _, interval := range ra.intervals {
		ra.expireOldIntervals(interval)

		if len(ra.freeRegs) > 0 {
			reg := ra.freeRegs[len(ra.freeRegs)-1]
			ra.freeRegs = ra.freeRegs[:len(ra.freeRegs)-1]
			interval.Reg = reg
			ra.usedCalleeSaved[reg] = true
			ra.active = append(ra.active, interval)
		} else {
			ra.spillAtInterval(interval)
		}
	}
}

// expireOldIntervals frees the registers of intervals that end before interval starts
func (ra *RegisterAllocator) expireOldIntervals(interval *LiveInterval) {
	sort.SliceStable(ra.active, func(i, j int) bool {
		return ra.active[i].End < ra.active[j].End
	})

	newActive := ra.active[:0]
	for _, active := range ra.active {
		if active.End >= interval.Start {
			newActive = append(newActive, active)
		} else if active.Reg != "" {
			ra.freeRegs = append(ra.freeRegs, active.Reg)
		}
	}
	ra.active = newActive
}

// spillAtInterval spills whichever of interval and the active interval
// that ends last lives longer
func (ra *RegisterAllocator) spillAtInterval(interval *LiveInterval) {
	spill := ra.active[len(ra.active)-1]

	if spill.End > interval.End {
		interval.Reg = spill.Reg
		spill.Reg = ""
		spill.Spilled = true
		spill.SpillSlot = ra.allocateSpillSlot()

		ra.active = ra.active[:len(ra.active)-1]
		ra.active = append(ra.active, interval)
		sort.SliceStable(ra.active, func(i, j int) bool {
			return ra.active[i].End < ra.active[j].End
		})
	} else {
		interval.Spilled = true
		interval.SpillSlot = ra.allocateSpillSlot()
	}
}

func (ra *RegisterAllocator) allocateSpillSlot() int {
	slot := ra.spillSlots
	ra.spillSlots++
	return slot
}

// GetRegister returns the allocated register for v
func (ra *RegisterAllocator) GetRegister(v ir.Value) (string, bool) {
	interval, exists := ra.byValue[v]
	if !exists || interval.Spilled {
		return "", false
	}
	return interval.Reg, interval.Reg != ""
}

// IsSpilled returns true if v was spilled to the stack
func (ra *RegisterAllocator) IsSpilled(v ir.Value) bool {
	interval, exists := ra.byValue[v]
	return exists && interval.Spilled
}

// GetSpillSlot returns the spill slot of v
func (ra *RegisterAllocator) GetSpillSlot(v ir.Value) (int, bool) {
	interval, exists := ra.byValue[v]
	if !exists || !interval.Spilled {
		return 0, false
	}
	return interval.SpillSlot, true
}

// GetUsedCalleeSaved returns the callee-saved registers that were handed out,
// in the order they are pushed
func (ra *RegisterAllocator) GetUsedCalleeSaved() []string {
	result := []string{}
	for _, reg := range ra.calleeSaved {
		if ra.usedCalleeSaved[reg] {
			result = append(result, reg)
		}
	}
	return result
}

// GetStackFrameSize returns the bytes reserved below the saved registers:
// 8 per spill slot, padded so that rsp stays 16-byte aligned at calls
func (ra *RegisterAllocator) GetStackFrameSize() int {
	size := ra.spillSlots * 8
	// return address + rbp are 16 bytes, the saved registers and the frame make up the rest
	if (len(ra.GetUsedCalleeSaved())*8+size)%16 != 0 {
		size += 8
	}
	return size
}

// SpillDisplacement returns the rbp-relative displacement of a spill slot
func (ra *RegisterAllocator) SpillDisplacement(slot int) int32 {
	return -int32(len(ra.GetUsedCalleeSaved())*8 + 8 + slot*8)
}

// PrintAllocation prints the register allocation results
func (ra *RegisterAllocator) PrintAllocation(w io.Writer) {
	fmt.Fprintf(w, "Register Allocation Results:\n")
	fmt.Fprintf(w, "============================\n")
	for _, interval := range ra.intervals {
		if interval.Spilled {
			fmt.Fprintf(w, "  %s: SPILLED to slot %d (live %d-%d)\n",
				interval.Value, interval.SpillSlot, interval.Start, interval.End)
		} else {
			fmt.Fprintf(w, "  %s: %s (live %d-%d)\n",
				interval.Value, interval.Reg, interval.Start, interval.End)
		}
	}
	fmt.Fprintf(w, "Used callee-saved: %v\n", ra.GetUsedCalleeSaved())
	fmt.Fprintf(w, "Stack frame size: %d bytes\n", ra.GetStackFrameSize())
}

// GeneratePrologue sets up the rbp frame, saves the callee-saved registers
// that were used and reserves the spill area
func (ra *RegisterAllocator) GeneratePrologue(out *Out) {
	out.PushReg("rbp")
	out.MovRegToReg("rbp", "rsp")
	for _, reg := range ra.GetUsedCalleeSaved() {
		out.PushReg(reg)
	}
	if size := ra.GetStackFrameSize(); size > 0 {
		out.SubImmFromReg("rsp", int32(size))
	}
}

// GenerateEpilogue undoes GeneratePrologue and returns
func (ra *RegisterAllocator) GenerateEpilogue(out *Out) {
	if size := ra.GetStackFrameSize(); size > 0 {
		out.AddImmToReg("rsp", int32(size))
	}
	usedRegs := ra.GetUsedCalleeSaved()
	for i := len(usedRegs) - 1; i >= 0; i-- {
		out.PopReg(usedRegs[i])
	}
	out.PopReg("rbp")
	out.Ret()
}
