package ir_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xyproto/tapejit/internal/ir"
)

var _ = Describe("Verify", func() {
	newEntry := func() (*ir.Builder, ir.Block) {
		b := ir.NewBuilder("g", ir.Signature{Params: []ir.Type{ir.I64}})
		entry := b.CreateBlock()
		b.SealBlock(entry)
		b.AppendBlockParamsForFunctionParams(entry)
		b.SwitchToBlock(entry)
		return b, entry
	}

	It("should reject a value used outside its dominance", func() {
		b, entry := newEntry()
		left := b.CreateBlock()
		right := b.CreateBlock()
		join := b.CreateBlock()
		base := b.BlockParams(entry)[0]
		b.Brif(b.Load(ir.I8, base, 0), left, nil, right, nil)
		b.SealBlock(left)
		b.SealBlock(right)

		b.SwitchToBlock(left)
		onlyLeft := b.IaddImm(base, 1)
		b.Jump(join)
		b.SwitchToBlock(right)
		b.Jump(join)
		b.SealBlock(join)

		b.SwitchToBlock(join)
		b.Store(b.Iconst(ir.I8, 1), onlyLeft, 0)
		b.Return()

		_, err := b.Finalize()
		Expect(errors.Is(err, ir.ErrInvalid)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("does not dominate"))
	})

	It("should accept a value from the entry block used inside a loop", func() {
		b, entry := newEntry()
		body := b.CreateBlock()
		exit := b.CreateBlock()
		base := b.BlockParams(entry)[0]
		step := b.Iconst(ir.I64, 1)
		b.Brif(b.Load(ir.I8, base, 0), body, nil, exit, nil)

		b.SwitchToBlock(body)
		addr := b.Iadd(base, step)
		b.Store(b.Iconst(ir.I8, 0), addr, 0)
		b.Brif(b.Load(ir.I8, addr, 0), body, nil, exit, nil)
		b.SealBlock(body)
		b.SealBlock(exit)

		b.SwitchToBlock(exit)
		b.Return()

		f, err := b.Finalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(ir.Verify(f)).To(Succeed())
	})

	It("should accept a value from the entry block used after a diamond", func() {
		b, entry := newEntry()
		left := b.CreateBlock()
		right := b.CreateBlock()
		join := b.CreateBlock()
		base := b.BlockParams(entry)[0]
		b.Brif(b.Load(ir.I8, base, 0), left, nil, right, nil)
		b.SwitchToBlock(left)
		b.Jump(join)
		b.SwitchToBlock(right)
		b.Jump(join)
		b.SealAllBlocks()

		b.SwitchToBlock(join)
		b.Store(b.Iconst(ir.I8, 1), base, 0)
		b.Return()

		_, err := b.Finalize()
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject a call whose arguments do not match its signature", func() {
		b, entry := newEntry()
		sig := &ir.Signature{Params: []ir.Type{ir.I8}}
		callee := b.Iconst(ir.I64, 0x1000)
		b.CallIndirect(sig, callee, b.BlockParams(entry)[0])
		b.Return()

		_, err := b.Finalize()
		Expect(errors.Is(err, ir.ErrInvalid)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("call argument"))
	})

	It("should accept a call with matching arguments and print it", func() {
		b, entry := newEntry()
		sig := &ir.Signature{Params: []ir.Type{ir.I8}}
		callee := b.Iconst(ir.I64, 4096)
		b.CallIndirect(sig, callee, b.Load(ir.I8, b.BlockParams(entry)[0], 0))
		b.Return()

		f, err := b.Finalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(f.String()).To(ContainSubstring("call_indirect (i8) system_v v1(v2)"))
	})

	It("should list reachable blocks in reverse postorder", func() {
		b, entry := newEntry()
		body := b.CreateBlock()
		exit := b.CreateBlock()
		b.Brif(b.Load(ir.I8, b.BlockParams(entry)[0], 0), body, nil, exit, nil)
		b.SwitchToBlock(body)
		b.Jump(exit)
		b.SealAllBlocks()
		b.SwitchToBlock(exit)
		b.Return()

		f, err := b.Finalize()
		Expect(err).NotTo(HaveOccurred())
		Expect(ir.ReversePostorder(f)).To(Equal([]ir.Block{entry, body, exit}))
	})
})
