package ir_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/xyproto/tapejit/internal/ir"
)

var _ = Describe("Builder", func() {
	var (
		b     *ir.Builder
		entry ir.Block
	)

	BeforeEach(func() {
		b = ir.NewBuilder("f", ir.Signature{Params: []ir.Type{ir.I64}, Returns: []ir.Type{ir.I64}})
		entry = b.CreateBlock()
		b.SealBlock(entry)
		b.AppendBlockParamsForFunctionParams(entry)
		b.SwitchToBlock(entry)
	})

	Context("straight-line code", func() {
		It("should build and print a single block", func() {
			base := b.BlockParams(entry)[0]
			cell := b.Load(ir.I8, base, 0)
			b.Store(b.IaddImm(cell, 3), base, 0)
			b.Return(base)

			f, err := b.Finalize()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.InstCount()).To(Equal(4))
			text := f.String()
			Expect(text).To(ContainSubstring("function %f(i64) -> i64 system_v {"))
			Expect(text).To(ContainSubstring("block0(v0: i64):"))
			Expect(text).To(ContainSubstring("v1 = load.i8 v0+0"))
			Expect(text).To(ContainSubstring("v2 = iadd_imm v1, 3"))
			Expect(text).To(ContainSubstring("store v2, v0+0"))
			Expect(text).To(ContainSubstring("return v0"))
		})

		It("should resolve a variable defined in the same block", func() {
			const dp = ir.Variable(0)
			b.DeclareVar(dp, ir.I64)
			zero := b.Iconst(ir.I64, 0)
			b.DefVar(dp, zero)
			moved := b.IaddImm(b.UseVar(dp), 5)
			b.DefVar(dp, moved)
			Expect(b.UseVar(dp)).To(Equal(moved))
		})

		It("should materialize zero for a variable read before any definition", func() {
			const x = ir.Variable(1)
			b.DeclareVar(x, ir.I64)
			v := b.UseVar(x)
			b.Return(v)

			f, err := b.Finalize()
			Expect(err).NotTo(HaveOccurred())
			first := f.Insts(entry)[0]
			Expect(first.Op).To(Equal(ir.OpIconst))
			Expect(first.Imm).To(Equal(int64(0)))
			Expect(first.Result).To(Equal(v))
		})
	})

	Context("loops", func() {
		It("should add block parameters when a variable changes around a back edge", func() {
			const dp = ir.Variable(0)
			b.DeclareVar(dp, ir.I64)
			start := b.Iconst(ir.I64, 0)
			b.DefVar(dp, start)

			header := b.CreateBlock()
			exit := b.CreateBlock()
			base := b.BlockParams(entry)[0]
			b.Brif(b.Load(ir.I8, base, 0), header, nil, exit, nil)

			b.SwitchToBlock(header)
			next := b.IaddImm(b.UseVar(dp), 1)
			b.DefVar(dp, next)
			b.Brif(b.Load(ir.I8, b.Iadd(base, next), 0), header, nil, exit, nil)
			b.SealBlock(header)
			b.SealBlock(exit)

			b.SwitchToBlock(exit)
			b.Return(b.UseVar(dp))

			f, err := b.Finalize()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Params(header)).To(HaveLen(1))
			Expect(f.Params(exit)).To(HaveLen(1))
			Expect(f.Preds(header)).To(ConsistOf(entry, header))

			term := f.Terminator(entry)
			Expect(term.Dests[0].Args).To(Equal([]ir.Value{start}))
			Expect(term.Dests[1].Args).To(Equal([]ir.Value{start}))
			back := f.Terminator(header)
			Expect(back.Dests[0].Args).To(Equal([]ir.Value{next}))
			Expect(back.Dests[1].Args).To(Equal([]ir.Value{next}))
		})

		It("should reuse the single predecessor's value without a parameter", func() {
			const dp = ir.Variable(0)
			b.DeclareVar(dp, ir.I64)
			start := b.Iconst(ir.I64, 7)
			b.DefVar(dp, start)
			next := b.CreateBlock()
			b.Jump(next)
			b.SealBlock(next)
			b.SwitchToBlock(next)
			Expect(b.UseVar(dp)).To(Equal(start))
			b.Return(start)

			f, err := b.Finalize()
			Expect(err).NotTo(HaveOccurred())
			Expect(f.Params(next)).To(BeEmpty())
		})
	})

	Context("finalizing", func() {
		It("should reject an unsealed block", func() {
			open := b.CreateBlock()
			b.Jump(open)
			b.SwitchToBlock(open)
			b.Return(b.Iconst(ir.I64, 0))

			_, err := b.Finalize()
			Expect(errors.Is(err, ir.ErrUnsealed)).To(BeTrue())
		})

		It("should reject a block without a terminator", func() {
			b.Iconst(ir.I64, 1)
			_, err := b.Finalize()
			Expect(errors.Is(err, ir.ErrInvalid)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("terminator"))
		})

		It("should reject a return that does not match the signature", func() {
			b.Return()
			_, err := b.Finalize()
			Expect(errors.Is(err, ir.ErrInvalid)).To(BeTrue())
		})

		It("should panic when appending after a terminator", func() {
			b.Return(b.BlockParams(entry)[0])
			Expect(func() { b.Iconst(ir.I64, 1) }).To(Panic())
		})
	})

	Context("layout", func() {
		It("should move a block to the end and keep the entry first", func() {
			first := b.CreateBlock()
			second := b.CreateBlock()
			b.MoveBlockToEnd(first)
			Expect(b.Func().Layout()).To(Equal([]ir.Block{entry, second, first}))

			b.MoveBlockToEnd(entry)
			Expect(b.Func().Entry()).To(Equal(entry))
		})
	})
})
