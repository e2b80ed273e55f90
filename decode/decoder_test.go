package decode_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/x86dbt/decode"
)

var _ = Describe("Decoder", func() {
	var d *decode.Decoder

	BeforeEach(func() {
		d = decode.NewDecoder()
	})

	Describe("DecodeOne", func() {
		It("decodes REX.W mov rax, rbx", func() {
			mem := decode.ByteSliceMemory{Base: 0x1000, Data: []byte{0x48, 0x89, 0xD8}}
			inst, ok := d.DecodeOne(mem, 0x1000)

			Expect(ok).To(BeTrue())
			Expect(inst.ByteLen).To(Equal(uint8(3)))
			Expect(inst.Dest.Kind).To(Equal(decode.OperandGPR))
			Expect(inst.Dest.Reg).To(Equal(uint8(0))) // RAX
			Expect(inst.Src1.Kind).To(Equal(decode.OperandGPR))
			Expect(inst.Src1.Reg).To(Equal(uint8(3))) // RBX
			Expect(inst.Flags & decode.FlagRexPrefix).NotTo(BeZero())
			Expect(inst.Flags & decode.FlagRexWidening).NotTo(BeZero())
			Expect(inst.Dest.Size).To(Equal(uint8(64)))
			Expect(inst.Src1.Size).To(Equal(uint8(64)))
		})

		It("decodes a NOP with SIB+disp32", func() {
			mem := decode.ByteSliceMemory{
				Base: 0x2000,
				Data: []byte{0x0F, 0x1F, 0x84, 0x00, 0x00, 0x00, 0x00, 0x00},
			}
			inst, ok := d.DecodeOne(mem, 0x2000)

			Expect(ok).To(BeTrue())
			Expect(inst.ByteLen).To(Equal(uint8(8)))
			Expect(inst.Flags & decode.FlagModRMPresent).NotTo(BeZero())
			Expect(inst.Flags & decode.FlagSIBPresent).NotTo(BeZero())
			Expect(inst.Dest.Kind).To(Equal(decode.OperandSIB))
			Expect(inst.Dest.Disp).To(Equal(int32(0)))
		})

		It("fails on an illegal opcode", func() {
			mem := decode.ByteSliceMemory{Base: 0, Data: []byte{0x0F, 0xFF}}
			_, ok := d.DecodeOne(mem, 0)
			Expect(ok).To(BeFalse())
		})

		It("fails when the instruction would exceed 15 bytes", func() {
			// A run of 14 operand-size prefix bytes followed by a register
			// MOV (opcode + ModRM): 16 bytes, one past the 15-byte limit.
			data := []byte{0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x66, 0x89, 0xD8}
			mem := decode.ByteSliceMemory{Base: 0, Data: data}
			_, ok := d.DecodeOne(mem, 0)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("DecodeBlock round-trip size", func() {
		It("sums InstSize to the bytes consumed", func() {
			data := []byte{
				0x48, 0x89, 0xD8, // mov rax, rbx
				0x48, 0x01, 0xD8, // add rax, rbx
				0xC3, // ret
			}
			mem := decode.ByteSliceMemory{Base: 0x4000, Data: data}
			block := d.DecodeBlock(mem, 0x4000, d.OptionsFromDecoder())

			Expect(block.TotalBytes()).To(Equal(len(data)))

			pc := uint64(0x4000)
			for _, inst := range block.Instructions {
				Expect(inst.PC).To(Equal(pc))
				pc += uint64(inst.ByteLen)
			}
		})
	})

	Describe("multiblock continuation", func() {
		It("continues past a UD2 forward-covered by a conditional jump", func() {
			// JNE +2 ; UD2 ; UD2
			// The first JNE (0x70 = Jcc rel8) jumps over exactly one UD2.
			data := []byte{
				0x70, 0x02, // jcc rel8 +2 (covers the next 2 bytes, i.e. one UD2)
				0x0F, 0x0B, // ud2 (covered, must be continued past)
				0x0F, 0x0B, // ud2 (not covered, terminates the block)
			}
			mem := decode.ByteSliceMemory{Base: 0x5000, Data: data}
			opts := decode.BlockOptions{
				Multiblock:            true,
				MaxInstPerBlock:       -1,
				MaxCondBranchForward:  64,
				MaxCondBranchBackward: 64,
			}
			block := d.DecodeBlock(mem, 0x5000, opts)

			Expect(len(block.Instructions)).To(Equal(3))
			Expect(block.Instructions[1].Table.Op).To(Equal(decode.OpUD2))
			Expect(block.Instructions[2].Table.Op).To(Equal(decode.OpUD2))
		})

		It("does not continue past a block-ender when multiblock is disabled", func() {
			data := []byte{0x70, 0x02, 0x0F, 0x0B, 0x0F, 0x0B}
			mem := decode.ByteSliceMemory{Base: 0x6000, Data: data}
			block := d.DecodeBlock(mem, 0x6000, decode.BlockOptions{Multiblock: false, MaxInstPerBlock: -1})

			Expect(len(block.Instructions)).To(Equal(2))
			Expect(block.Instructions[1].Table.Op).To(Equal(decode.OpUD2))
		})
	})
})
