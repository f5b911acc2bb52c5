// SPDX-License-Identifier: MIT
package gitx_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/topickeeper/internal/gitx"
)

var _ = Describe("ParseCherry", func() {
	It("returns nothing for empty output", func() {
		Expect(gitx.ParseCherry("")).To(BeEmpty())
	})

	It("parses unique and equivalent commits in order", func() {
		lines := gitx.ParseCherry("+ aaa111\n- bbb222\n+ ccc333\n")
		Expect(lines).To(Equal([]gitx.CherryLine{
			{Unique: true, Hash: "aaa111"},
			{Unique: false, Hash: "bbb222"},
			{Unique: true, Hash: "ccc333"},
		}))
	})

	It("skips malformed lines", func() {
		lines := gitx.ParseCherry("garbage\n+\n? abc\n+ def\n")
		Expect(lines).To(Equal([]gitx.CherryLine{{Unique: true, Hash: "def"}}))
	})
})

var _ = Describe("ChangeIDFromMessage", func() {
	It("finds the trailer", func() {
		msg := "Add widget\n\nLonger body.\n\nChange-Id: I0123abcd\nSigned-off-by: Someone\n"
		Expect(gitx.ChangeIDFromMessage(msg)).To(Equal("I0123abcd"))
	})

	It("uses the first trailer when several exist", func() {
		Expect(gitx.ChangeIDFromMessage("Change-Id: Ia\nChange-Id: Ib")).To(Equal("Ia"))
	})

	It("tolerates indentation", func() {
		Expect(gitx.ChangeIDFromMessage("    Change-Id: Ifff")).To(Equal("Ifff"))
	})

	It("returns empty without a trailer", func() {
		Expect(gitx.ChangeIDFromMessage("Fix typo\n\nNo id here")).To(BeEmpty())
	})
})
