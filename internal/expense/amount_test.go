package expense

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FormatCents", func() {
	It("renders whole and fractional dollars", func() {
		Expect(FormatCents(1550)).To(Equal("15.50"))
		Expect(FormatCents(100)).To(Equal("1.00"))
		Expect(FormatCents(5)).To(Equal("0.05"))
		Expect(FormatCents(0)).To(Equal("0.00"))
	})

	It("renders negative amounts", func() {
		Expect(FormatCents(-1550)).To(Equal("-15.50"))
	})
})

var _ = Describe("ParseCents", func() {
	It("parses decimal dollar strings", func() {
		Expect(ParseCents("15.50")).To(Equal(int64(1550)))
		Expect(ParseCents("1")).To(Equal(int64(100)))
		Expect(ParseCents("0.05")).To(Equal(int64(5)))
		Expect(ParseCents(".5")).To(Equal(int64(50)))
	})

	It("pads a single fractional digit", func() {
		Expect(ParseCents("15.5")).To(Equal(int64(1550)))
	})

	It("truncates fractions beyond two digits", func() {
		Expect(ParseCents("15.509")).To(Equal(int64(1550)))
	})

	It("parses negative amounts", func() {
		Expect(ParseCents("-15.50")).To(Equal(int64(-1550)))
	})

	It("tolerates surrounding whitespace", func() {
		Expect(ParseCents(" 15.50 ")).To(Equal(int64(1550)))
	})

	It("rejects empty and malformed input", func() {
		_, err := ParseCents("")
		Expect(err).To(HaveOccurred())

		_, err = ParseCents("abc")
		Expect(err).To(HaveOccurred())

		_, err = ParseCents("15.x0")
		Expect(err).To(HaveOccurred())
	})

	It("round-trips with FormatCents", func() {
		for _, cents := range []int64{0, 1, 99, 100, 1550, 123456} {
			parsed, err := ParseCents(FormatCents(cents))
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed).To(Equal(cents))
		}
	})
})
