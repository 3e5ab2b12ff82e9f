package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

func testPNG() []byte {
	var buf bytes.Buffer
	Expect(png.Encode(&buf, testImage())).To(Succeed())
	return buf.Bytes()
}

func testJPEG() []byte {
	var buf bytes.Buffer
	Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("preparePNG", func() {
	It("should pass PNG data through unchanged", func() {
		data := testPNG()
		out, converted, err := preparePNG(NewDataURI("image/png", data))
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeFalse())
		Expect(out).To(Equal(data))
	})

	It("should convert JPEG to PNG", func() {
		out, converted, err := preparePNG(NewDataURI("image/jpeg", testJPEG()))
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeTrue())
		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})

	It("should reject non-image MIME types", func() {
		_, _, err := preparePNG(NewDataURI("application/pdf", []byte("%PDF-1.4")))
		Expect(err).To(MatchError(ErrNotImage))
	})

	It("should reject undecodable image data as not an image", func() {
		_, _, err := preparePNG(NewDataURI("image/jpeg", []byte("not really a jpeg")))
		Expect(err).To(MatchError(ErrNotImage))
	})

	It("should reject an empty PNG", func() {
		out, _, err := preparePNG(NewDataURI("image/png", nil))
		Expect(err).To(MatchError(ErrNotImage))
		Expect(out).To(BeNil())
	})

	It("should reject arbitrary bytes labelled as PNG", func() {
		_, _, err := preparePNG(NewDataURI("image/png", []byte("hello world")))
		Expect(err).To(MatchError(ErrNotImage))
	})

	It("should convert a JPEG mislabelled as PNG", func() {
		out, converted, err := preparePNG(NewDataURI("image/png", testJPEG()))
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeTrue())
		_, format, err := image.Decode(bytes.NewReader(out))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})
})

var _ = Describe("CheckImage", func() {
	It("accepts supported photos", func() {
		Expect(CheckImage(testPNG(), "image/png")).To(Succeed())
		Expect(CheckImage(testJPEG(), "image/jpeg")).To(Succeed())
	})

	DescribeTable("rejects input that cannot be a photo",
		func(data []byte, mimeType string) {
			Expect(CheckImage(data, mimeType)).To(MatchError(ErrNotImage))
		},
		Entry("empty file", []byte{}, "image/png"),
		Entry("text labelled as JPEG", []byte("hello"), "image/jpeg"),
		Entry("truncated JPEG", []byte{0xFF, 0xD8, 0xFF, 0xE0, 'g', 'a', 'r', 'b', 'a', 'g', 'e'}, "image/jpeg"),
		Entry("non-image MIME type", []byte("%PDF-1.4"), "application/pdf"),
	)
})

var _ = Describe("HEIC detection", func() {
	It("should detect an ftyp heic header", func() {
		header := []byte{0, 0, 0, 24, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c'}
		Expect(isHEICFormat(header)).To(BeTrue())
	})

	It("should not flag short or foreign data", func() {
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		Expect(isHEICFormat(testPNG())).To(BeFalse())
	})

	It("should detect HEIC MIME types", func() {
		Expect(isHEICMimeType("image/HEIC")).To(BeTrue())
		Expect(isHEICMimeType("image/heif-sequence")).To(BeTrue())
		Expect(isHEICMimeType("image/jpeg")).To(BeFalse())
	})
})
