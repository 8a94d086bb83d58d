package expense

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalImageStore", func() {
	var store *LocalImageStore

	BeforeEach(func() {
		var err error
		store, err = NewLocalImageStore(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("names the file after the expense id plus the original extension", func() {
			path, err := store.Save("exp-1", "IMG_2041.PNG", []byte("png bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("exp-1.png"))
		})

		It("defaults to a jpg extension when the original name has none", func() {
			path, err := store.Save("exp-1", "", []byte("bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("exp-1.jpg"))
		})
	})

	Describe("Get", func() {
		It("returns the stored bytes", func() {
			path, err := store.Save("exp-1", "receipt.jpg", []byte("jpeg bytes"))
			Expect(err).NotTo(HaveOccurred())

			data, err := store.Get(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("jpeg bytes")))
		})

		It("returns an error for a missing image", func() {
			_, err := store.Get("nonexistent.jpg")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Delete", func() {
		It("removes the image", func() {
			path, err := store.Save("exp-1", "receipt.jpg", []byte("bytes"))
			Expect(err).NotTo(HaveOccurred())

			Expect(store.Delete(path)).To(Succeed())
			_, err = store.Get(path)
			Expect(err).To(HaveOccurred())
		})
	})
})
