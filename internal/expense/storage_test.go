package expense

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage *LocalStorage
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		var err error
		storage, err = NewLocalStorage(filepath.Join(tmpDir, "attachments"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewLocalStorage", func() {
		It("should create the base directory", func() {
			info, err := os.Stat(filepath.Join(tmpDir, "attachments"))
			Expect(err).NotTo(HaveOccurred())
			Expect(info.IsDir()).To(BeTrue())
		})
	})

	Describe("Save and Get", func() {
		It("should round-trip file data", func() {
			path, err := storage.Save("abc_receipt.jpg", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(Equal("abc_receipt.jpg"))

			data, err := storage.Get(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image bytes")))
		})
	})

	Describe("Save", func() {
		When("the filename would escape the base directory", func() {
			It("should reject relative traversal", func() {
				_, err := storage.Save("../escape.jpg", []byte("image bytes"))
				Expect(err).To(MatchError(ContainSubstring("invalid attachment name")))
				_, statErr := os.Stat(filepath.Join(tmpDir, "escape.jpg"))
				Expect(os.IsNotExist(statErr)).To(BeTrue())
			})

			It("should reject nested paths", func() {
				_, err := storage.Save("sub/receipt.jpg", []byte("image bytes"))
				Expect(err).To(MatchError(ContainSubstring("invalid attachment name")))
			})
		})
	})

	Describe("Get", func() {
		When("the path would escape the base directory", func() {
			It("should reject it", func() {
				_, err := storage.Get("../../etc/hostname")
				Expect(err).To(MatchError(ContainSubstring("invalid attachment name")))
			})
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				_, err := storage.Get("missing.jpg")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Delete", func() {
		It("should remove a saved file", func() {
			path, err := storage.Save("abc_receipt.jpg", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete(path)).To(Succeed())
			_, err = storage.Get(path)
			Expect(err).To(HaveOccurred())
		})

		When("the file does not exist", func() {
			It("should return an error", func() {
				Expect(storage.Delete("missing.jpg")).To(HaveOccurred())
			})
		})
	})
})
