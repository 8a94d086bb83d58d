package archive

import (
	"context"
	"errors"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

// mockPresign is a mock implementation of PresignAPI backed by an object
// storage double
type mockPresign struct {
	mu           sync.Mutex
	storageURL   string
	uploadErr    error
	fileNames    []string
	listErr      error
	downloadErrs map[string]error
	uploadCalls  []string
}

func (m *mockPresign) CSVUploadURL(ctx context.Context, fileName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.uploadCalls = append(m.uploadCalls, fileName)
	return m.storageURL + "/" + fileName, nil
}

func (m *mockPresign) CSVDownloadURL(ctx context.Context, fileName string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.downloadErrs[fileName]; err != nil {
		return "", err
	}
	return m.storageURL + "/" + fileName, nil
}

func (m *mockPresign) CSVFileNames(ctx context.Context) ([]string, error) {
	return m.fileNames, m.listErr
}

var _ = Describe("Service", func() {
	var (
		storage *ghttp.Server
		presign *mockPresign
		service *Service
		ctx     context.Context
	)

	BeforeEach(func() {
		storage = ghttp.NewServer()
		presign = &mockPresign{storageURL: storage.URL(), downloadErrs: map[string]error{}}
		service = NewService(presign)
		ctx = context.Background()
	})

	AfterEach(func() {
		storage.Close()
	})

	Describe("Upload", func() {
		It("PUTs the contents to the presigned URL as CSV", func() {
			storage.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest("PUT", "/june.csv"),
				ghttp.VerifyContentType("text/csv"),
				ghttp.VerifyBody([]byte("Title,Total\nTaxi,15.50")),
				ghttp.RespondWith(http.StatusOK, ""),
			))

			Expect(service.Upload(ctx, "june.csv", "Title,Total\nTaxi,15.50")).To(Succeed())
			Expect(presign.uploadCalls).To(Equal([]string{"june.csv"}))
		})

		It("short-circuits when the presign call fails", func() {
			presign.uploadErr = errors.New("presign down")

			err := service.Upload(ctx, "june.csv", "data")
			Expect(err).To(MatchError(ContainSubstring("could not get upload URL")))
			Expect(storage.ReceivedRequests()).To(BeEmpty())
		})

		It("fails on a non-2xx transfer response", func() {
			storage.AppendHandlers(ghttp.RespondWith(http.StatusForbidden, "expired"))

			err := service.Upload(ctx, "june.csv", "data")
			Expect(err).To(MatchError(ContainSubstring("HTTP 403")))
		})
	})

	Describe("DownloadAll", func() {
		It("returns an empty slice without touching storage when nothing is archived", func() {
			presign.fileNames = nil

			entries, err := service.DownloadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
			Expect(storage.ReceivedRequests()).To(BeEmpty())
		})

		It("fails when the listing call fails", func() {
			presign.listErr = errors.New("list down")

			_, err := service.DownloadAll(ctx)
			Expect(err).To(MatchError(ContainSubstring("could not list archived files")))
		})

		It("fetches every archived file, sorted by name", func() {
			presign.fileNames = []string{"exports/june.csv", "exports/april.csv", "exports/may.csv"}
			storage.RouteToHandler("GET", "/exports/june.csv", ghttp.RespondWith(http.StatusOK, "june data"))
			storage.RouteToHandler("GET", "/exports/april.csv", ghttp.RespondWith(http.StatusOK, "april data"))
			storage.RouteToHandler("GET", "/exports/may.csv", ghttp.RespondWith(http.StatusOK, "may data"))

			entries, err := service.DownloadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(3))
			Expect(entries[0]).To(Equal(Entry{FileName: "april.csv", Contents: "april data"}))
			Expect(entries[1]).To(Equal(Entry{FileName: "june.csv", Contents: "june data"}))
			Expect(entries[2]).To(Equal(Entry{FileName: "may.csv", Contents: "may data"}))
		})

		It("returns the successful entries plus the joined failures", func() {
			presign.fileNames = []string{"good.csv", "bad.csv", "also-good.csv"}
			presign.downloadErrs["bad.csv"] = errors.New("presign refused")
			storage.RouteToHandler("GET", "/good.csv", ghttp.RespondWith(http.StatusOK, "good data"))
			storage.RouteToHandler("GET", "/also-good.csv", ghttp.RespondWith(http.StatusOK, "more data"))

			entries, err := service.DownloadAll(ctx)
			Expect(err).To(MatchError(ContainSubstring("presign refused")))
			Expect(entries).To(HaveLen(2))
		})

		It("treats a non-2xx body fetch as a failure without cancelling siblings", func() {
			presign.fileNames = []string{"good.csv", "gone.csv"}
			storage.RouteToHandler("GET", "/good.csv", ghttp.RespondWith(http.StatusOK, "good data"))
			storage.RouteToHandler("GET", "/gone.csv", ghttp.RespondWith(http.StatusNotFound, ""))

			entries, err := service.DownloadAll(ctx)
			Expect(err).To(MatchError(ContainSubstring("HTTP 404")))
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].FileName).To(Equal("good.csv"))
		})
	})
})
