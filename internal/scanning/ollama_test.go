package scanning

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server     *ghttp.Server
		scanner    *Ollama
		photo      DataURI
		extraction *Extraction
		err        error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "llava")
		Expect(err).NotTo(HaveOccurred())
		photo = NewDataURI("image/png", testPNG())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		extraction, err = scanner.Extract(context.Background(), photo)
	})

	When("the model returns a receipt", func() {
		var received ollamaChatRequest

		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, readErr := io.ReadAll(r.Body)
					Expect(readErr).NotTo(HaveOccurred())
					Expect(json.Unmarshal(body, &received)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{
						Role:    "assistant",
						Content: `{"isReceipt": true, "total": 3.00, "items": [{"description": "Water Bottle", "quantity": 2, "amount": 3.00}]}`,
					},
					Done: true,
				}),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should send the model, JSON format and image", func() {
			Expect(received.Model).To(Equal("llava"))
			Expect(received.Format).To(Equal("json"))
			Expect(received.Messages).To(HaveLen(2))
			Expect(received.Messages[1].Images).To(ConsistOf(photo.Base64()))
		})

		It("should return the unrolled items", func() {
			Expect(amounts(extraction.Items)).To(Equal([]string{"1.50", "1.50"}))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
		})
	})

	When("the model reply is not JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I cannot read this"},
				Done:    true,
			}))
		})

		It("returns an invalid response error", func() {
			Expect(err).To(MatchError(ErrInvalidResponse))
		})
	})

	When("the image is not an image", func() {
		BeforeEach(func() {
			photo = NewDataURI("text/plain", []byte("hello"))
		})

		It("does not call the API", func() {
			Expect(err).To(MatchError(ErrNotImage))
			Expect(server.ReceivedRequests()).To(BeEmpty())
		})
	})
})
