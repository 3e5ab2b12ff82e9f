package scanning

import (
	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gemini", func() {
	Describe("NewGemini", func() {
		It("requires an API key", func() {
			_, err := NewGemini("", "")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("replyText", func() {
		It("joins the text parts of the first candidate", func() {
			resp := &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []genai.Part{
						genai.Text(`{"isReceipt": `),
						genai.Text(`false}`),
					}},
				}},
			}
			text, err := replyText(resp)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal(`{"isReceipt": false}`))
		})

		It("fails when there is no candidate", func() {
			_, err := replyText(&genai.GenerateContentResponse{})
			Expect(err).To(MatchError(errEmptyGeminiReply))
		})

		It("fails when the candidate has no text", func() {
			resp := &genai.GenerateContentResponse{
				Candidates: []*genai.Candidate{{Content: &genai.Content{}}},
			}
			_, err := replyText(resp)
			Expect(err).To(MatchError(errEmptyGeminiReply))
		})
	})
})
