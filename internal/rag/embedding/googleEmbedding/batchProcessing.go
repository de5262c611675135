package googleEmbedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/akolanti/DocuSense/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const pollInterval = 30 * time.Second

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

// doRetry reports rate limiting, from either the gRPC status or the REST error.
func doRetry(err error, log *logger_i.Logger) bool {
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		log.Warn("Rate limit hit", "error", err)
		return true
	}
	return false
}

func getInlinedBatchRequests(chunks []string) *genai.EmbedContentBatch {
	conf := genai.EmbedContentConfig{OutputDimensionality: &dimension}
	return &genai.EmbedContentBatch{
		Config:   &conf,
		Contents: getContent(chunks),
	}
}

func (c *client) pollForAnswer(ctx context.Context, batchJobName string, log *logger_i.Logger) (*genai.BatchJob, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	log.Debug("polling batch job")
	for {
		select {
		case <-ctx.Done():
			log.Error("batch job polling cancelled", "error", ctx.Err())
			return nil, ctx.Err()

		case <-ticker.C:
			bJob, err := c.genAi.Batches.Get(ctx, batchJobName, nil)
			if err != nil {
				log.Warn("Error getting batch job", "error", err)
				continue
			}

			//https://pkg.go.dev/google.golang.org/genai@v1.41.1#JobState
			switch bJob.State {
			case genai.JobStateSucceeded:
				log.Debug("batch job succeeded")
				return bJob, nil
			case genai.JobStateFailed:
				msg := "unknown"
				if bJob.Error != nil {
					msg = bJob.Error.Message
				}
				return nil, fmt.Errorf("batch embedding job failed: %s", msg)
			case genai.JobStateCancelled, genai.JobStateExpired, genai.JobStatePartiallySucceeded:
				return nil, fmt.Errorf("batch embedding job ended early: %s", bJob.State)
			}
			//all other states wait for the job to end or the context to expire
		}
	}
}

func downloadAnswerFromClient(answer *genai.BatchJob, log *logger_i.Logger) ([][]float32, error) {
	if answer.Dest == nil || len(answer.Dest.InlinedEmbedContentResponses) == 0 {
		return nil, errors.New("batch embedding job returned no results")
	}

	res := answer.Dest.InlinedEmbedContentResponses
	results := make([][]float32, 0, len(res))
	for i, r := range res {
		if r == nil || r.Error != nil || r.Response == nil || r.Response.Embedding == nil {
			log.Error("Error with a result in batch embedding", "index", i)
			return nil, fmt.Errorf("batch embedding result %d failed", i)
		}
		results = append(results, r.Response.Embedding.Values)
	}
	return results, nil
}
