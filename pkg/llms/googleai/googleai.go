package googleai

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llms/googleai/internal/genaiutils"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/effective-security/x/values"
	"github.com/google/uuid"
	"google.golang.org/genai"
)

var (
	ErrNoContentInResponse   = errors.New("googleai: no content in generation response")
	ErrUnknownPartInResponse = errors.New("googleai: unknown part type in generation response")
	ErrUnsupportedRole       = errors.New("googleai: unsupported role")
)

const (
	CITATIONS            = "citations"
	SAFETY               = "safety"
	RoleModel            = "model"
	RoleUser             = "user"
	ResponseMIMETypeJson = "application/json"
)

// GetName implements the Model interface.
func (g *GoogleAI) GetName() string {
	return g.opts.DefaultModel
}

// GetProviderType implements the Model interface.
func (g *GoogleAI) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// GenerateContent implements the [llms.Model] interface.
func (g *GoogleAI) GenerateContent(
	ctx context.Context,
	messages []llms.Message,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model:          g.opts.DefaultModel,
		CandidateCount: g.opts.DefaultCandidateCount,
		MaxTokens:      g.opts.DefaultMaxTokens,
		Temperature:    g.opts.DefaultTemperature,
		TopP:           g.opts.DefaultTopP,
		TopK:           g.opts.DefaultTopK,
	}
	for _, opt := range options {
		opt(&opts)
	}

	callCfg, err := g.newConfig(&opts)
	if err != nil {
		return nil, err
	}

	history, system, err := ProcessMessages(messages)
	if err != nil {
		return nil, err
	}
	callCfg.SystemInstruction = system

	resp, err := g.client.Models.GenerateContent(ctx, opts.Model, history, callCfg)
	if err != nil {
		return nil, errors.Wrap(err, "googleai: failed to generate content")
	}
	if len(resp.Candidates) == 0 {
		return nil, ErrNoContentInResponse
	}
	return convertCandidates(resp.Candidates, resp.UsageMetadata)
}

func (g *GoogleAI) newConfig(opts *llms.CallOptions) (*genai.GenerateContentConfig, error) {
	callCfg := &genai.GenerateContentConfig{
		StopSequences:   opts.StopWords,
		CandidateCount:  int32(opts.CandidateCount),
		MaxOutputTokens: int32(opts.MaxTokens),
		TopP:            genaiutils.Float32Ptr(float32(opts.TopP)),
		TopK:            genaiutils.Float32Ptr(float32(opts.TopK)),
		Seed:            genaiutils.Int32Ptr(int32(opts.Seed)),
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		callCfg.Temperature = &t
	}

	for _, category := range []genai.HarmCategory{
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
	} {
		callCfg.SafetySettings = append(callCfg.SafetySettings, &genai.SafetySetting{
			Category:  category,
			Threshold: g.opts.HarmThreshold,
		})
	}

	var err error
	if callCfg.Tools, err = genaiutils.ConvertTools(opts.Tools); err != nil {
		return nil, err
	}

	// Gemini rejects a JSON response MIME type together with function calling
	if len(callCfg.Tools) == 0 && opts.ResponseFormat != nil {
		switch opts.ResponseFormat.Type {
		case schema.ResponseFormatTypeJSONObject:
			callCfg.ResponseMIMEType = ResponseMIMETypeJson
		case schema.ResponseFormatTypeJSONSchema:
			callCfg.ResponseMIMEType = ResponseMIMETypeJson
			callCfg.ResponseSchema = genaiutils.ConvertResponseFormatJSONSchema(opts.ResponseFormat.JSONSchema)
		}
	}
	return callCfg, nil
}

// ProcessMessages converts messages to genai contents,
// system messages are joined into the system instruction.
func ProcessMessages(messages []llms.Message) ([]*genai.Content, *genai.Content, error) {
	history := make([]*genai.Content, 0, len(messages))
	var system []string
	for _, mc := range messages {
		if len(mc.Parts) == 0 {
			continue
		}
		if mc.Role == llms.RoleSystem {
			system = append(system, mc.GetText())
			continue
		}
		content, err := convertContent(mc)
		if err != nil {
			return nil, nil, err
		}
		history = append(history, content)
	}

	var instruction *genai.Content
	if len(system) > 0 {
		instruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(system, "\n")}},
		}
	}
	return history, instruction, nil
}

// convertCandidates converts a sequence of genai.Candidate to a response.
// Usage is reported on the first choice.
func convertCandidates(candidates []*genai.Candidate, usage *genai.GenerateContentResponseUsageMetadata) (*llms.ContentResponse, error) {
	var contentResponse llms.ContentResponse

	for i, candidate := range candidates {
		var buf, thoughts strings.Builder
		var toolCalls []llms.ToolCall

		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				switch {
				case part.Thought:
					thoughts.WriteString(part.Text)
				case part.Text != "":
					buf.WriteString(part.Text)
				case part.FunctionCall != nil:
					b, err := json.Marshal(part.FunctionCall.Args)
					if err != nil {
						return nil, errors.WithStack(err)
					}
					toolCalls = append(toolCalls, llms.ToolCall{
						// Gemini API does not always return call IDs
						ID:   values.StringsCoalesce(part.FunctionCall.ID, uuid.NewString()),
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      part.FunctionCall.Name,
							Arguments: string(b),
						},
					})
				default:
					return nil, errors.WithMessage(ErrUnknownPartInResponse, "not text or tool")
				}
			}
		}

		metadata := map[string]any{
			CITATIONS: candidate.CitationMetadata,
			SAFETY:    candidate.SafetyRatings,
		}
		if usage != nil && i == 0 {
			metadata["InputTokens"] = int64(usage.PromptTokenCount)
			metadata["OutputTokens"] = int64(usage.CandidatesTokenCount + usage.ToolUsePromptTokenCount + usage.ThoughtsTokenCount)
			metadata["TotalTokens"] = int64(usage.TotalTokenCount)
		}

		contentResponse.Choices = append(contentResponse.Choices,
			&llms.ContentChoice{
				Content:          buf.String(),
				ReasoningContent: thoughts.String(),
				StopReason:       string(candidate.FinishReason),
				GenerationInfo:   metadata,
				ToolCalls:        toolCalls,
			})
	}
	return &contentResponse, nil
}

// convertParts converts message parts to genai parts.
func convertParts(parts []llms.ContentPart) ([]*genai.Part, error) {
	convertedParts := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		out := new(genai.Part)

		switch p := part.(type) {
		case llms.TextContent:
			out.Text = p.Text
		case llms.BinaryContent:
			out.InlineData = &genai.Blob{MIMEType: p.MIMEType, Data: p.Data}
		case llms.ImageURLContent:
			out.FileData = &genai.FileData{FileURI: p.URL}
		case llms.ToolCall:
			if p.FunctionCall == nil {
				continue
			}
			var argsMap map[string]any
			if args := p.FunctionCall.Arguments; args != "" {
				if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
					return nil, errors.Wrapf(err, "googleai: invalid arguments of %s", p.FunctionCall.Name)
				}
			}
			out.FunctionCall = &genai.FunctionCall{
				ID:   p.ID,
				Name: p.FunctionCall.Name,
				Args: argsMap,
			}
		case llms.ToolCallResponse:
			out.FunctionResponse = &genai.FunctionResponse{
				ID:   p.ToolCallID,
				Name: p.Name,
				Response: map[string]any{
					"output": p.Content,
				},
			}
		default:
			return nil, errors.Errorf("googleai: unsupported part %T", part)
		}

		convertedParts = append(convertedParts, out)
	}
	return convertedParts, nil
}

// convertContent converts a message to genai content.
// Tool responses are sent with the user role.
func convertContent(content llms.Message) (*genai.Content, error) {
	parts, err := convertParts(content.Parts)
	if err != nil {
		return nil, err
	}

	c := &genai.Content{
		Parts: parts,
	}

	switch content.Role {
	case llms.RoleAI:
		c.Role = RoleModel
	case llms.RoleHuman, llms.RoleGeneric, llms.RoleTool:
		c.Role = RoleUser
	default:
		return nil, errors.WithMessagef(ErrUnsupportedRole, "%q", content.Role)
	}
	return c, nil
}
