package llmutils

import (
	"bytes"
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

var fence = []byte("```")

// CleanJSON returns the JSON object or array in the reply,
// without the text the model added before or after it.
func CleanJSON(bs []byte) []byte {
	if start := bytes.IndexAny(bs, "{["); start > 0 {
		bs = bs[start:]
	}
	if end := bytes.LastIndexAny(bs, "}]"); end >= 0 {
		bs = bs[:end+1]
	}
	return bs
}

// TrimBackticks returns the content of a ``` block, text without a block is returned as is.
func TrimBackticks(text string) string {
	return string(BytesTrimBackticks([]byte(text)))
}

// BytesTrimBackticks is TrimBackticks for bytes.
// The language tag after the opening fence is skipped,
// unless the content starts on the same line.
func BytesTrimBackticks(bs []byte) []byte {
	_, rest, found := bytes.Cut(bs, fence)
	if !found {
		return bs
	}
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 && !bytes.ContainsAny(rest[:nl], "{[") {
		rest = rest[nl+1:]
	}
	if end := bytes.LastIndex(rest, fence); end >= 0 {
		return bytes.TrimSpace(rest[:end])
	}
	return rest
}

// FencedBlock returns the content of the first ```<lang> block in text.
// The closing fence is optional, the model may have been stopped on it.
func FencedBlock(text, lang string) (string, bool) {
	_, rest, found := strings.Cut(text, "```"+lang)
	if !found {
		return "", false
	}
	tag, body, found := strings.Cut(rest, "\n")
	if !found || strings.TrimSpace(tag) != "" {
		return "", false
	}
	body, _, _ = strings.Cut(body, "```")
	return strings.TrimSpace(body), true
}

// BackticksJSON returns js as a ```json block.
func BackticksJSON(js string) string {
	return "\n```json\n" + strings.TrimSpace(js) + "\n```\n"
}

func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

func ToYAML(val any) string {
	bs, _ := yaml.Marshal(val)
	return string(bs)
}

// EnsureEndsWithNewline trims s, and adds a new line to a non empty result.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return s + "\n"
}
