package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/martinemde/autoagent/unifiedllm"
)

// quotedSegment matches a double-quoted JSON string, including ones with
// raw newlines in them.
var quotedSegment = regexp.MustCompile(`"(?:[^"\\]|\\[^n])*?"`)

const fixJSONFunction = "function fixJson(jsonString: string, schema:string): string;"

const fixJSONDescription = `Fixes the provided JSON string to make it parseable and fully compliant with the provided schema.
If an object or field specified in the schema isn't contained within the correct JSON, it is omitted.
The function also escapes any double quotes within JSON string values to ensure that they are valid.
If the JSON string contains any NaN values, they are replaced with null before being parsed.
This function is brilliant at guessing when the format is incorrect.`

// NormalizerConfig configures a Normalizer.
type NormalizerConfig struct {
	// Model repairs replies the local strategies cannot. Nil disables the
	// repair call.
	Model    ChatModel
	FixModel string
	// Debug logs schema violations in detail.
	Debug  bool
	Logger *slog.Logger
}

// Normalizer turns free-form model output into a reply object. It never
// fails: when every strategy is exhausted the result is an empty object.
type Normalizer struct {
	model    ChatModel
	fixModel string
	debug    bool
	logger   *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		model:    cfg.Model,
		fixModel: cfg.FixModel,
		debug:    cfg.Debug,
		logger:   logger.With("component", "normalizer"),
	}
}

// Normalize repairs raw into a JSON object using, in order: fence
// stripping, a stray "json " prefix, newline escaping inside strings, the
// salvage parser, brace slicing, and finally one repair call to the model.
// The returned map is never nil.
func (n *Normalizer) Normalize(ctx context.Context, raw string) map[string]any {
	if obj, ok := Repair(raw); ok {
		return obj
	}

	if n.model != nil {
		if n.debug {
			n.logger.Warn("failed to parse model output, attempting to fix; frequent fixes usually mean the prompt is confusing the model")
		}
		if obj, ok := n.fixWithModel(ctx, raw); ok {
			return obj
		}
	}

	n.logger.Error("model output could not be parsed as JSON", "output", raw)
	return map[string]any{}
}

// Check normalizes raw and validates it against the response format.
// Validation problems are logged and never block the caller.
func (n *Normalizer) Check(ctx context.Context, raw string) (map[string]any, Action) {
	obj := n.Normalize(ctx, raw)
	if len(obj) > 0 {
		if problems := ValidateReply(obj); len(problems) > 0 {
			if n.debug {
				n.logger.Warn("reply does not match the response format", "problems", problems)
			} else {
				n.logger.Debug("reply does not match the response format", "count", len(problems))
			}
		}
	}
	return obj, ParseAction(obj)
}

// Repair runs the local repair strategies without consulting a model.
func Repair(raw string) (map[string]any, bool) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	if obj, ok := parseObject(s); ok {
		return obj, true
	}

	if strings.HasPrefix(s, "json ") {
		s = strings.TrimSpace(s[len("json "):])
		if obj, ok := parseObject(s); ok {
			return obj, true
		}
	}

	if obj, ok := parseObject(escapeNewlines(s)); ok {
		return obj, true
	}

	if res := Salvage(s); res.OK() {
		if obj, ok := res.Value.(map[string]any); ok {
			return obj, true
		}
	}

	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			sliced := s[start : end+1]
			if obj, ok := parseObject(sliced); ok {
				return obj, true
			}
			if obj, ok := parseObject(escapeNewlines(sliced)); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

// escapeNewlines escapes raw line breaks inside double-quoted strings.
func escapeNewlines(s string) string {
	return quotedSegment.ReplaceAllStringFunc(s, func(m string) string {
		return strings.NewReplacer("\n", `\n`, "\r", `\r`).Replace(m)
	})
}

func parseObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func (n *Normalizer) fixWithModel(ctx context.Context, raw string) (map[string]any, bool) {
	result, err := CallFunction(ctx, n.model, n.fixModel, fixJSONFunction, []string{raw, ResponseSchema()}, fixJSONDescription)
	if err != nil {
		n.logger.Warn("JSON fix call failed", "error", err)
		return nil, false
	}
	n.logger.Debug("JSON fix attempt", "original", raw, "fixed", result)

	if obj, ok := Repair(result); ok {
		return obj, true
	}
	return nil, false
}

// CallFunction asks the model to act as the described function and return
// only its result.
func CallFunction(ctx context.Context, model ChatModel, modelName, function string, args []string, description string) (string, error) {
	messages := []unifiedllm.Message{
		unifiedllm.SystemMessage(fmt.Sprintf(
			"You are now the following python function: ```# %s\n%s```\n\nOnly respond with your `return` value.",
			description, function)),
		unifiedllm.UserMessage(strings.Join(args, ", ")),
	}
	return model.ChatComplete(ctx, messages, modelName, 0, 0)
}
