package agentloop

import (
	"fmt"
	"strconv"
	"strings"
)

// DecisionKind is what the operator chose at the authorization prompt.
type DecisionKind int

const (
	// DecisionInvalid means the input was rejected and must be re-prompted.
	DecisionInvalid DecisionKind = iota
	// DecisionAuthorize runs the proposed action.
	DecisionAuthorize
	// DecisionExit ends the session.
	DecisionExit
	// DecisionSelfReview asks the model to review its own thoughts.
	DecisionSelfReview
	// DecisionFeedback replaces the action with operator feedback.
	DecisionFeedback
)

// Decision is a parsed line of operator input.
type Decision struct {
	Kind DecisionKind
	// Count is the number of turns pre-authorized by "y -N".
	Count    int
	Feedback string
	// Problem explains why an input was rejected.
	Problem string
}

// ParseDecision interprets a line typed at the authorization prompt.
// Keys are compared case-insensitively.
func ParseDecision(input, authKey, exitKey string) Decision {
	trimmed := strings.ToLower(strings.TrimSpace(input))
	authKey = strings.ToLower(authKey)
	exitKey = strings.ToLower(exitKey)

	switch {
	case trimmed == authKey:
		return Decision{Kind: DecisionAuthorize}
	case trimmed == "s":
		return Decision{Kind: DecisionSelfReview}
	case trimmed == "":
		return Decision{Kind: DecisionInvalid, Problem: "Invalid input format."}
	case strings.HasPrefix(trimmed, authKey+" -"):
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			return invalidCount(authKey)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return invalidCount(authKey)
		}
		if n < 0 {
			n = -n
		}
		return Decision{Kind: DecisionAuthorize, Count: n}
	case trimmed == exitKey:
		return Decision{Kind: DecisionExit}
	default:
		return Decision{Kind: DecisionFeedback, Feedback: input}
	}
}

func invalidCount(authKey string) Decision {
	return Decision{
		Kind:    DecisionInvalid,
		Problem: fmt.Sprintf("Invalid input format. Please enter '%s -n' where n is the number of continuous tasks.", authKey),
	}
}

const selfFeedbackPrompt = "Below is a message from an AI agent with the role of %s. Please review the provided Thought, Reasoning, Plan, Progress and Criticism. If these elements accurately contribute to the successful execution of the assumed role, respond with the letter 'Y' followed by a space, and then explain why it is effective. If the provided information is not suitable for achieving the role's objectives, please provide one or more sentences addressing the issue and suggesting a resolution."

// selfFeedbackMessage builds the review request for the agent's thoughts.
func selfFeedbackMessage(role string, t *Thoughts) string {
	prompt := fmt.Sprintf(selfFeedbackPrompt, role)
	if t == nil {
		return prompt
	}
	return prompt + t.Text + t.Reasoning + t.Plan + t.Progress + t.Criticism
}
