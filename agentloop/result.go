package agentloop

import "fmt"

// Result is the outcome of running a command. Failures carry an error
// instead of a magic prefix in the output text.
type Result struct {
	Output string
	Err    error
}

// Success returns a successful Result.
func Success(output string) Result {
	return Result{Output: output}
}

// Successf returns a successful Result with formatted output.
func Successf(format string, args ...any) Result {
	return Result{Output: fmt.Sprintf(format, args...)}
}

// Failure returns a failed Result.
func Failure(err error) Result {
	return Result{Err: err}
}

// OK reports whether the command succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// String renders the result the way it is shown to the model.
func (r Result) String() string {
	if r.Err != nil {
		return "Error: " + r.Err.Error()
	}
	return r.Output
}
