package domain

import "testing"

func TestLoopStepTerminal(t *testing.T) {
	for _, kind := range []StepKind{StepOracleCall, StepToolInvocation, StepToolResult} {
		if (LoopStep{Kind: kind}).Terminal() {
			t.Errorf("%s should not be terminal", kind)
		}
	}
	if !(LoopStep{Kind: StepFinalAnswer}).Terminal() {
		t.Error("final_answer should be terminal")
	}
	if !(LoopStep{Kind: StepAborted}).Terminal() {
		t.Error("aborted should be terminal")
	}
}
