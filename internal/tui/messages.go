package tui

// StepBackMsg is emitted by a step to return to the previous one.
type StepBackMsg struct{}

// StepCompleteMsg is emitted by a step when the user asks to move on.
type StepCompleteMsg struct{}

// StepEnteredMsg reports that the lifecycle run of step Index finished.
type StepEnteredMsg struct {
	Index int
	Err   error
}

// StepAdvancedMsg carries the result of advancing the current step.
type StepAdvancedMsg struct {
	Err error
}

// StatusMsg is a one-line notice shown under the active step.
type StatusMsg struct {
	Text string
	Err  error
}
