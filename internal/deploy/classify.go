package deploy

import (
	"regexp"
)

// CreateOutcome classifies a project-creation attempt.
type CreateOutcome int

const (
	Created CreateOutcome = iota
	AlreadyExists
	CreateFailed
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already-exists"
	default:
		return "failed"
	}
}

// alreadyExists matches the wording platform CLIs use when a project name
// is taken. Keep every CLI string match for provisioning here.
var alreadyExists = regexp.MustCompile(`(?i)already\s+exists|already\s+(been\s+)?taken|name\s+is\s+(already\s+)?(taken|in\s+use)|already\s+in\s+use|code:\s*8000002`)

// ClassifyCreate maps a create command's exit code and output to an outcome.
func ClassifyCreate(exitCode int, output string) CreateOutcome {
	if exitCode == 0 {
		return Created
	}
	if alreadyExists.MatchString(output) {
		return AlreadyExists
	}
	return CreateFailed
}
