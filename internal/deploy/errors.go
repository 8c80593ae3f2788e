package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownPlatform is returned for a platform name with no definition.
var ErrUnknownPlatform = errors.New("unknown platform")

// Stages of a deployment, used in Failure.
const (
	StageArtifact  = "artifact"
	StageProvision = "provision"
	StageInject    = "inject"
	StageUpload    = "upload"
)

// PreflightError is returned before any upload is attempted: credentials
// are missing, the CLI is unusable, or the platform API rejected the probe.
type PreflightError struct {
	Platform string
	Missing  []string
	Check    string
	Cause    error
}

func (e *PreflightError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s preflight: missing credentials: %s", e.Platform, strings.Join(e.Missing, ", "))
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s preflight (%s): %v", e.Platform, e.Check, e.Cause)
	}
	return fmt.Sprintf("%s preflight (%s) failed", e.Platform, e.Check)
}

func (e *PreflightError) Unwrap() error { return e.Cause }

// Failure is a deployment that failed after preflight passed.
type Failure struct {
	Platform string
	Domain   string
	Stage    string
	Output   string
	Cause    error
}

func (e *Failure) Error() string {
	return fmt.Sprintf("deploy %s to %s failed at %s: %v", e.Domain, e.Platform, e.Stage, e.Cause)
}

func (e *Failure) Unwrap() error { return e.Cause }
