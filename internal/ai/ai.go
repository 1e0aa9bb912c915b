// Package ai holds the shared types of the optional second-opinion layer
// consulted for borderline employment matches before they are accepted.
package ai

// Verdict is the model's judgment on whether the extracted positions
// really evidence employment at the target company.
type Verdict struct {
	Employed   bool
	Confidence float64
	Reason     string
	Raw        string
}
