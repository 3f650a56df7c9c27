package autoloop

import "context"

// Sampler is the worker's view of the host coding-agent's sampling
// capability. It is implemented by the host integration, not by this
// package.
type Sampler interface {
	// SupportsSampling reports whether the host currently advertises
	// sampling support. Probed once per tick until the loop self-disables.
	SupportsSampling(ctx context.Context) bool

	// Sample delegates a (prompt, system, maxTokens) computation to the
	// host. A CapabilityMissing failure must produce an error whose
	// message contains one of the substrings client.IsCapabilityMissing
	// recognizes.
	Sample(ctx context.Context, prompt, system string, maxTokens int) (SampleResult, error)
}

// SampleResult is the host's reply to one Sample call.
type SampleResult struct {
	// Text is the reply content when IsText is true.
	Text string
	// IsText is false when the host returned a non-text payload (e.g.
	// an image or tool-call) that this worker cannot relay as-is.
	IsText bool
}
