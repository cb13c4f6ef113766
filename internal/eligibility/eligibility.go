// Package eligibility decides whether a transfer can run as a server-side copy.
package eligibility

import (
	"github.com/systmms/s3xfer/pkg/location"
)

// Strategy is how a transfer moves its bytes.
type Strategy string

const (
	// DirectCopy copies objects inside the storage service.
	DirectCopy Strategy = "direct-copy"
	// Stream reads objects and writes them through this process.
	Stream Strategy = "stream"
)

// IsDirectCopyEligible reports whether source and destination are both
// object-storage locations served by the same endpoint. Endpoint overrides
// must be both absent or textually equal; blank overrides count as absent.
func IsDirectCopyEligible(source location.Descriptor, destination *location.Descriptor) bool {
	if destination == nil {
		return false
	}
	if !source.IsS3() || !destination.IsS3() {
		return false
	}

	srcEndpoint, srcOK := source.OptionalProperty(location.EndpointOverride)
	dstEndpoint, dstOK := destination.OptionalProperty(location.EndpointOverride)
	if srcOK != dstOK {
		return false
	}
	return srcEndpoint == dstEndpoint
}

// Decide returns the strategy for a transfer between source and destination
func Decide(source location.Descriptor, destination *location.Descriptor) Strategy {
	if IsDirectCopyEligible(source, destination) {
		return DirectCopy
	}
	return Stream
}
