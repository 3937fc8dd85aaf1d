package render

import "fmt"

// Sentinel asset failures. The sequencer propagates these to its caller
// unchanged so startup can surface a reinstall hint.
var (
	// ErrMissingAsset means a bundled rendering asset could not be found.
	ErrMissingAsset = fmt.Errorf("render: bundled asset missing")

	// ErrAssetIntegrity means a bundled rendering asset failed verification.
	ErrAssetIntegrity = fmt.Errorf("render: bundled asset failed integrity check")
)
